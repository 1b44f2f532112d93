package event

// DiffResult contains the results of comparing a crawl to the previous snapshot
type DiffResult struct {
	NewEvents     []Event
	RemovedEvents []Event
	BySource      map[string][]Event // new events grouped by source
}

// Diff compares current events against the previous snapshot. An event is new
// when its ID is absent from previous and removed when its ID is absent from
// current. Order follows the input slices.
func Diff(previous, current []Event) *DiffResult {
	result := &DiffResult{
		NewEvents:     make([]Event, 0),
		RemovedEvents: make([]Event, 0),
		BySource:      make(map[string][]Event),
	}

	seen := make(map[string]bool, len(previous))
	for i := range previous {
		seen[previous[i].ID()] = true
	}

	present := make(map[string]bool, len(current))
	for i := range current {
		id := current[i].ID()
		present[id] = true
		if seen[id] {
			continue
		}
		// Duplicate records within one crawl are reported once.
		seen[id] = true
		result.NewEvents = append(result.NewEvents, current[i])
		result.BySource[current[i].Source] = append(result.BySource[current[i].Source], current[i])
	}

	for i := range previous {
		if !present[previous[i].ID()] {
			result.RemovedEvents = append(result.RemovedEvents, previous[i])
		}
	}

	return result
}
