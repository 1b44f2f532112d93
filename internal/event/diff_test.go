package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	kept := Event{Title: "kept", URL: "https://a.example/1", Date: "2024-03-01", Source: "A"}
	gone := Event{Title: "gone", URL: "https://a.example/2", Date: "2024-03-02", Source: "A"}
	added := Event{Title: "added", URL: "https://b.example/1", Date: "2024-03-03", Source: "B"}
	moved := Event{Title: "kept", URL: "https://a.example/1", Date: "2024-03-08", Source: "A"}

	tests := []struct {
		name        string
		previous    []Event
		current     []Event
		wantNew     []string
		wantRemoved []string
		wantSources map[string]int
	}{
		{
			name:        "first run reports everything as new",
			previous:    nil,
			current:     []Event{kept, added},
			wantNew:     []string{"kept", "added"},
			wantRemoved: []string{},
			wantSources: map[string]int{"A": 1, "B": 1},
		},
		{
			name:        "unchanged crawl",
			previous:    []Event{kept, gone},
			current:     []Event{kept, gone},
			wantNew:     []string{},
			wantRemoved: []string{},
			wantSources: map[string]int{},
		},
		{
			name:        "added and removed",
			previous:    []Event{kept, gone},
			current:     []Event{kept, added},
			wantNew:     []string{"added"},
			wantRemoved: []string{"gone"},
			wantSources: map[string]int{"B": 1},
		},
		{
			name:        "date change is a new event",
			previous:    []Event{kept},
			current:     []Event{moved},
			wantNew:     []string{"kept"},
			wantRemoved: []string{"kept"},
			wantSources: map[string]int{"A": 1},
		},
		{
			name:        "duplicates in one crawl reported once",
			previous:    nil,
			current:     []Event{added, added},
			wantNew:     []string{"added"},
			wantRemoved: []string{},
			wantSources: map[string]int{"B": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.previous, tt.current)

			assert.Equal(t, tt.wantNew, titles(got.NewEvents))
			assert.Equal(t, tt.wantRemoved, titles(got.RemovedEvents))

			counts := make(map[string]int)
			for src, evts := range got.BySource {
				counts[src] = len(evts)
			}
			assert.Equal(t, tt.wantSources, counts)
		})
	}
}
