// Package pipeline runs the source adapters and turns their raw records into
// one sorted, classified event list.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/genre"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"github.com/pfrederiksen/wako-events/internal/metrics"
	"github.com/pfrederiksen/wako-events/internal/scraper"
	"golang.org/x/sync/errgroup"
)

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	// Concurrency bounds how many adapters run at once. 1 runs them in order.
	Concurrency int
	// AdapterTimeout bounds each adapter separately. Zero means no limit.
	AdapterTimeout time.Duration

	Normalizer *event.Normalizer
	Classifier *genre.Classifier
	Metrics    *metrics.Recorder
	Logger     *logger.Logger
}

// Pipeline aggregates adapters into a single event list.
type Pipeline struct {
	concurrency int
	timeout     time.Duration
	normalizer  *event.Normalizer
	classifier  *genre.Classifier
	metrics     *metrics.Recorder
	log         *logger.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		concurrency: opts.Concurrency,
		timeout:     opts.AdapterTimeout,
		normalizer:  opts.Normalizer,
		classifier:  opts.Classifier,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.normalizer == nil {
		p.normalizer = event.NewNormalizer()
	}
	if p.classifier == nil {
		p.classifier = genre.Default()
	}
	if p.log == nil {
		p.log = logger.Default()
	}
	return p
}

// SourceReport summarizes one adapter's part of a run.
type SourceReport struct {
	Source     string `json:"source"`
	Found      int    `json:"found"`
	Accepted   int    `json:"accepted"`
	Dropped    int    `json:"dropped"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the adapter ended with an error.
func (r SourceReport) Failed() bool {
	return r.Err != nil
}

// Result is the outcome of a run.
type Result struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Events     []event.Event  `json:"-"`
	Total      int            `json:"total"`
	Sources    []SourceReport `json:"sources"`
}

// Failures counts the adapters that ended with an error.
func (r *Result) Failures() int {
	n := 0
	for _, s := range r.Sources {
		if s.Failed() {
			n++
		}
	}
	return n
}

// slot holds one adapter's output until every adapter has finished.
type slot struct {
	source  string
	records []event.RawEvent
	err     error
	elapsed time.Duration
}

// Run executes adapters and merges their output in the order given. A failing
// adapter is reported and contributes whatever records it returned; it never
// fails the run. Run returns an error only when ctx ends first.
func (p *Pipeline) Run(ctx context.Context, adapters []scraper.Adapter) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := p.log.With(logger.Fields{"run_id": result.RunID})

	log.Info("Starting crawl", logger.Fields{
		"sources":     len(adapters),
		"concurrency": p.concurrency,
	})

	slots := make([]slot, len(adapters))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, a := range adapters {
		g.Go(func() error {
			slots[i] = p.runAdapter(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl interrupted: %w", err)
	}

	events := make([]event.Event, 0)
	result.Sources = make([]SourceReport, 0, len(slots))

	for _, s := range slots {
		report := SourceReport{
			Source:     s.source,
			Found:      len(s.records),
			DurationMS: s.elapsed.Milliseconds(),
			Err:        s.err,
		}

		for _, raw := range s.records {
			if raw.Source == "" {
				raw.Source = s.source
			}
			evt, err := p.normalizer.Normalize(raw)
			if err != nil {
				report.Dropped++
				log.Debug("Dropping record", logger.Fields{
					"source":   s.source,
					"title":    raw.Title,
					"url":      raw.URL,
					"date_raw": raw.DateRaw,
					"reason":   err.Error(),
				})
				continue
			}
			events = append(events, evt)
			report.Accepted++
		}

		fields := logger.Fields{
			"source":      s.source,
			"found":       report.Found,
			"accepted":    report.Accepted,
			"dropped":     report.Dropped,
			"duration_ms": report.DurationMS,
		}
		if s.err != nil {
			report.Error = s.err.Error()
			log.Warn("Source failed", fields, s.err)
		} else {
			log.Info("Fetched source", fields)
		}

		if p.metrics != nil {
			p.metrics.ObserveSource(s.source, report.Accepted, report.Dropped, s.elapsed, s.err)
		}
		result.Sources = append(result.Sources, report)
	}

	event.SortByDate(events)
	result.Events = p.classifier.ClassifyAll(events)
	result.Total = len(result.Events)
	result.FinishedAt = time.Now()

	log.Info("Crawl finished", logger.Fields{
		"events":   result.Total,
		"failures": result.Failures(),
	})
	return result, nil
}

func (p *Pipeline) runAdapter(ctx context.Context, a scraper.Adapter) (s slot) {
	s.source = a.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("adapter panicked: %v", r)
		}
		s.elapsed = time.Since(start)
	}()

	actx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	s.records, s.err = a.FetchRawEvents(actx)
	if s.err != nil && errors.Is(s.err, context.DeadlineExceeded) && ctx.Err() == nil {
		s.err = fmt.Errorf("timed out after %s: %w", p.timeout, s.err)
	}
	return s
}
