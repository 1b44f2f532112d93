package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/pfrederiksen/wako-events/internal/logger"
	"github.com/pfrederiksen/wako-events/internal/metrics"
	"github.com/pfrederiksen/wako-events/internal/scraper"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name    string
	records []event.RawEvent
	err     error
	delay   time.Duration
	block   bool
	panics  bool
}

func (f *fakeAdapter) Name() string {
	return f.name
}

func (f *fakeAdapter) FetchRawEvents(ctx context.Context) ([]event.RawEvent, error) {
	if f.panics {
		panic("selector not found")
	}
	if f.block {
		<-ctx.Done()
		return f.records, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.records, f.err
}

func raw(source, title, date string) event.RawEvent {
	return event.RawEvent{
		Title:      title,
		URL:        "https://example.jp/" + title,
		DateRaw:    date,
		DateFormat: event.FormatISO,
		Source:     source,
	}
}

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts.Logger = logger.New(logger.LevelDebug, &buf)
	return New(opts), &buf
}

func titles(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestRun_FailingSourceDoesNotAbort(t *testing.T) {
	good := &fakeAdapter{name: "サンアゼリア"}
	for i := 1; i <= 5; i++ {
		good.records = append(good.records, raw("サンアゼリア", fmt.Sprintf("公演%d", i), fmt.Sprintf("2025-03-0%d", i)))
	}
	bad := &fakeAdapter{name: "和光市公式", err: errors.New("navigation timeout")}

	p, logs := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{bad, good})
	require.NoError(t, err)

	assert.Len(t, result.Events, 5)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 1, result.Failures())

	require.Len(t, result.Sources, 2)
	assert.Equal(t, "和光市公式", result.Sources[0].Source)
	assert.True(t, result.Sources[0].Failed())
	assert.Equal(t, "navigation timeout", result.Sources[0].Error)
	assert.Equal(t, 5, result.Sources[1].Accepted)
	assert.False(t, result.Sources[1].Failed())

	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, logs.String(), result.RunID)
	assert.Contains(t, logs.String(), "Source failed")
}

func TestRun_KeepsPartialResultsOfFailedSource(t *testing.T) {
	partial := &fakeAdapter{
		name:    "和光市公式",
		records: []event.RawEvent{raw("和光市公式", "一月の催し", "2025-01-10")},
		err:     errors.New("calendar did not advance"),
	}

	p, _ := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{partial})
	require.NoError(t, err)

	assert.Equal(t, []string{"一月の催し"}, titles(result.Events))
	assert.True(t, result.Sources[0].Failed())
}

func TestRun_MergesInDeclarationOrder(t *testing.T) {
	// The first adapter finishes last; same-date records must still keep
	// declaration order after the stable sort.
	first := &fakeAdapter{name: "A", delay: 30 * time.Millisecond, records: []event.RawEvent{
		raw("A", "a1", "2025-05-01"),
		raw("A", "a2", "2025-04-01"),
	}}
	second := &fakeAdapter{name: "B", records: []event.RawEvent{
		raw("B", "b1", "2025-05-01"),
	}}
	third := &fakeAdapter{name: "C", delay: 10 * time.Millisecond, records: []event.RawEvent{
		raw("C", "c1", "2025-05-01"),
	}}

	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			p, _ := newTestPipeline(t, Options{Concurrency: concurrency})
			result, err := p.Run(context.Background(), []scraper.Adapter{first, second, third})
			require.NoError(t, err)

			assert.Equal(t, []string{"a2", "a1", "b1", "c1"}, titles(result.Events))
			assert.Equal(t, []string{"A", "B", "C"}, []string{
				result.Sources[0].Source, result.Sources[1].Source, result.Sources[2].Source,
			})
		})
	}
}

func TestRun_DropsInvalidRecords(t *testing.T) {
	a := &fakeAdapter{name: "サンアゼリア", records: []event.RawEvent{
		raw("サンアゼリア", "正常", "2025-03-01"),
		{Title: "日付不正", URL: "https://example.jp/x", DateRaw: "2025031", DateFormat: event.FormatCompact},
		{Title: "", URL: "https://example.jp/y", DateRaw: "2025-03-02"},
		{Title: "リンクなし", DateRaw: "2025-03-02"},
		{Title: "二月三十日", URL: "https://example.jp/z", DateRaw: "2025/2/30", DateFormat: event.FormatSlash},
	}}

	p, logs := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{a})
	require.NoError(t, err)

	assert.Equal(t, []string{"正常"}, titles(result.Events))
	assert.Equal(t, 5, result.Sources[0].Found)
	assert.Equal(t, 1, result.Sources[0].Accepted)
	assert.Equal(t, 4, result.Sources[0].Dropped)
	assert.False(t, result.Sources[0].Failed())
	assert.Contains(t, logs.String(), "Dropping record")
}

func TestRun_FillsMissingSourceLabel(t *testing.T) {
	a := &fakeAdapter{name: "和光市商工会", records: []event.RawEvent{
		{Title: "総会", URL: "https://example.jp/a", DateRaw: "2025-06-01"},
	}}

	p, _ := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{a})
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "和光市商工会", result.Events[0].Source)
}

func TestRun_ClassifiesEvents(t *testing.T) {
	a := &fakeAdapter{name: "サンアゼリア", records: []event.RawEvent{
		{Title: "ニューイヤーコンサート", URL: "https://example.jp/1", DateRaw: "2025-01-12", Source: "サンアゼリア"},
		{Title: "定例会議", URL: "https://example.jp/2", DateRaw: "2025-01-13", Source: "サンアゼリア", ImageURL: "https://example.jp/flyer.jpg"},
		{Title: "親子ヨガ", URL: "https://example.jp/3", DateRaw: "2025-01-14", Source: "サンアゼリア"},
	}}

	p, _ := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{a})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)

	assert.Equal(t, "レジャー・娯楽", result.Events[0].Genre)
	assert.NotEmpty(t, result.Events[0].ImageURL)
	assert.Equal(t, "その他", result.Events[1].Genre)
	assert.Equal(t, "https://example.jp/flyer.jpg", result.Events[1].ImageURL)
	assert.Equal(t, "子ども・子育て", result.Events[2].Genre)
	for _, e := range result.Events {
		assert.NotNil(t, e.Categories)
	}
}

func TestRun_RecoversPanics(t *testing.T) {
	boom := &fakeAdapter{name: "和光子育てネットワーク", panics: true}
	ok := &fakeAdapter{name: "和光市商工会", records: []event.RawEvent{raw("和光市商工会", "総会", "2025-06-01")}}

	p, _ := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), []scraper.Adapter{boom, ok})
	require.NoError(t, err)

	assert.Len(t, result.Events, 1)
	require.True(t, result.Sources[0].Failed())
	assert.Contains(t, result.Sources[0].Error, "panicked")
}

func TestRun_AdapterTimeoutIsIsolated(t *testing.T) {
	slow := &fakeAdapter{name: "和光市公式", block: true}
	fast := &fakeAdapter{name: "サンアゼリア", records: []event.RawEvent{raw("サンアゼリア", "公演", "2025-03-01")}}

	p, _ := newTestPipeline(t, Options{AdapterTimeout: 20 * time.Millisecond, Concurrency: 2})
	result, err := p.Run(context.Background(), []scraper.Adapter{slow, fast})
	require.NoError(t, err)

	assert.Len(t, result.Events, 1)
	require.True(t, result.Sources[0].Failed())
	assert.True(t, errors.Is(result.Sources[0].Err, context.DeadlineExceeded))
	assert.Contains(t, result.Sources[0].Error, "timed out")
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newTestPipeline(t, Options{})
	_, err := p.Run(ctx, []scraper.Adapter{&fakeAdapter{name: "A", block: true}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_NoAdapters(t *testing.T) {
	p, _ := newTestPipeline(t, Options{})
	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, result.Events)
	assert.Empty(t, result.Events)
	assert.Zero(t, result.Failures())
}

func TestRun_RecordsMetrics(t *testing.T) {
	rec := metrics.New()
	good := &fakeAdapter{name: "サンアゼリア", records: []event.RawEvent{
		raw("サンアゼリア", "公演", "2025-03-01"),
		{Title: "壊れた", URL: "https://example.jp/x", DateRaw: "bad"},
	}}
	bad := &fakeAdapter{name: "和光市公式", err: errors.New("boom")}

	p, _ := newTestPipeline(t, Options{Metrics: rec})
	_, err := p.Run(context.Background(), []scraper.Adapter{good, bad})
	require.NoError(t, err)

	expected := `
# HELP wako_events_source_failures_total Adapter runs that ended with an error.
# TYPE wako_events_source_failures_total counter
wako_events_source_failures_total{source="サンアゼリア"} 0
wako_events_source_failures_total{source="和光市公式"} 1
# HELP wako_events_source_records_dropped_total Records dropped because of a missing field or an unparsable date.
# TYPE wako_events_source_records_dropped_total counter
wako_events_source_records_dropped_total{source="サンアゼリア"} 1
wako_events_source_records_dropped_total{source="和光市公式"} 0
`
	err = testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected),
		"wako_events_source_failures_total", "wako_events_source_records_dropped_total")
	assert.NoError(t, err)
}
