package filter

import (
	"testing"
	"time"

	"github.com/pfrederiksen/wako-events/internal/bookmarks"
	"github.com/pfrederiksen/wako-events/internal/event"
	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func sampleEvents() []event.Event {
	return []event.Event{
		{
			Title:      "ニューイヤーコンサート",
			URL:        "https://www.city.wako.lg.jp/bunka/concert.html",
			Date:       "2025-01-12", // Sunday
			Categories: []string{"文化・芸術"},
			Source:     "和光市公式",
			Genre:      "レジャー・娯楽",
		},
		{
			Title:      "Piano Recital",
			URL:        "https://www.sunazalea.or.jp/event/detail/7/",
			Date:       "2025-01-15", // Wednesday
			Categories: []string{"小ホール"},
			Source:     "サンアゼリア",
			Genre:      "文化・芸術",
		},
		{
			Title:      "創業セミナー",
			URL:        "http://www.wako-sci.or.jp/news/seminar.html",
			Date:       "2025-02-01", // Saturday
			Categories: []string{"商工会"},
			Source:     "和光市商工会",
			Genre:      "学び・教室",
		},
		{
			Title:      "クリスマスこどもフェス",
			URL:        "https://wa-kosodate.com/25syuunen",
			Date:       "2025-12-14",
			Categories: []string{"子育て", "イベント"},
			Source:     "和光子育てネットワーク",
			Genre:      "子ども・子育て",
		},
	}
}

func titles(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestFilter_IsEmpty(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"new filter", NewFilter(), true},
		{"zero filter", &Filter{}, true},
		{"genre all", &Filter{Genre: AllGenres}, true},
		{"blank query", &Filter{Query: "  "}, true},
		{"genre", &Filter{Genre: "文化・芸術"}, false},
		{"query", &Filter{Query: "ピアノ"}, false},
		{"bookmarked", &Filter{BookmarkedOnly: true}, false},
		{"date from", &Filter{DateFrom: timePtr(time.Now())}, false},
		{"weekends", &Filter{WeekendsOnly: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.IsEmpty())
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	marked := bookmarks.New("https://wa-kosodate.com/25syuunen", "https://www.sunazalea.or.jp/event/detail/7/")

	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{
			name:   "empty filter keeps everything",
			filter: NewFilter(),
			want:   []string{"ニューイヤーコンサート", "Piano Recital", "創業セミナー", "クリスマスこどもフェス"},
		},
		{
			name:   "genre",
			filter: &Filter{Genre: "文化・芸術"},
			want:   []string{"Piano Recital"},
		},
		{
			name:   "query matches title case-insensitively",
			filter: &Filter{Query: "piano"},
			want:   []string{"Piano Recital"},
		},
		{
			name:   "query matches category",
			filter: &Filter{Query: "子育て"},
			want:   []string{"クリスマスこどもフェス"},
		},
		{
			name:   "query does not match genre",
			filter: &Filter{Query: "レジャー"},
			want:   []string{},
		},
		{
			name:   "bookmarked only",
			filter: &Filter{BookmarkedOnly: true, Bookmarks: marked},
			want:   []string{"Piano Recital", "クリスマスこどもフェス"},
		},
		{
			name:   "bookmarked only without set",
			filter: &Filter{BookmarkedOnly: true},
			want:   []string{},
		},
		{
			name:   "sources",
			filter: &Filter{Sources: []string{"和光市商工会", "和光市公式"}},
			want:   []string{"ニューイヤーコンサート", "創業セミナー"},
		},
		{
			name: "date range inclusive",
			filter: &Filter{
				DateFrom: timePtr(time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)),
				DateTo:   timePtr(time.Date(2025, 2, 1, 23, 59, 59, 0, time.UTC)),
			},
			want: []string{"ニューイヤーコンサート", "Piano Recital", "創業セミナー"},
		},
		{
			name:   "weekends only",
			filter: &Filter{WeekendsOnly: true},
			want:   []string{"ニューイヤーコンサート", "創業セミナー", "クリスマスこどもフェス"},
		},
		{
			name:   "criteria combine",
			filter: &Filter{Genre: "子ども・子育て", Query: "フェス", BookmarkedOnly: true, Bookmarks: marked},
			want:   []string{"クリスマスこどもフェス"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(sampleEvents())
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestFilter_InvalidEventDate(t *testing.T) {
	f := &Filter{WeekendsOnly: true}
	assert.False(t, f.Matches(&event.Event{Title: "x", Date: "not-a-date"}))
}

func TestFilter_String(t *testing.T) {
	assert.Equal(t, "No active filters", NewFilter().String())

	f := &Filter{
		Genre:          "文化・芸術",
		Query:          "ピアノ",
		BookmarkedOnly: true,
		DateFrom:       timePtr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		WeekendsOnly:   true,
	}
	assert.Equal(t, "Genre: 文化・芸術 | Search: ピアノ | Bookmarked only | From: 2025-03-01 | Weekends only", f.String())
}

func TestGenreCounts(t *testing.T) {
	events := sampleEvents()
	events = append(events, event.Event{Title: "謎", Genre: "未分類"})

	names := []string{"レジャー・娯楽", "学び・教室", "文化・芸術", "子ども・子育て", "その他"}
	got := GenreCounts(events, names)

	assert.Equal(t, []GenreCount{
		{Genre: "レジャー・娯楽", Count: 1},
		{Genre: "学び・教室", Count: 1},
		{Genre: "文化・芸術", Count: 1},
		{Genre: "子ども・子育て", Count: 1},
		{Genre: "その他", Count: 0},
		{Genre: "未分類", Count: 1},
	}, got)
}
