// Package genre assigns each event exactly one user-facing genre.
//
// Genres are declared in a fixed order and the first genre with a matching
// keyword wins, so the order of Table is part of the classification contract.
package genre

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/pfrederiksen/wako-events/internal/event"
)

// CatchAll is assigned when no genre keyword matches.
const CatchAll = "その他"

// Genre is one entry of the classification table.
type Genre struct {
	Name     string
	Icon     string
	Image    string
	Keywords []string
}

// Table is the ordered genre table. Earlier entries win ties.
var Table = []Genre{
	{
		Name:     "レジャー・娯楽",
		Icon:     "🎉",
		Image:    "https://images.unsplash.com/photo-1492684223066-81342ee5ff30?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"祭り", "催し", "コンサート", "観賞", "見る", "聴く", "フェスティバル", "演奏会", "ライブ", "ショー", "映画", "シアター"},
	},
	{
		Name:     "学び・教室",
		Icon:     "📚",
		Image:    "https://images.unsplash.com/photo-1524178232363-1fb2b075b655?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"講座", "教室", "学ぶ", "聞く", "セミナー", "講演", "大学", "研究"},
	},
	{
		Name:     "体験・参加",
		Icon:     "✨",
		Image:    "https://images.unsplash.com/photo-1515934751635-c81c6bc9a2d8?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"体験", "つくる", "参加", "ワークショップ", "フォトセッション", "作り"},
	},
	{
		Name:     "子ども・子育て",
		Icon:     "👶",
		Image:    "https://images.unsplash.com/photo-1485546246426-74dc88dec4d9?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"子ども", "子育て", "あかちゃん", "絵本", "おはなし", "ファミリー", "親子"},
	},
	{
		Name:     "健康・スポーツ",
		Icon:     "💪",
		Image:    "https://images.unsplash.com/photo-1571019614242-c5c5dee9f50b?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"健康", "スポーツ", "体操", "福祉", "相談", "ヘルス", "卓球", "リフレッシュ"},
	},
	{
		Name:     "文化・芸術",
		Icon:     "🎨",
		Image:    "https://images.unsplash.com/photo-1518998053901-5348d3969104?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"展示", "アート", "ギャラリー", "オペラ", "ピアノ", "フルート", "吹奏楽", "音楽", "歌", "美術"},
	},
	{
		Name:     CatchAll,
		Icon:     "📌",
		Image:    "https://images.unsplash.com/photo-1517048676732-d65bc937f952?auto=format&fit=crop&q=80&w=1000",
		Keywords: []string{"その他", "会議", "鑑定"},
	},
}

type compiledGenre struct {
	genre   Genre
	matcher *ahocorasick.Matcher // nil when the genre has no keywords
}

// Classifier maps (title, categories) to a genre using one Aho-Corasick
// automaton per genre, checked in table order.
type Classifier struct {
	mu       sync.Mutex // ahocorasick.Matcher keeps per-match state
	genres   []compiledGenre
	byName   map[string]Genre
	fallback Genre
}

// NewClassifier compiles table. The table must contain a genre named CatchAll.
func NewClassifier(table []Genre) *Classifier {
	c := &Classifier{
		genres: make([]compiledGenre, 0, len(table)),
		byName: make(map[string]Genre, len(table)),
	}
	for _, g := range table {
		keywords := make([]string, 0, len(g.Keywords))
		for _, kw := range g.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		cg := compiledGenre{genre: g}
		if len(keywords) > 0 {
			cg.matcher = ahocorasick.NewStringMatcher(keywords)
		}
		c.genres = append(c.genres, cg)
		c.byName[g.Name] = g
		if g.Name == CatchAll {
			c.fallback = g
		}
	}
	if c.fallback.Name == "" {
		c.fallback = Genre{Name: CatchAll}
	}
	return c
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the classifier built from Table.
func Default() *Classifier {
	defaultOnce.Do(func() {
		defaultClassifier = NewClassifier(Table)
	})
	return defaultClassifier
}

// Match returns the genre name for title and categories. It is a total,
// deterministic function: CatchAll is returned when nothing matches.
func (c *Classifier) Match(title string, categories []string) string {
	haystack := []byte(strings.ToLower(title + " " + strings.Join(categories, " ")))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cg := range c.genres {
		if cg.matcher != nil && cg.matcher.Contains(haystack) {
			return cg.genre.Name
		}
	}
	return c.fallback.Name
}

// Classify returns evt with Genre assigned and ImageURL filled from the
// genre's default image when the event has none. Classifying an already
// classified event yields the same result.
func (c *Classifier) Classify(evt event.Event) event.Event {
	evt.Genre = c.Match(evt.Title, evt.Categories)
	if evt.ImageURL == "" {
		evt.ImageURL = c.DefaultImage(evt.Genre)
	}
	return evt
}

// ClassifyAll classifies events in place and returns the slice.
func (c *Classifier) ClassifyAll(events []event.Event) []event.Event {
	for i := range events {
		events[i] = c.Classify(events[i])
	}
	return events
}

// DefaultImage returns the default image of genre, falling back to the
// catch-all image when the genre has none.
func (c *Classifier) DefaultImage(name string) string {
	if g, ok := c.byName[name]; ok && g.Image != "" {
		return g.Image
	}
	return c.fallback.Image
}

// Icon returns the icon for a genre, or the catch-all icon.
func (c *Classifier) Icon(name string) string {
	if g, ok := c.byName[name]; ok && g.Icon != "" {
		return g.Icon
	}
	if c.fallback.Icon != "" {
		return c.fallback.Icon
	}
	return "📌"
}

// Names returns genre names in table order.
func (c *Classifier) Names() []string {
	names := make([]string, 0, len(c.genres))
	for _, cg := range c.genres {
		names = append(names, cg.genre.Name)
	}
	return names
}

// IsValid reports whether name is a genre of the table.
func (c *Classifier) IsValid(name string) bool {
	_, ok := c.byName[name]
	return ok
}
