package browser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lehigh-university-libraries/coverlens/internal/models"
)

func TestFilterScenario(t *testing.T) {
	raw := []models.Book{
		{ID: "1", Category: "Fiction", Similarity: sim(0.92)},
		{ID: "2", Category: "Poetry", Similarity: sim(0.41)},
	}

	tests := []struct {
		name      string
		threshold int
		category  string
		want      []string
	}{
		{name: "no facets", threshold: 0, category: AllCategories, want: []string{"1", "2"}},
		{name: "threshold 50", threshold: 50, category: AllCategories, want: []string{"1"}},
		{name: "poetry only", threshold: 0, category: "Poetry", want: []string{"2"}},
		{name: "poetry above 50", threshold: 50, category: "Poetry", want: []string{}},
		{name: "boundary is inclusive", threshold: 41, category: AllCategories, want: []string{"1", "2"}},
		{name: "threshold 100", threshold: 100, category: AllCategories, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(raw, tt.threshold, tt.category)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterSubsetAndCompleteness(t *testing.T) {
	categories := []string{"Fiction", "Poetry", "", "History"}
	raw := make([]models.Book, 0, 40)
	for i := 0; i < 40; i++ {
		raw = append(raw, models.Book{
			ID:         fmt.Sprintf("b%d", i),
			Category:   categories[i%len(categories)],
			Similarity: sim(float64((i*37)%101) / 100),
		})
	}

	for _, category := range append([]string{AllCategories}, categories...) {
		for threshold := 0; threshold <= 100; threshold += 10 {
			got := Filter(raw, threshold, category)

			// every kept book satisfies the predicate, in original order
			pos := -1
			for _, b := range got {
				assert.True(t, Matches(b, threshold, category))
				idx := indexOf(raw, b.ID)
				assert.Greater(t, idx, pos, "order must be preserved")
				pos = idx
			}

			// every matching raw book is kept
			want := 0
			for _, b := range raw {
				if Matches(b, threshold, category) {
					want++
				}
			}
			assert.Len(t, got, want)
		}
	}
}

func TestFilterMissingSimilarity(t *testing.T) {
	raw := []models.Book{{ID: "query"}, {ID: "match", Similarity: sim(0.8)}}

	assert.Equal(t, []string{"query", "match"}, ids(Filter(raw, 0, AllCategories)))
	assert.Equal(t, []string{"match"}, ids(Filter(raw, 1, AllCategories)))
}

func TestFilterUncategorizedOnlyMatchesAll(t *testing.T) {
	raw := []models.Book{{ID: "1", Similarity: sim(0.5)}}
	assert.Len(t, Filter(raw, 0, AllCategories), 1)
	assert.Empty(t, Filter(raw, 0, ""))
}

func TestFilterEmpty(t *testing.T) {
	assert.Empty(t, Filter(nil, 0, AllCategories))
	assert.Equal(t, []string{AllCategories}, Categories(nil))
}

func TestCategories(t *testing.T) {
	raw := []models.Book{
		{Category: "Poetry"},
		{Category: ""},
		{Category: "Fiction"},
		{Category: "Poetry"},
	}
	assert.Equal(t, []string{AllCategories, "Poetry", "Fiction"}, Categories(raw))
}

func ids(books []models.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}

func indexOf(books []models.Book, id string) int {
	for i, b := range books {
		if b.ID == id {
			return i
		}
	}
	return -1
}
