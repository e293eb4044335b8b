package browser

import "github.com/lehigh-university-libraries/coverlens/internal/models"

// AllCategories is the sentinel category that disables the category facet
const AllCategories = "All"

// Filter returns the books of raw that satisfy both facets, in their original
// order. A book passes when the category facet is AllCategories or equals its
// category, and its similarity (as a percentage) reaches thresholdPercent.
// Books without a similarity score count as 0%.
func Filter(raw []models.Book, thresholdPercent int, category string) []models.Book {
	filtered := make([]models.Book, 0, len(raw))
	for _, book := range raw {
		if Matches(book, thresholdPercent, category) {
			filtered = append(filtered, book)
		}
	}
	return filtered
}

// Matches is the per-book facet predicate used by Filter
func Matches(book models.Book, thresholdPercent int, category string) bool {
	if category != AllCategories && book.Category != category {
		return false
	}
	return book.SimilarityPercent() >= float64(thresholdPercent)
}

// Categories lists AllCategories followed by the distinct non-empty categories
// of raw in order of first appearance
func Categories(raw []models.Book) []string {
	categories := []string{AllCategories}
	seen := make(map[string]bool)
	for _, book := range raw {
		if book.Category == "" || seen[book.Category] {
			continue
		}
		seen[book.Category] = true
		categories = append(categories, book.Category)
	}
	return categories
}
