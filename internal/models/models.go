package models

import "math"

// Book represents one catalog entry as returned by the collection store or
// the similarity search service
type Book struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Category      string   `json:"category,omitempty"`        // empty means uncategorized
	CoverImageURL string   `json:"cover_image_url,omitempty"` // resolved through the image proxy
	Similarity    *float64 `json:"similarity,omitempty"`      // only set on search results
}

// SimilarityPercent returns the similarity score scaled to 0-100, rounded to
// nine decimals so that 0.29 compares equal to 29. Books without a score
// report 0.
func (b Book) SimilarityPercent() float64 {
	if b.Similarity == nil {
		return 0
	}
	return math.Round(*b.Similarity*100*1e9) / 1e9
}

// BookDetails holds the lazily fetched extended information for a book
type BookDetails struct {
	Description  string `json:"description"`
	PublishDate  string `json:"publish_date"`
	ExternalLink string `json:"open_library_link,omitempty"`
}

// CollectionPage is one page of the paginated book collection
type CollectionPage struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
}
