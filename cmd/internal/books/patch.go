package books

import "strings"

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title         *string
	Author        *string
	PublishedDate *Date
	Summary       *string
	Genre         *string
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.PublishedDate == nil && p.Summary == nil && p.Genre == nil
}

// retitles reports whether p moves b to a different title.
func (p Patch) retitles(b Book) bool {
	return p.Title != nil && strings.TrimSpace(*p.Title) != b.Title
}

// apply returns b with each present field of p applied.
func (p Patch) apply(b Book) Book {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.PublishedDate != nil {
		b.PublishedDate = *p.PublishedDate
	}
	if p.Summary != nil {
		b.Summary = *p.Summary
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	return b
}
