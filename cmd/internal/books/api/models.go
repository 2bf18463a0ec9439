package booksapi

import "shelf/cmd/internal/books"

type createRequest struct {
	Title         string     `json:"title" validate:"required,max=512"`
	Author        string     `json:"author" validate:"required,max=256"`
	PublishedDate books.Date `json:"published_date"`
	Summary       string     `json:"summary" validate:"max=10000"`
	Genre         string     `json:"genre" validate:"max=128"`
}

func (c createRequest) toNewBook() books.NewBook {
	return books.NewBook{
		Title:         c.Title,
		Author:        c.Author,
		PublishedDate: c.PublishedDate,
		Summary:       c.Summary,
		Genre:         c.Genre,
	}
}

// patchRequest distinguishes absent fields (nil) from present ones.
type patchRequest struct {
	Title         *string     `json:"title" validate:"omitempty,min=1,max=512"`
	Author        *string     `json:"author" validate:"omitempty,min=1,max=256"`
	PublishedDate *books.Date `json:"published_date"`
	Summary       *string     `json:"summary" validate:"omitempty,max=10000"`
	Genre         *string     `json:"genre" validate:"omitempty,max=128"`
}

func (p patchRequest) toPatch() books.Patch {
	return books.Patch{
		Title:         p.Title,
		Author:        p.Author,
		PublishedDate: p.PublishedDate,
		Summary:       p.Summary,
		Genre:         p.Genre,
	}
}
