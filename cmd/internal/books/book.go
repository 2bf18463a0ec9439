package books

import (
	"fmt"
	"strings"
	"time"
)

// Resource is the name used in domain error messages.
const Resource = "Book"

// Book is a stored catalogue record.
type Book struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedDate Date   `json:"published_date"`
	Summary       string `json:"summary"`
	Genre         string `json:"genre"`
}

// NewBook is the input to Create.
type NewBook struct {
	Title         string
	Author        string
	PublishedDate Date
	Summary       string
	Genre         string
}

func (n NewBook) normalized() NewBook {
	n.Title = strings.TrimSpace(n.Title)
	n.Author = strings.TrimSpace(n.Author)
	return n
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanBook reads the id, title, author, published_date, summary, genre columns.
// The date column may arrive as time.Time (Postgres DATE) or text (SQLite).
func scanBook(row rowScanner) (Book, error) {
	var (
		b         Book
		published any
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &published, &b.Summary, &b.Genre); err != nil {
		return Book{}, err
	}
	switch v := published.(type) {
	case time.Time:
		b.PublishedDate = DateOf(v)
	case string:
		d, err := ParseDate(v)
		if err != nil {
			return Book{}, err
		}
		b.PublishedDate = d
	case []byte:
		d, err := ParseDate(string(v))
		if err != nil {
			return Book{}, err
		}
		b.PublishedDate = d
	default:
		return Book{}, fmt.Errorf("books: unexpected published_date type %T", published)
	}
	return b, nil
}
