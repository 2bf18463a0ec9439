package books

import (
	"fmt"

	"shelf/cmd/internal/apperr"
)

// ErrDuplicateTitle is the DuplicateResource error for a taken title.
func ErrDuplicateTitle(title string) error {
	return apperr.Duplicate(Resource, fmt.Sprintf("Book with title '%s' already exists", title))
}

func notFound(id int64) error {
	return apperr.NotFound(Resource, id)
}
