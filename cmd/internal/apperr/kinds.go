package apperr

import "net/http"

// Kind is the closed set of domain error kinds. The zero value is KindInternal.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindDuplicateResource
	KindAuthentication
	KindInternalStore
	KindValidation
)

// Status returns the HTTP status carried by the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindDuplicateResource:
		return http.StatusConflict
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDuplicateResource:
		return "duplicate_resource"
	case KindAuthentication:
		return "authentication"
	case KindInternalStore:
		return "internal_store"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Default client-facing messages.
const (
	MsgAuthentication = "Could not validate credentials"
	MsgInternalStore  = "Internal database error occurred"
	MsgInternal       = "An unexpected error occurred"
)

// Sentinels for errors.Is matching by kind.
// ErrConflict also matches KindDuplicateResource.
var (
	ErrInternal          = &Error{Kind: KindInternal}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrDuplicateResource = &Error{Kind: KindDuplicateResource}
	ErrAuthentication    = &Error{Kind: KindAuthentication}
	ErrInternalStore     = &Error{Kind: KindInternalStore}
	ErrValidation        = &Error{Kind: KindValidation}
)
