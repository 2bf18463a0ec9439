package httpx

import (
	"log/slog"
	"net/http"

	"shelf/cmd/internal/apperr"
)

// ErrorBody is the wire form of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteError translates err and writes it. Operator detail (the cause) is
// logged; the client only sees the kind's message. 401 responses carry the
// Bearer challenge.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ae := apperr.From(err)
	if ae == nil {
		ae = apperr.Internal(nil)
	}

	if log != nil {
		attrs := []any{"kind", ae.Kind.String(), "status", ae.Status()}
		if r != nil {
			attrs = append(attrs, "method", r.Method, "path", r.URL.Path)
		}
		if ae.Cause != nil {
			attrs = append(attrs, "err", ae.Cause)
		}
		if ae.Status() >= http.StatusInternalServerError {
			log.Error("http.error", attrs...)
		} else {
			log.Debug("http.error", attrs...)
		}
	}

	if ae.Kind == apperr.KindAuthentication {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, ae.Status(), ErrorBody{Success: false, Message: ae.Message})
}

// WriteStatus writes an error body for a status outside the domain taxonomy
// (404/405 from the router, 429 from throttling).
func WriteStatus(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Success: false, Message: msg})
}
