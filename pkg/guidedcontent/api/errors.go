package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string                  `json:"error"`
	Kind  guidedcontent.ErrorKind `json:"kind"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch guidedcontent.KindOf(err) {
	case guidedcontent.KindUnknownKind, guidedcontent.KindPayloadRejected:
		return http.StatusBadRequest
	case guidedcontent.KindNotFound:
		return http.StatusNotFound
	case guidedcontent.KindStoreUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// badRequest marks a malformed body as a rejected payload.
func badRequest(err error) error {
	var pe *guidedcontent.PayloadError
	if errors.As(err, &pe) {
		return err
	}
	return &guidedcontent.PayloadError{Reason: "invalid request body: " + err.Error()}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	status := StatusFor(err)
	kind := guidedcontent.KindOf(err)

	attrs = append(attrs, "status", status, "error_kind", kind, "error", err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, attrs...)
	} else {
		h.logger.WarnContext(r.Context(), msg, attrs...)
	}

	text := err.Error()
	if kind == guidedcontent.KindInternal {
		text = "internal server error"
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: text, Kind: kind})
}
