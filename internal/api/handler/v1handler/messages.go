package v1handler

import (
	"chatrelay/pkg/content"
	"chatrelay/pkg/serrors"
	"errors"
	"io"
	"net/http"

	"github.com/go-faster/jx"
)

// MaxRequestBytes bounds the request body of ValidateMessage. A payload of
// content.MaxPayloadLength characters never needs more.
const MaxRequestBytes = content.MaxPayloadLength*4 + 1

// ContentKindHeader carries the classification of a validated message.
const ContentKindHeader = "X-Content-Kind"

// ValidateMessage runs the content pipeline on the request body and replies
// with the payload that would be broadcast.
func (h *Handler) ValidateMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, r, serrors.Wrap(serrors.ErrBadRequest, err, "request body exceeds %d bytes", tooLarge.Limit))

			return
		}
		h.WriteError(w, r, serrors.Wrap(serrors.ErrBadRequest, err, "could not read request body"))

		return
	}

	res := h.deps.Pipeline.Validate(r.Context(), string(body))
	w.Header().Set(ContentKindHeader, string(res.Kind))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Payload)
}

// Domains lists the trusted media domains.
func (h *Handler) Domains(w http.ResponseWriter, _ *http.Request) {
	domains := h.deps.Pipeline.TrustedDomains().Domains()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("domains")
		e.ArrStart()
		for _, d := range domains {
			e.Str(d)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
