// Package v1handler implements the version 1 HTTP endpoints of the relay:
// message validation, the trusted domain list, health and the simulated
// error used to exercise alerting.
package v1handler

import (
	"chatrelay/pkg/alert"
	"chatrelay/pkg/content"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/serrors"
	"context"
	"errors"
	"net/http"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// Deps are the collaborators of the handlers.
type Deps struct {
	Pipeline    *content.Pipeline
	Alerts      *alert.Dispatcher
	Environment string
}

// Handler serves the v1 endpoints.
type Handler struct {
	deps Deps
}

// New creates a Handler. A nil pipeline uses the built-in trusted domains.
func New(deps Deps) *Handler {
	if deps.Pipeline == nil {
		deps.Pipeline = content.NewPipeline(nil)
	}

	return &Handler{deps: deps}
}

// Error is the body of an error response.
type Error struct {
	Code    string
	Message string
}

// ErrorResponse pairs an error body with its HTTP status code.
type ErrorResponse struct {
	StatusCode int
	Response   Error
}

// NewError maps err onto an error response using its semantic kind. Errors
// without a known kind become opaque internal errors.
func (h *Handler) NewError(ctx context.Context, err error) *ErrorResponse {
	var (
		status int
		msg    string
	)
	kind := serrors.KindOf(err)
	switch kind {
	case serrors.ErrBadRequest, serrors.ErrMalformedInput:
		status, msg = http.StatusBadRequest, "bad request"
	case serrors.ErrUntrustedContent, serrors.ErrMaliciousContent:
		status, msg = http.StatusUnprocessableEntity, "content rejected"
	case serrors.ErrNotFound:
		status, msg = http.StatusNotFound, "resource not found"
	case serrors.ErrUnavailable:
		status, msg = http.StatusServiceUnavailable, "service unavailable"
	default:
		logger.Error(ctx, "request failed", zap.Error(err))

		return &ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Response:   Error{Code: serrors.ErrInternal.Error(), Message: "internal error"},
		}
	}

	logger.Debug(ctx, "request rejected", zap.Error(err))
	var se *serrors.Error
	if errors.As(err, &se) && se.Message() != "" {
		msg = se.Message()
	}

	return &ErrorResponse{StatusCode: status, Response: Error{Code: kind.Error(), Message: msg}}
}

// WriteError writes the response NewError builds for err.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	res := h.NewError(r.Context(), err)
	writeJSON(w, res.StatusCode, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(res.Response.Code)
		e.FieldStart("message")
		e.Str(res.Response.Message)
		e.ObjEnd()
	})
}

// writeJSON encodes a body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
