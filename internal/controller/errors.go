package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sharetube/watchparty/internal/service/auth"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

const (
	codeUnauthenticated   = "UNAUTHENTICATED"
	codeNotFound          = "NOT_FOUND"
	codeForbidden         = "FORBIDDEN"
	codeInvalidArgument   = "INVALID_ARGUMENT"
	codeResourceExhausted = "RESOURCE_EXHAUSTED"
	codeUnavailable       = "UNAVAILABLE"
	codeInternal          = "INTERNAL"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mapError classifies err into a client facing code, HTTP status and
// message. Store and internal failure details are not exposed.
func mapError(err error) (errorPayload, int) {
	message := err.Error()
	var roomErr *room.Error
	if errors.As(err, &roomErr) {
		message = roomErr.Message
	}

	switch {
	case errors.Is(err, room.ErrUnauthenticated), errors.Is(err, auth.ErrUnauthenticated):
		return errorPayload{codeUnauthenticated, "authentication required"}, http.StatusUnauthorized
	case errors.Is(err, room.ErrNotFound):
		return errorPayload{codeNotFound, message}, http.StatusNotFound
	case errors.Is(err, room.ErrForbidden):
		return errorPayload{codeForbidden, message}, http.StatusForbidden
	case errors.Is(err, room.ErrResourceExhausted):
		return errorPayload{codeResourceExhausted, message}, http.StatusConflict
	case errors.Is(err, room.ErrInvalidArgument),
		errors.Is(err, rest.ErrInvalidBody),
		errors.Is(err, wsrouter.ErrInvalidMessage),
		errors.Is(err, wsrouter.ErrUnknownMessageType):
		return errorPayload{codeInvalidArgument, message}, http.StatusBadRequest
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return errorPayload{codeInvalidArgument, message}, http.StatusBadRequest
	}

	if roomErr != nil && errors.Is(err, room.ErrTransient) {
		return errorPayload{codeUnavailable, roomErr.Message}, http.StatusServiceUnavailable
	}

	if errors.Is(err, room.ErrTransient) || errors.Is(err, auth.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return errorPayload{codeUnavailable, "temporarily unavailable, try again"}, http.StatusServiceUnavailable
	}

	return errorPayload{codeInternal, "internal error"}, http.StatusInternalServerError
}

// sendError reports err to the client only.
func (c *controller) sendError(ctx context.Context, cl *client, err error) {
	payload, status := mapError(err)
	if status >= http.StatusInternalServerError {
		c.logger.WarnContext(ctx, "intent failed", "error", err)
	} else {
		c.logger.DebugContext(ctx, "intent rejected", "error", err)
	}

	data, err := json.Marshal(&room.Output{
		Type:    "error",
		Payload: payload,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode error", "error", err)
		return
	}

	if !cl.Enqueue(data) {
		cl.Close()
	}
}

func (c *controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	payload, status := mapError(err)
	if status >= http.StatusInternalServerError {
		c.logger.WarnContext(r.Context(), "request failed", "error", err)
	} else {
		c.logger.DebugContext(r.Context(), "request rejected", "error", err)
	}

	resp := &rest.ErrorResponse{Code: payload.Code, Message: payload.Message}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		resp.Message = "validation failed"
		resp.Details = []validator.ValidationError(validationErrs)
	}

	rest.WriteError(w, status, resp)
}
