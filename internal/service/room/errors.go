package room

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service wraps one of them.
var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrTransient         = errors.New("temporarily unavailable")
)

// Error is a failure with a message meant for the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

var (
	ErrRoomNotFound        = &Error{ErrNotFound, "room not found"}
	ErrCatalogItemNotFound = &Error{ErrNotFound, "movie not found"}
	ErrMessageNotFound     = &Error{ErrNotFound, "message not found"}
	ErrWrongPassword       = &Error{ErrForbidden, "wrong room password"}
	ErrNotHost             = &Error{ErrForbidden, "only the host can do this"}
	ErrNotMember           = &Error{ErrForbidden, "you are not in this room"}
	ErrControlDenied       = &Error{ErrForbidden, "only the host can control the video"}
	ErrChatDisabled        = &Error{ErrForbidden, "chat is disabled in this room"}
	ErrNotAuthor           = &Error{ErrForbidden, "only the author or the host can delete this message"}
	ErrRoomFull            = &Error{ErrResourceExhausted, "room is full"}
	ErrRoomBusy            = &Error{ErrTransient, "room is busy, try again"}
	ErrShuttingDown        = &Error{ErrTransient, "server is shutting down"}
)

func invalidArgument(err error) error {
	return &Error{ErrInvalidArgument, err.Error()}
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
