package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

// Client is a live connection that outbound events can be queued to.
type Client interface {
	Id() string
	// Enqueue queues data for delivery without blocking. It reports false
	// when the client cannot keep up.
	Enqueue(data []byte) bool
	Close() error
}
