package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

type ctxKey string

const (
	messageTypeKey ctxKey = "message_type"
)

func GetMessageTypeFromCtx(ctx context.Context) string {
	messageType, ok := ctx.Value(messageTypeKey).(string)
	if !ok {
		return ""
	}

	return messageType
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles a single decoded message received on conn.
type HandlerFunc[C, T any] func(ctx context.Context, conn C, payload T) error

type Middleware[C any] func(next HandlerFunc[C, any]) HandlerFunc[C, any]

// ValidateFunc is called with every decoded payload before it reaches
// its handler.
type ValidateFunc func(payload any) error

type route[C any] struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[C, any]
}

type WSRouter[C any] struct {
	routes      map[string]route[C]
	middlewares []Middleware[C]
	validate    ValidateFunc
}

func New[C any](validate ValidateFunc) *WSRouter[C] {
	return &WSRouter[C]{
		routes:   make(map[string]route[C]),
		validate: validate,
	}
}

// Use appends middlewares. Middlewares apply to routes registered after
// the call, the first one being the outermost.
func (r *WSRouter[C]) Use(mws ...Middleware[C]) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers a typed handler for messageType.
func Handle[C, T any](r *WSRouter[C], messageType string, handler HandlerFunc[C, T]) {
	var h HandlerFunc[C, any] = func(ctx context.Context, conn C, payload any) error {
		return handler(ctx, conn, payload.(T))
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	r.routes[messageType] = route[C]{
		decode: func(raw json.RawMessage) (any, error) {
			var payload T
			if len(raw) == 0 || string(raw) == "null" {
				return payload, nil
			}

			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, err
			}

			return payload, nil
		},
		handler: h,
	}
}

// ServeMessage decodes a {type, payload} envelope and dispatches it to
// the handler registered for its type.
func (r *WSRouter[C]) ServeMessage(ctx context.Context, conn C, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	rt, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	payload, err := rt.decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	if r.validate != nil {
		if err := r.validate(payload); err != nil {
			return err
		}
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)
	return rt.handler(ctx, conn, payload)
}
