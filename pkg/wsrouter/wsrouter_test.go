package wsrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conn struct {
	id string
}

type seekInput struct {
	RoomId      string  `json:"roomId"`
	CurrentTime float64 `json:"currentTime"`
}

func TestServeMessage(t *testing.T) {
	r := New[*conn](nil)

	var calls []string
	r.Use(func(next HandlerFunc[*conn, any]) HandlerFunc[*conn, any] {
		return func(ctx context.Context, c *conn, payload any) error {
			calls = append(calls, "outer:"+GetMessageTypeFromCtx(ctx))
			return next(ctx, c, payload)
		}
	}, func(next HandlerFunc[*conn, any]) HandlerFunc[*conn, any] {
		return func(ctx context.Context, c *conn, payload any) error {
			calls = append(calls, "inner")
			return next(ctx, c, payload)
		}
	})

	var got seekInput
	Handle(r, "seek", func(ctx context.Context, c *conn, input seekInput) error {
		calls = append(calls, "handler:"+c.id)
		got = input
		return nil
	})

	err := r.ServeMessage(context.Background(), &conn{id: "c1"}, []byte(`{"type":"seek","payload":{"roomId":"r1","currentTime":12.5}}`))
	require.NoError(t, err)
	assert.Equal(t, seekInput{RoomId: "r1", CurrentTime: 12.5}, got)
	assert.Equal(t, []string{"outer:seek", "inner", "handler:c1"}, calls)
}

func TestServeMessageErrors(t *testing.T) {
	errInvalid := errors.New("invalid")
	r := New[*conn](func(payload any) error {
		if in, ok := payload.(seekInput); ok && in.RoomId == "" {
			return errInvalid
		}
		return nil
	})
	Handle(r, "seek", func(ctx context.Context, c *conn, input seekInput) error {
		return nil
	})

	ctx := context.Background()
	c := &conn{id: "c1"}

	err := r.ServeMessage(ctx, c, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	err = r.ServeMessage(ctx, c, []byte(`{"type":"rewind"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	err = r.ServeMessage(ctx, c, []byte(`{"type":"seek","payload":{"currentTime":"x"}}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	err = r.ServeMessage(ctx, c, []byte(`{"type":"seek","payload":{"currentTime":1}}`))
	assert.ErrorIs(t, err, errInvalid)
}
