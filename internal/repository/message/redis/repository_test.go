package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	r, err := NewRepo(context.Background(), rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return r, s
}

func addMessages(t *testing.T, r *repo, roomId string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, r.SetMessage(context.Background(), &message.Message{
			Id:        fmt.Sprintf("%s-m%02d", roomId, i),
			RoomId:    roomId,
			UserId:    "alice",
			Username:  "Alice",
			Text:      fmt.Sprintf("message %d", i),
			Kind:      message.KindMessage,
			CreatedAt: int64(1000 + i),
		}))
	}
}

func TestSetGetMessage(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	msg := message.Message{
		Id:             "m1",
		RoomId:         "room-1",
		UserId:         "alice",
		Username:       "Alice",
		Avatar:         "https://example.com/a.png",
		Text:           "hello",
		Kind:           message.KindMessage,
		VideoTimestamp: 12.5,
		ReplyTo:        "m0",
		CreatedAt:      1000,
	}
	require.NoError(t, r.SetMessage(ctx, &msg))

	got, err := r.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	_, err = r.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, message.ErrMessageNotFound)
}

func TestGetMessagesPages(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	addMessages(t, r, "room-1", 5)
	addMessages(t, r, "room-2", 1)

	resp, err := r.GetMessages(ctx, &message.GetMessagesParams{RoomId: "room-1", Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "room-1-m03", resp.Messages[0].Id)
	assert.Equal(t, "room-1-m04", resp.Messages[1].Id)

	resp, err = r.GetMessages(ctx, &message.GetMessagesParams{RoomId: "room-1", Offset: 4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "room-1-m00", resp.Messages[0].Id)

	resp, err = r.GetMessages(ctx, &message.GetMessagesParams{RoomId: "room-1", Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)

	resp, err = r.GetMessages(ctx, &message.GetMessagesParams{RoomId: "empty", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Messages)
}

func TestDeleteMessage(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	addMessages(t, r, "room-1", 3)

	require.NoError(t, r.DeleteMessage(ctx, &message.DeleteMessageParams{MessageId: "room-1-m01", DeletedAt: 5000}))

	got, err := r.GetMessage(ctx, "room-1-m01")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, int64(5000), got.DeletedAt)

	resp, err := r.GetMessages(ctx, &message.GetMessagesParams{RoomId: "room-1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "room-1-m00", resp.Messages[0].Id)
	assert.Equal(t, "room-1-m02", resp.Messages[1].Id)

	err = r.DeleteMessage(ctx, &message.DeleteMessageParams{MessageId: "missing"})
	assert.ErrorIs(t, err, message.ErrMessageNotFound)
}

func TestReactions(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetReaction(ctx, &message.SetReactionParams{
		MessageId: "m1",
		Reaction:  message.Reaction{UserId: "bob", Emoji: "👍", CreatedAt: 2},
	}))
	require.NoError(t, r.SetReaction(ctx, &message.SetReactionParams{
		MessageId: "m1",
		Reaction:  message.Reaction{UserId: "alice", Emoji: "❤️", CreatedAt: 1},
	}))
	require.NoError(t, r.SetReaction(ctx, &message.SetReactionParams{
		MessageId: "m1",
		Reaction:  message.Reaction{UserId: "bob", Emoji: "😂", CreatedAt: 3},
	}))

	reactions, err := r.GetReactions(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []message.Reaction{
		{UserId: "alice", Emoji: "❤️", CreatedAt: 1},
		{UserId: "bob", Emoji: "😂", CreatedAt: 3},
	}, reactions)

	require.NoError(t, r.RemoveReaction(ctx, &message.RemoveReactionParams{MessageId: "m1", UserId: "alice"}))

	reactions, err = r.GetReactions(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, reactions, 1)
}
