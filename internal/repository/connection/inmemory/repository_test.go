package inmemory

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id string
}

func (c *fakeClient) Id() string               { return c.id }
func (c *fakeClient) Enqueue(data []byte) bool { return true }
func (c *fakeClient) Close() error             { return nil }

func newTestRepo() *repo {
	return NewRepo(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddGetRemove(t *testing.T) {
	r := newTestRepo()

	require.NoError(t, r.Add(&fakeClient{id: "c1"}))
	assert.ErrorIs(t, r.Add(&fakeClient{id: "c1"}), connection.ErrAlreadyExists)

	client, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", client.Id())

	require.NoError(t, r.Remove("c1"))
	_, err = r.Get("c1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.ErrorIs(t, r.Remove("c1"), connection.ErrNotFound)
}

func TestGroups(t *testing.T) {
	r := newTestRepo()
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, r.Add(&fakeClient{id: id}))
	}

	require.NoError(t, r.Join("room-a", "c1"))
	require.NoError(t, r.Join("room-a", "c2"))
	require.NoError(t, r.Join("room-b", "c3"))
	assert.ErrorIs(t, r.Join("room-a", "missing"), connection.ErrNotFound)

	assert.Len(t, r.GetGroup("room-a"), 2)
	assert.Equal(t, "room-a", r.GetRoomId("c1"))

	// moving to another group leaves the previous one
	require.NoError(t, r.Join("room-b", "c1"))
	assert.Len(t, r.GetGroup("room-a"), 1)
	assert.Len(t, r.GetGroup("room-b"), 2)

	assert.False(t, r.Leave("room-a", "c1"))
	assert.True(t, r.Leave("room-b", "c1"))
	assert.Equal(t, "", r.GetRoomId("c1"))

	require.NoError(t, r.Remove("c3"))
	assert.Empty(t, r.GetGroup("room-b"))

	assert.ElementsMatch(t, []string{"c2"}, r.RemoveGroup("room-a"))
	assert.Empty(t, r.GetGroup("room-a"))
	assert.Equal(t, "", r.GetRoomId("c2"))
	assert.Len(t, r.All(), 2)
}
