package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/watchparty/internal/repository/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRepoStub struct {
	users map[string]user.User
	err   error
}

func (r userRepoStub) GetUser(ctx context.Context, userId string) (user.User, error) {
	if r.err != nil {
		return user.User{}, r.err
	}

	u, ok := r.users[userId]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}

	return u, nil
}

func newTestService(repo iUserRepo) *Service {
	return NewService(repo, &Config{Secret: "test-secret", LookupTimeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthenticate(t *testing.T) {
	s := newTestService(userRepoStub{users: map[string]user.User{
		"u1": {Id: "u1", Name: "Alice", Avatar: "a.png"},
	}})
	ctx := context.Background()

	token, err := s.IssueToken("u1", time.Hour)
	require.NoError(t, err)

	identity, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserId: "u1", Username: "Alice", Avatar: "a.png"}, identity)

	unknown, err := s.IssueToken("u2", time.Hour)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, unknown)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	s := newTestService(userRepoStub{users: map[string]user.User{"u1": {Id: "u1"}}})
	ctx := context.Background()

	_, err := s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := newTestService(nil)
	other.secret = []byte("another-secret")
	forged, err := other.IssueToken("u1", time.Hour)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := s.IssueToken("u1", time.Hour)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthenticateSubjectFallback(t *testing.T) {
	s := newTestService(userRepoStub{users: map[string]user.User{"u1": {Id: "u1", Name: "Alice"}}})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u1",
	}).SignedString(s.secret)
	require.NoError(t, err)

	identity, err := s.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserId)
}

func TestAuthenticateDirectoryUnavailable(t *testing.T) {
	s := newTestService(userRepoStub{err: errors.New("connection refused")})

	token, err := s.IssueToken("u1", time.Hour)
	require.NoError(t, err)

	_, err = s.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
