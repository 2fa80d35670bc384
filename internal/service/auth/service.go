package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/repository/user"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenExpired    = fmt.Errorf("%w: token has expired", ErrUnauthenticated)
	ErrUnknownUser     = fmt.Errorf("%w: user not found", ErrUnauthenticated)
	ErrUnavailable     = errors.New("user directory unavailable")
)

// Identity is the authenticated user of a connection or request.
type Identity struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type iUserRepo interface {
	GetUser(ctx context.Context, userId string) (user.User, error)
}

type Config struct {
	Secret        string
	LookupTimeout time.Duration
}

type Service struct {
	userRepo      iUserRepo
	secret        []byte
	lookupTimeout time.Duration
	group         singleflight.Group
	now           func() time.Time
	logger        *slog.Logger
}

func NewService(userRepo iUserRepo, cfg *Config, logger *slog.Logger) *Service {
	return &Service{
		userRepo:      userRepo,
		secret:        []byte(cfg.Secret),
		lookupTimeout: cfg.LookupTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// Authenticate verifies a bearer token and resolves its user.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := s.parseJWT(token)
	if err != nil {
		return Identity{}, err
	}

	userId := claims.userId()
	if userId == "" {
		return Identity{}, fmt.Errorf("%w: token has no user", ErrInvalidToken)
	}

	v, err, _ := s.group.Do(userId, func() (any, error) {
		lookupCtx := ctx
		if s.lookupTimeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
			defer cancel()
		}

		return s.userRepo.GetUser(lookupCtx, userId)
	})
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return Identity{}, ErrUnknownUser
		}

		s.logger.WarnContext(ctx, "failed to look up user", "user_id", userId, "error", err)
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	u := v.(user.User)
	return Identity{
		UserId:   u.Id,
		Username: u.Name,
		Avatar:   u.Avatar,
	}, nil
}

// IssueToken signs a token for userId valid for ttl.
func (s *Service) IssueToken(userId string, ttl time.Duration) (string, error) {
	return s.generateJWT(userId, ttl)
}
