package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
	}
}

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":members"
}

func (r repo) getMemberKey(roomId, userId string) string {
	return "room:" + roomId + ":member:" + userId
}

func (r repo) getPublicRoomsKey() string {
	return "rooms:public"
}

// getUserRoomsKey returns the key of the rooms a user is hosting or has
// joined, scored by room creation time.
func (r repo) getUserRoomsKey(userId, kind string) string {
	return "user:" + userId + ":rooms:" + kind
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
