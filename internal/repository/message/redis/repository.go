package redis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// appendScript adds ARGV[1] to the sorted set KEYS[1] with a score one
// above the current maximum.
var appendScript = redis.NewScript(`
	local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	local nextScore = 1
	if #maxScore > 0 then
		nextScore = tonumber(maxScore[2]) + 1
	end
	redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
	return nextScore
`)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(ctx context.Context, rc *redis.Client, logger *slog.Logger) (*repo, error) {
	if err := appendScript.Load(ctx, rc).Err(); err != nil {
		return nil, err
	}

	return &repo{
		rc:     rc,
		logger: logger,
	}, nil
}

func (r repo) getMessageKey(messageId string) string {
	return "message:" + messageId
}

func (r repo) getReactionsKey(messageId string) string {
	return "message:" + messageId + ":reactions"
}

func (r repo) getRoomMessagesKey(roomId string) string {
	return "room:" + roomId + ":messages"
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

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}
