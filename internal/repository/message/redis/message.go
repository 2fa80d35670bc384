package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/message"
)

func (r repo) SetMessage(ctx context.Context, msg *message.Message) error {
	r.logger.DebugContext(ctx, "called", "message_id", msg.Id, "room_id", msg.RoomId)

	err := r.setMessage(ctx, msg)
	if isNoScript(err) {
		// script cache was flushed
		if err := appendScript.Load(ctx, r.rc).Err(); err != nil {
			return err
		}
		err = r.setMessage(ctx, msg)
	}

	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) setMessage(ctx context.Context, msg *message.Message) error {
	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getMessageKey(msg.Id),
		"id", msg.Id,
		"room_id", msg.RoomId,
		"user_id", msg.UserId,
		"username", msg.Username,
		"avatar", msg.Avatar,
		"text", msg.Text,
		"kind", msg.Kind,
		"video_timestamp", msg.VideoTimestamp,
		"reply_to", msg.ReplyTo,
		"is_deleted", msg.IsDeleted,
		"created_at", msg.CreatedAt,
		"deleted_at", msg.DeletedAt,
	)
	appendScript.EvalSha(ctx, pipe, []string{r.getRoomMessagesKey(msg.RoomId)}, msg.Id)

	return r.executePipe(ctx, pipe)
}

func (r repo) GetMessage(ctx context.Context, messageId string) (message.Message, error) {
	var msg message.Message
	if err := r.rc.HGetAll(ctx, r.getMessageKey(messageId)).Scan(&msg); err != nil {
		return message.Message{}, err
	}

	if msg.Id == "" {
		return message.Message{}, message.ErrMessageNotFound
	}

	return msg, nil
}

// GetMessages returns the window [Offset, Offset+Limit) counted from the
// newest visible message of the room, ordered oldest first.
func (r repo) GetMessages(ctx context.Context, params *message.GetMessagesParams) (message.GetMessagesResponse, error) {
	key := r.getRoomMessagesKey(params.RoomId)

	total, err := r.rc.ZCard(ctx, key).Result()
	if err != nil {
		return message.GetMessagesResponse{}, err
	}

	if params.Limit <= 0 || int64(params.Offset) >= total {
		return message.GetMessagesResponse{Messages: []message.Message{}, Total: int(total)}, nil
	}

	ids, err := r.rc.ZRevRange(ctx, key, int64(params.Offset), int64(params.Offset+params.Limit-1)).Result()
	if err != nil {
		return message.GetMessagesResponse{}, err
	}
	slices.Reverse(ids)

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getMessageKey(id)))
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return message.GetMessagesResponse{}, err
	}

	messages := make([]message.Message, 0, len(cmds))
	for _, cmd := range cmds {
		var msg message.Message
		if err := cmd.Scan(&msg); err != nil {
			return message.GetMessagesResponse{}, err
		}

		if msg.Id == "" {
			continue
		}

		messages = append(messages, msg)
	}

	return message.GetMessagesResponse{Messages: messages, Total: int(total)}, nil
}

// DeleteMessage soft-deletes a message and hides it from the room history.
func (r repo) DeleteMessage(ctx context.Context, params *message.DeleteMessageParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	msg, err := r.GetMessage(ctx, params.MessageId)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getMessageKey(params.MessageId),
		"is_deleted", true,
		"deleted_at", params.DeletedAt,
	)
	pipe.ZRem(ctx, r.getRoomMessagesKey(msg.RoomId), params.MessageId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetReactions(ctx context.Context, messageId string) ([]message.Reaction, error) {
	fields, err := r.rc.HGetAll(ctx, r.getReactionsKey(messageId)).Result()
	if err != nil {
		return nil, err
	}

	reactions := make([]message.Reaction, 0, len(fields))
	for userId, value := range fields {
		var reaction message.Reaction
		if err := json.Unmarshal([]byte(value), &reaction); err != nil {
			return nil, fmt.Errorf("failed to decode reaction of %s: %w", userId, err)
		}
		reaction.UserId = userId
		reactions = append(reactions, reaction)
	}

	slices.SortFunc(reactions, func(a, b message.Reaction) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}

		if a.UserId < b.UserId {
			return -1
		} else if a.UserId > b.UserId {
			return 1
		}
		return 0
	})

	return reactions, nil
}

// SetReaction stores the reaction of a user, replacing any previous one.
func (r repo) SetReaction(ctx context.Context, params *message.SetReactionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	value, err := json.Marshal(params.Reaction)
	if err != nil {
		return err
	}

	return r.rc.HSet(ctx, r.getReactionsKey(params.MessageId), params.Reaction.UserId, value).Err()
}

func (r repo) RemoveReaction(ctx context.Context, params *message.RemoveReactionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	return r.rc.HDel(ctx, r.getReactionsKey(params.MessageId), params.UserId).Err()
}
