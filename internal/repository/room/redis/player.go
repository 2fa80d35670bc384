package redis

import (
	"context"

	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	pipe := r.rc.TxPipeline()
	hSetStruct(ctx, pipe, r.getPlayerKey(params.RoomId), params.Player)
	pipe.HSet(ctx, r.getRoomKey(params.RoomId), "updated_at", params.Player.UpdatedAt)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	res := r.rc.HGetAll(ctx, r.getPlayerKey(roomId))
	fields, err := res.Result()
	if err != nil {
		return room.Player{}, err
	}

	if len(fields) == 0 {
		return room.Player{}, room.ErrPlayerNotFound
	}

	var player room.Player
	if err := res.Scan(&player); err != nil {
		return room.Player{}, err
	}

	return player, nil
}
