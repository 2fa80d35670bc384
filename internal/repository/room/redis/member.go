package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

// writeMembers queues commands replacing the member list of a room.
// Members are scored by their position so the order survives a reload.
// The joined index of every user entering or leaving the list is kept
// in step, scored by createdAt.
func (r repo) writeMembers(ctx context.Context, pipe redis.Pipeliner, roomId string, createdAt int64, oldIds []string, members []room.Member) {
	memberListKey := r.getMemberListKey(roomId)

	keep := make(map[string]struct{}, len(members))
	for _, m := range members {
		keep[m.UserId] = struct{}{}
	}

	pipe.Del(ctx, memberListKey)
	for _, id := range oldIds {
		if _, ok := keep[id]; !ok {
			pipe.Del(ctx, r.getMemberKey(roomId, id))
			pipe.ZRem(ctx, r.getUserRoomsKey(id, room.UserRoomsJoined), roomId)
		}
	}

	for i, m := range members {
		hSetStruct(ctx, pipe, r.getMemberKey(roomId, m.UserId), m)
		pipe.ZAdd(ctx, memberListKey, redis.Z{Score: float64(i), Member: m.UserId})
		pipe.ZAdd(ctx, r.getUserRoomsKey(m.UserId, room.UserRoomsJoined), redis.Z{Score: float64(createdAt), Member: roomId})
	}
}

type roomHead struct {
	HostId    string `redis:"host_id"`
	CreatedAt int64  `redis:"created_at"`
}

// getHead reads the member ids and the host of a room.
func (r repo) getHead(ctx context.Context, roomId string) ([]string, roomHead, error) {
	pipe := r.rc.Pipeline()
	idsCmd := pipe.ZRange(ctx, r.getMemberListKey(roomId), 0, -1)
	headCmd := pipe.HMGet(ctx, r.getRoomKey(roomId), "host_id", "created_at")
	if err := r.executePipe(ctx, pipe); err != nil {
		return nil, roomHead{}, err
	}

	var head roomHead
	if err := headCmd.Scan(&head); err != nil {
		return nil, roomHead{}, err
	}

	return idsCmd.Val(), head, nil
}

func (r repo) SetMembers(ctx context.Context, params *room.SetMembersParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	oldIds, head, err := r.getHead(ctx, params.RoomId)
	if err != nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getRoomKey(params.RoomId),
		"host_id", params.HostId,
		"updated_at", params.UpdatedAt,
	)
	if head.HostId != params.HostId {
		if head.HostId != "" {
			pipe.ZRem(ctx, r.getUserRoomsKey(head.HostId, room.UserRoomsHosting), params.RoomId)
		}
		pipe.ZAdd(ctx, r.getUserRoomsKey(params.HostId, room.UserRoomsHosting), redis.Z{
			Score:  float64(head.CreatedAt),
			Member: params.RoomId,
		})
	}
	r.writeMembers(ctx, pipe, params.RoomId, head.CreatedAt, oldIds, params.Members)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetMembers(ctx context.Context, roomId string) ([]room.Member, error) {
	ids, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, r.getMemberKey(roomId, id)))
	}
	if len(cmds) > 0 {
		if err := r.executePipe(ctx, pipe); err != nil {
			return nil, err
		}
	}

	members := make([]room.Member, 0, len(cmds))
	for _, cmd := range cmds {
		var m room.Member
		if err := cmd.Scan(&m); err != nil {
			return nil, err
		}
		if m.UserId == "" {
			continue
		}
		members = append(members, m)
	}

	return members, nil
}
