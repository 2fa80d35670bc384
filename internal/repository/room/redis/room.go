package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.Room.Id)

	roomId := params.Room.Id
	score := float64(params.Room.CreatedAt)
	pipe := r.rc.TxPipeline()

	hSetStruct(ctx, pipe, r.getRoomKey(roomId), params.Room)
	hSetStruct(ctx, pipe, r.getPlayerKey(roomId), params.Player)
	r.writeMembers(ctx, pipe, roomId, params.Room.CreatedAt, nil, params.Members)

	if !params.Room.IsPrivate {
		pipe.ZAdd(ctx, r.getPublicRoomsKey(), redis.Z{Score: score, Member: roomId})
	}
	pipe.ZAdd(ctx, r.getUserRoomsKey(params.Room.HostId, room.UserRoomsHosting), redis.Z{Score: score, Member: roomId})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		return room.Room{}, err
	}

	if rm.Id == "" {
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

func (r repo) UpdateRoom(ctx context.Context, params *room.UpdateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	roomKey := r.getRoomKey(params.RoomId)
	exists, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return err
	}

	if exists == 0 {
		return room.ErrRoomNotFound
	}

	fields := make(map[string]any, len(params.Fields)+1)
	for k, v := range params.Fields {
		fields[k] = v
	}
	fields["updated_at"] = params.UpdatedAt

	return r.rc.HSet(ctx, roomKey, fields).Err()
}

// EndRoom marks the room ended and drops its member list and its entries
// in the user indexes. The room record and chat history are kept; only
// the player state expires.
func (r repo) EndRoom(ctx context.Context, params *room.EndRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	memberIds, head, err := r.getHead(ctx, params.RoomId)
	if err != nil {
		return err
	}

	roomKey := r.getRoomKey(params.RoomId)
	pipe := r.rc.TxPipeline()

	pipe.HSet(ctx, roomKey,
		"status", room.StatusEnded,
		"ended_at", params.EndedAt,
		"updated_at", params.EndedAt,
	)
	pipe.Del(ctx, r.getMemberListKey(params.RoomId))
	for _, memberId := range memberIds {
		pipe.Del(ctx, r.getMemberKey(params.RoomId, memberId))
		pipe.ZRem(ctx, r.getUserRoomsKey(memberId, room.UserRoomsJoined), params.RoomId)
	}
	if head.HostId != "" {
		pipe.ZRem(ctx, r.getUserRoomsKey(head.HostId, room.UserRoomsHosting), params.RoomId)
	}

	if params.Expiration > 0 {
		pipe.Expire(ctx, r.getPlayerKey(params.RoomId), params.Expiration)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// ListPublicRooms pages through public rooms, newest first. Filtering by
// catalog item or title walks the whole index.
func (r repo) ListPublicRooms(ctx context.Context, params *room.ListPublicRoomsParams) (room.ListPublicRoomsResponse, error) {
	key := r.getPublicRoomsKey()

	if params.CatalogItemId == "" && params.Search == "" {
		pipe := r.rc.Pipeline()
		totalCmd := pipe.ZCard(ctx, key)
		idsCmd := pipe.ZRevRange(ctx, key, int64(params.Offset), int64(params.Offset+params.Limit-1))
		if err := r.executePipe(ctx, pipe); err != nil {
			return room.ListPublicRoomsResponse{}, err
		}

		rooms, err := r.getListings(ctx, idsCmd.Val())
		if err != nil {
			return room.ListPublicRoomsResponse{}, err
		}

		return room.ListPublicRoomsResponse{Rooms: rooms, Total: int(totalCmd.Val())}, nil
	}

	ids, err := r.rc.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return room.ListPublicRoomsResponse{}, err
	}

	all, err := r.getListings(ctx, ids)
	if err != nil {
		return room.ListPublicRoomsResponse{}, err
	}

	search := strings.ToLower(params.Search)
	matched := make([]room.RoomListing, 0, len(all))
	for _, l := range all {
		if params.CatalogItemId != "" && l.Room.CatalogItemId != params.CatalogItemId {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Room.Title), search) {
			continue
		}
		matched = append(matched, l)
	}

	resp := room.ListPublicRoomsResponse{Total: len(matched)}
	if params.Offset < len(matched) {
		end := min(params.Offset+params.Limit, len(matched))
		resp.Rooms = matched[params.Offset:end]
	}

	return resp, nil
}

// ListUserRooms returns the active rooms a user is hosting or has joined,
// newest first.
func (r repo) ListUserRooms(ctx context.Context, params *room.ListUserRoomsParams) ([]room.RoomListing, error) {
	ids, err := r.rc.ZRevRange(ctx, r.getUserRoomsKey(params.UserId, params.Kind), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	all, err := r.getListings(ctx, ids)
	if err != nil {
		return nil, err
	}

	rooms := make([]room.RoomListing, 0, len(all))
	for _, l := range all {
		if l.Room.Status != room.StatusActive {
			continue
		}
		if params.Kind == room.UserRoomsHosting && l.Room.HostId != params.UserId {
			continue
		}
		rooms = append(rooms, l)
	}

	return rooms, nil
}

// getListings reads the rooms with the given ids, skipping missing ones.
func (r repo) getListings(ctx context.Context, ids []string) ([]room.RoomListing, error) {
	if len(ids) == 0 {
		return []room.RoomListing{}, nil
	}

	pipe := r.rc.Pipeline()
	roomCmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	countCmds := make([]*redis.IntCmd, 0, len(ids))
	for _, id := range ids {
		roomCmds = append(roomCmds, pipe.HGetAll(ctx, r.getRoomKey(id)))
		countCmds = append(countCmds, pipe.ZCard(ctx, r.getMemberListKey(id)))
	}
	if err := r.executePipe(ctx, pipe); err != nil {
		return nil, err
	}

	listings := make([]room.RoomListing, 0, len(ids))
	for i, cmd := range roomCmds {
		var rm room.Room
		if err := cmd.Scan(&rm); err != nil {
			return nil, err
		}
		if rm.Id == "" {
			continue
		}

		listings = append(listings, room.RoomListing{
			Room:        rm,
			MemberCount: int(countCmds[i].Val()),
		})
	}

	return listings, nil
}
