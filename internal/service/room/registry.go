package room

import (
	"context"
	"errors"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/room"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/semaphore"
)

// roomEntry holds the live state of one room. sem serializes every
// operation on the room; room and removed are only accessed while
// holding it.
type roomEntry struct {
	sem     *semaphore.Weighted
	room    *Room
	removed bool
}

// registry is the process-local index of live rooms.
type registry struct {
	mu     sync.Mutex
	rooms  map[string]*roomEntry
	closed bool
}

func newRegistry() *registry {
	return &registry{rooms: make(map[string]*roomEntry)}
}

func (r *registry) entry(roomId string) (*roomEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrShuttingDown
	}

	e, ok := r.rooms[roomId]
	if !ok {
		e = &roomEntry{sem: semaphore.NewWeighted(1)}
		r.rooms[roomId] = e
	}

	return e, nil
}

func (r *registry) put(roomId string, rm *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShuttingDown
	}

	r.rooms[roomId] = &roomEntry{sem: semaphore.NewWeighted(1), room: rm}
	return nil
}

// remove drops e from the index. Must be called holding e.sem.
func (r *registry) remove(roomId string, e *roomEntry) {
	e.removed = true

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomId] == e {
		delete(r.rooms, roomId)
	}
}

func (r *registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

func (r *registry) close() []*roomEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return maps.Values(r.rooms)
}

// lockRoom acquires the room lock and returns the live room, loading it
// from the store when it is not indexed yet. Only active rooms are
// returned. The caller must call the returned release func.
func (s *service) lockRoom(ctx context.Context, roomId string) (*roomEntry, func(), error) {
	e, err := s.registry.entry(roomId)
	if err != nil {
		return nil, nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = e.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, ErrRoomBusy
	}

	release := func() { e.sem.Release(1) }

	if e.removed {
		release()
		return nil, nil, ErrRoomNotFound
	}

	if s.registry.isClosed() {
		release()
		return nil, nil, ErrShuttingDown
	}

	if e.room == nil {
		rm, err := s.loadRoom(ctx, roomId)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.registry.remove(roomId, e)
			}
			release()
			return nil, nil, err
		}
		e.room = rm
	}

	return e, release, nil
}

// loadRoom reads an active room from the store. Participants are not
// restored: nobody is connected to a room this process did not hold.
func (s *service) loadRoom(ctx context.Context, roomId string) (*Room, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, storeError(err)
	}

	if rm.Status != room.StatusActive {
		return nil, ErrRoomNotFound
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil && !errors.Is(err, room.ErrPlayerNotFound) {
		return nil, storeError(err)
	}

	members, err := s.roomRepo.GetMembers(ctx, roomId)
	if err != nil {
		return nil, storeError(err)
	}

	// members left behind by a previous process are cleared so the store
	// and the user indexes match the empty room
	if len(members) > 0 {
		if err := s.roomRepo.SetMembers(ctx, &room.SetMembersParams{
			RoomId:    roomId,
			HostId:    rm.HostId,
			Members:   []room.Member{},
			UpdatedAt: rm.UpdatedAt,
		}); err != nil {
			return nil, storeError(err)
		}
		s.logger.InfoContext(ctx, "stale members cleared", "room_id", roomId, "count", len(members))
	}

	s.logger.DebugContext(ctx, "room loaded from store", "room_id", roomId)
	return roomFromRepo(rm, player), nil
}

// Close stops accepting operations and waits for the ones in flight.
// Every committed change is already persisted.
func (s *service) Close(ctx context.Context) error {
	entries := s.registry.close()

	for _, e := range entries {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		e.sem.Release(1)
	}

	s.logger.InfoContext(ctx, "room registry closed", "rooms", len(entries))
	return nil
}
