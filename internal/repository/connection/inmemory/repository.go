package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"golang.org/x/exp/maps"
)

// repo tracks live connections and the room broadcast group each of them
// belongs to. A connection is in at most one group.
type repo struct {
	clients map[string]connection.Client
	roomOf  map[string]string
	groups  map[string]map[string]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		clients: make(map[string]connection.Client),
		roomOf:  make(map[string]string),
		groups:  make(map[string]map[string]struct{}),
		logger:  logger,
	}
}

func (r *repo) Add(client connection.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.Id()]; ok {
		return connection.ErrAlreadyExists
	}

	r.clients[client.Id()] = client
	r.logger.Debug("connection added", "conn_id", client.Id())
	return nil
}

// Remove forgets the connection and takes it out of its group.
func (r *repo) Remove(connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[connId]; !ok {
		return connection.ErrNotFound
	}

	r.leave(connId)
	delete(r.clients, connId)
	r.logger.Debug("connection removed", "conn_id", connId)
	return nil
}

func (r *repo) Get(connId string) (connection.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[connId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return client, nil
}

// Join moves the connection into the group of roomId.
func (r *repo) Join(roomId, connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[connId]; !ok {
		return connection.ErrNotFound
	}

	r.leave(connId)

	group, ok := r.groups[roomId]
	if !ok {
		group = make(map[string]struct{})
		r.groups[roomId] = group
	}
	group[connId] = struct{}{}
	r.roomOf[connId] = roomId

	return nil
}

// Leave takes the connection out of the group of roomId. It reports
// whether the connection was in that group.
func (r *repo) Leave(roomId, connId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roomOf[connId] != roomId {
		return false
	}

	r.leave(connId)
	return true
}

func (r *repo) leave(connId string) {
	roomId, ok := r.roomOf[connId]
	if !ok {
		return
	}

	delete(r.roomOf, connId)
	if group, ok := r.groups[roomId]; ok {
		delete(group, connId)
		if len(group) == 0 {
			delete(r.groups, roomId)
		}
	}
}

// GetRoomId returns the room whose group the connection is in, or "".
func (r *repo) GetRoomId(connId string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.roomOf[connId]
}

func (r *repo) GetGroup(roomId string) []connection.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[roomId]
	clients := make([]connection.Client, 0, len(group))
	for connId := range group {
		if client, ok := r.clients[connId]; ok {
			clients = append(clients, client)
		}
	}

	return clients
}

// RemoveGroup empties the group of roomId and returns the ids of the
// connections it held.
func (r *repo) RemoveGroup(roomId string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[roomId]
	if !ok {
		return nil
	}

	connIds := maps.Keys(group)
	for _, connId := range connIds {
		delete(r.roomOf, connId)
	}
	delete(r.groups, roomId)

	return connIds
}

func (r *repo) All() []connection.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Values(r.clients)
}
