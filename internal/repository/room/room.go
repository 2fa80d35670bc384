package room

import "time"

const (
	StatusActive = "active"
	StatusPaused = "paused"
	StatusEnded  = "ended"
)

type Room struct {
	Id             string  `redis:"id"`
	CatalogItemId  string  `redis:"catalog_item_id"`
	EpisodeId      string  `redis:"episode_id"`
	Title          string  `redis:"title"`
	Description    string  `redis:"description"`
	HostId         string  `redis:"host_id"`
	IsPrivate      bool    `redis:"is_private"`
	Password       string  `redis:"password"`
	MaxUsers       int     `redis:"max_users"`
	Status         string  `redis:"status"`
	ChatEnabled    bool    `redis:"chat_enabled"`
	NonHostControl bool    `redis:"non_host_control"`
	SystemMessages bool    `redis:"system_messages"`
	SyncTolerance  float64 `redis:"sync_tolerance"`
	CreatedAt      int64   `redis:"created_at"`
	UpdatedAt      int64   `redis:"updated_at"`
	EndedAt        int64   `redis:"ended_at"`
}

type Player struct {
	CurrentTime float64 `redis:"current_time"`
	IsPlaying   bool    `redis:"is_playing"`
	UpdatedAt   int64   `redis:"updated_at"`
	UpdatedBy   string  `redis:"updated_by"`
}

type Member struct {
	UserId   string `redis:"user_id"`
	Username string `redis:"username"`
	Avatar   string `redis:"avatar"`
	JoinedAt int64  `redis:"joined_at"`
	IsHost   bool   `redis:"is_host"`
}

type SetRoomParams struct {
	Room    Room
	Player  Player
	Members []Member
}

type SetMembersParams struct {
	RoomId    string
	HostId    string
	Members   []Member
	UpdatedAt int64
}

type SetPlayerParams struct {
	RoomId string
	Player Player
}

type UpdateRoomParams struct {
	RoomId string
	// Fields maps redis field names of Room to their new values.
	Fields    map[string]any
	UpdatedAt int64
}

type EndRoomParams struct {
	RoomId     string
	EndedAt    int64
	Expiration time.Duration
}

const (
	UserRoomsHosting = "hosting"
	UserRoomsJoined  = "joined"
)

// RoomListing is a stored room with the size of its member list.
type RoomListing struct {
	Room        Room
	MemberCount int
}

type ListPublicRoomsParams struct {
	CatalogItemId string
	// Search matches titles case-insensitively.
	Search string
	Offset int
	Limit  int
}

type ListPublicRoomsResponse struct {
	Rooms []RoomListing
	Total int
}

type ListUserRoomsParams struct {
	UserId string
	Kind   string
}
