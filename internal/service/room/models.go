package room

import (
	"time"

	"github.com/sharetube/watchparty/internal/repository/room"
)

const (
	StatusActive = room.StatusActive
	StatusPaused = room.StatusPaused
	StatusEnded  = room.StatusEnded
)

type Settings struct {
	ChatEnabled    bool    `json:"allowChat"`
	NonHostControl bool    `json:"allowUserControl"`
	SyncTolerance  float64 `json:"syncTolerance"`
	SystemMessages bool    `json:"systemMessagesEnabled"`
}

func defaultSettings() Settings {
	return Settings{
		ChatEnabled:   true,
		SyncTolerance: 2,
	}
}

type Participant struct {
	UserId   string    `json:"userId"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
	IsHost   bool      `json:"isHost"`
	// connId is the connection the participant joined from. It is empty
	// for participants added outside a live connection.
	connId string
}

type User struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type VideoState struct {
	CurrentTime float64   `json:"currentTime"`
	IsPlaying   bool      `json:"isPlaying"`
	LastUpdated time.Time `json:"lastUpdated"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

// At returns the state as of now. A playing video advances by the time
// elapsed since the last update.
func (v VideoState) At(now time.Time) VideoState {
	if v.IsPlaying {
		if elapsed := now.Sub(v.LastUpdated).Seconds(); elapsed > 0 {
			v.CurrentTime += elapsed
		}
	}
	v.LastUpdated = now

	return v
}

type Room struct {
	Id            string        `json:"roomId"`
	CatalogItemId string        `json:"movieId"`
	EpisodeId     string        `json:"episodeId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	HostId        string        `json:"hostId"`
	IsPrivate     bool          `json:"isPrivate"`
	MaxUsers      int           `json:"maxUsers"`
	Status        string        `json:"status"`
	Participants  []Participant `json:"participants"`
	VideoState    VideoState    `json:"videoState"`
	Settings      Settings      `json:"settings"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	password      string
}

type Episode struct {
	Id        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Filename  string `json:"filename,omitempty"`
	LinkEmbed string `json:"linkEmbed,omitempty"`
	LinkM3U8  string `json:"linkM3u8,omitempty"`
}

type Reaction struct {
	UserId    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	Id             string     `json:"id"`
	RoomId         string     `json:"roomId"`
	UserId         string     `json:"userId"`
	Username       string     `json:"username"`
	Avatar         string     `json:"avatar,omitempty"`
	Text           string     `json:"message"`
	Kind           string     `json:"type"`
	VideoTimestamp float64    `json:"videoTimestamp"`
	ReplyTo        string     `json:"replyTo,omitempty"`
	Reactions      []Reaction `json:"reactions"`
	IsDeleted      bool       `json:"isDeleted"`
	CreatedAt      time.Time  `json:"createdAt"`
}
