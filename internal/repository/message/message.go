package message

const (
	KindMessage = "message"
	KindSystem  = "system"
	KindEmoji   = "emoji"
	KindSticker = "sticker"
)

type Message struct {
	Id             string  `redis:"id"`
	RoomId         string  `redis:"room_id"`
	UserId         string  `redis:"user_id"`
	Username       string  `redis:"username"`
	Avatar         string  `redis:"avatar"`
	Text           string  `redis:"text"`
	Kind           string  `redis:"kind"`
	VideoTimestamp float64 `redis:"video_timestamp"`
	ReplyTo        string  `redis:"reply_to"`
	IsDeleted      bool    `redis:"is_deleted"`
	CreatedAt      int64   `redis:"created_at"`
	DeletedAt      int64   `redis:"deleted_at"`
}

type Reaction struct {
	UserId    string `json:"user_id"`
	Emoji     string `json:"emoji"`
	CreatedAt int64  `json:"created_at"`
}

type GetMessagesParams struct {
	RoomId string
	// Offset counts from the newest message.
	Offset int
	Limit  int
}

type GetMessagesResponse struct {
	// Messages are ordered oldest first.
	Messages []Message
	Total    int
}

type SetReactionParams struct {
	MessageId string
	Reaction  Reaction
}

type RemoveReactionParams struct {
	MessageId string
	UserId    string
}

type DeleteMessageParams struct {
	MessageId string
	DeletedAt int64
}
