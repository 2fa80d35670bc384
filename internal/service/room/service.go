package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/repository/catalog"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/internal/repository/message"
	"github.com/sharetube/watchparty/internal/repository/room"
)

type iRoomRepo interface {
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	GetPlayer(context.Context, string) (room.Player, error)
	SetPlayer(context.Context, *room.SetPlayerParams) error
	SetMembers(context.Context, *room.SetMembersParams) error
	GetMembers(context.Context, string) ([]room.Member, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) error
	EndRoom(context.Context, *room.EndRoomParams) error
	ListPublicRooms(context.Context, *room.ListPublicRoomsParams) (room.ListPublicRoomsResponse, error)
	ListUserRooms(context.Context, *room.ListUserRoomsParams) ([]room.RoomListing, error)
}

type iMessageRepo interface {
	SetMessage(context.Context, *message.Message) error
	GetMessage(context.Context, string) (message.Message, error)
	GetMessages(context.Context, *message.GetMessagesParams) (message.GetMessagesResponse, error)
	DeleteMessage(context.Context, *message.DeleteMessageParams) error
	GetReactions(context.Context, string) ([]message.Reaction, error)
	SetReaction(context.Context, *message.SetReactionParams) error
	RemoveReaction(context.Context, *message.RemoveReactionParams) error
}

type iCatalogRepo interface {
	GetItem(context.Context, string) (catalog.Item, error)
}

type iConnRepo interface {
	Add(connection.Client) error
	Remove(string) error
	Get(string) (connection.Client, error)
	Join(roomId, connId string) error
	Leave(roomId, connId string) bool
	GetRoomId(string) string
	GetGroup(string) []connection.Client
	RemoveGroup(string) []string
	All() []connection.Client
}

type Config struct {
	// MembersLimit is the capacity of rooms created without one.
	MembersLimit    int
	MembersMax      int
	StoreTimeout    time.Duration
	EndedRoomTTL    time.Duration
	HistoryPageSize int
	HistoryPageMax  int
}

type service struct {
	roomRepo        iRoomRepo
	messageRepo     iMessageRepo
	catalogRepo     iCatalogRepo
	connRepo        iConnRepo
	registry        *registry
	membersLimit    int
	membersMax      int
	storeTimeout    time.Duration
	endedRoomTTL    time.Duration
	historyPageSize int
	historyPageMax  int
	leaveBackoff    time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

func NewService(
	roomRepo iRoomRepo,
	messageRepo iMessageRepo,
	catalogRepo iCatalogRepo,
	connRepo iConnRepo,
	cfg *Config,
	logger *slog.Logger,
) *service {
	return &service{
		roomRepo:        roomRepo,
		messageRepo:     messageRepo,
		catalogRepo:     catalogRepo,
		connRepo:        connRepo,
		registry:        newRegistry(),
		membersLimit:    cfg.MembersLimit,
		membersMax:      cfg.MembersMax,
		storeTimeout:    cfg.StoreTimeout,
		endedRoomTTL:    cfg.EndedRoomTTL,
		historyPageSize: cfg.HistoryPageSize,
		historyPageMax:  cfg.HistoryPageMax,
		leaveBackoff:    defaultLeaveBackoff,
		now:             time.Now,
		logger:          logger,
	}
}
