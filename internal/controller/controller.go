package controller

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/internal/service/auth"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iRoomService interface {
	Connect(context.Context, connection.Client) error
	Disconnect(context.Context, *room.DisconnectParams) error
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	GetRoom(context.Context, *room.GetRoomParams) (room.GetRoomResponse, error)
	ListRooms(context.Context, *room.ListRoomsParams) (room.ListRoomsResponse, error)
	ListMyRooms(context.Context, *room.ListMyRoomsParams) (room.ListMyRoomsResponse, error)
	UpdateRoom(context.Context, *room.UpdateRoomParams) (room.Room, error)
	EndRoom(context.Context, *room.EndRoomParams) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	SetPlaying(context.Context, *room.SetPlayingParams) (room.VideoState, error)
	Seek(context.Context, *room.SeekParams) (room.VideoState, error)
	Sync(context.Context, *room.SyncParams) (room.SyncResponse, error)
	SendMessage(context.Context, *room.SendMessageParams) (room.Message, error)
	React(context.Context, *room.ReactParams) (room.ReactResponse, error)
	DeleteMessage(context.Context, *room.DeleteMessageParams) error
	GetHistory(context.Context, *room.GetHistoryParams) (room.GetHistoryResponse, error)
}

type iAuthService interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

type Config struct {
	// AllowedOrigins lists the origins allowed by CORS and the websocket
	// handshake. "*" allows any origin.
	AllowedOrigins []string
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

type controller struct {
	roomService iRoomService
	authService iAuthService
	upgrader    websocket.Upgrader
	wsRouter    *wsrouter.WSRouter[*client]
	validate    *validator.Validator
	cfg         Config
	logger      *slog.Logger
}

func NewController(roomService iRoomService, authService iAuthService, cfg *Config, logger *slog.Logger) *controller {
	c := &controller{
		roomService: roomService,
		authService: authService,
		validate:    validator.NewValidator(),
		cfg:         *cfg,
		logger:      logger,
	}
	c.upgrader = websocket.Upgrader{
		CheckOrigin: c.checkOrigin,
	}
	c.wsRouter = c.getWSRouter()

	return c
}

func (c *controller) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(c.cfg.AllowedOrigins, "*") || slices.Contains(c.cfg.AllowedOrigins, origin)
}

func (c *controller) generateTimeBasedId() string {
	return ulid.Make().String()
}
