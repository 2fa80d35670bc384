package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/repository/connection"
	catalogSql "github.com/sharetube/watchparty/internal/repository/catalog/sql"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	messageRedis "github.com/sharetube/watchparty/internal/repository/message/redis"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	userSql "github.com/sharetube/watchparty/internal/repository/user/sql"
	"github.com/sharetube/watchparty/internal/service/auth"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/database"
	"github.com/sharetube/watchparty/pkg/redisclient"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const historyPageMax = 100

type AppConfig struct {
	Secret           string        `json:"-"`
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	MembersLimit     int           `json:"members_limit"`
	MembersMax       int           `json:"members_max"`
	StoreTimeout     time.Duration `json:"store_timeout"`
	EndedRoomTTL     time.Duration `json:"ended_room_ttl"`
	HistoryPageSize  int           `json:"history_page_size"`
	RedisHost        string        `json:"redis_host"`
	RedisPort        int           `json:"redis_port"`
	RedisPassword    string        `json:"-"`
	DBDriver         string        `json:"db_driver"`
	DBHost           string        `json:"db_host"`
	DBPort           int           `json:"db_port"`
	DBUser           string        `json:"db_user"`
	DBPassword       string        `json:"-"`
	DBName           string        `json:"db_name"`
	DBSSLMode        string        `json:"db_sslmode"`
	DBPath           string        `json:"db_path"`
	DBMigrate        bool          `json:"db_migrate"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	WSPingInterval   time.Duration `json:"ws_ping_interval"`
	WSPongWait       time.Duration `json:"ws_pong_wait"`
	WSWriteWait      time.Duration `json:"ws_write_wait"`
	WSMaxMessageSize int64         `json:"ws_max_message_size"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.MembersLimit < 1 {
		return errors.New("members limit must be greater than 0")
	}
	if cfg.MembersMax < cfg.MembersLimit {
		return errors.New("members max must not be lower than members limit")
	}
	if cfg.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if cfg.HistoryPageSize < 1 || cfg.HistoryPageSize > historyPageMax {
		return fmt.Errorf("history page size must be between 1 and %d", historyPageMax)
	}
	if cfg.WSPingInterval <= 0 || cfg.WSPongWait <= cfg.WSPingInterval {
		return errors.New("ws pong wait must be longer than a positive ws ping interval")
	}
	if cfg.WSMaxMessageSize < 1 {
		return errors.New("ws max message size must be greater than 0")
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type App struct {
	cfg         *AppConfig
	rc          *redis.Client
	db          *gorm.DB
	authService *auth.Service
	roomService interface {
		Close(context.Context) error
	}
	connRepo interface {
		All() []connection.Client
	}
	handler http.Handler
	logger  *slog.Logger
}

// New connects to the stores and wires every component.
func New(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*App, error) {
	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		Password:    cfg.RedisPassword,
		DialTimeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	db, err := database.New(&database.Config{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		FilePath: cfg.DBPath,
	})
	if err != nil {
		rc.Close()
		return nil, err
	}

	a, err := newApp(ctx, cfg, rc, db, logger)
	if err != nil {
		rc.Close()
		database.Close(db)
		return nil, err
	}

	return a, nil
}

func newApp(ctx context.Context, cfg *AppConfig, rc *redis.Client, db *gorm.DB, logger *slog.Logger) (*App, error) {
	catalogRepo := catalogSql.NewRepo(db)
	userRepo := userSql.NewRepo(db)
	if cfg.DBMigrate {
		if err := catalogRepo.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate catalog: %w", err)
		}
		if err := userRepo.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate users: %w", err)
		}
	}

	messageRepo, err := messageRedis.NewRepo(ctx, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create message repo: %w", err)
	}

	roomRepo := roomRedis.NewRepo(rc, logger)
	connRepo := inmemory.NewRepo(logger)

	roomService := room.NewService(roomRepo, messageRepo, catalogRepo, connRepo, &room.Config{
		MembersLimit:    cfg.MembersLimit,
		MembersMax:      cfg.MembersMax,
		StoreTimeout:    cfg.StoreTimeout,
		EndedRoomTTL:    cfg.EndedRoomTTL,
		HistoryPageSize: cfg.HistoryPageSize,
		HistoryPageMax:  historyPageMax,
	}, logger)

	authService := auth.NewService(userRepo, &auth.Config{
		Secret:        cfg.Secret,
		LookupTimeout: cfg.StoreTimeout,
	}, logger)

	controller := controller.NewController(roomService, authService, &controller.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
		WriteWait:      cfg.WSWriteWait,
		MaxMessageSize: cfg.WSMaxMessageSize,
		SendBufferSize: 256,
	}, logger)

	return &App{
		cfg:         cfg,
		rc:          rc,
		db:          db,
		authService: authService,
		roomService: roomService,
		connRepo:    connRepo,
		handler:     controller.GetMux(),
		logger:      logger,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Shutdown waits for in-flight room operations, then closes every live
// connection and the stores. server may be nil.
func (a *App) Shutdown(ctx context.Context, server *http.Server) error {
	var errs []error

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down server: %w", err))
		}
	}

	if err := a.roomService.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close room service: %w", err))
	}

	clients := a.connRepo.All()
	for _, client := range clients {
		client.Close()
	}
	a.logger.InfoContext(ctx, "connections closed", "count", len(clients))

	if err := a.rc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
	}
	if err := database.Close(a.db); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	return errors.Join(errs...)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.InfoContext(gCtx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		return a.Shutdown(shutdownCtx, server)
	})

	return g.Wait()
}
