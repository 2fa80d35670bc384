package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Secret used to verify access tokens",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 50,
		usage:        "Capacity of rooms created without one",
	}
	membersMax = configVar[int]{
		envKey:       "SERVER_MEMBERS_MAX",
		flagKey:      "members-max",
		defaultValue: 100,
		usage:        "Maximum capacity a room can be given",
	}
	storeTimeout = configVar[time.Duration]{
		envKey:       "SERVER_STORE_TIMEOUT",
		flagKey:      "store-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Timeout of store operations and room locks",
	}
	endedRoomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ENDED_ROOM_TTL",
		flagKey:      "ended-room-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "How long the player state of ended rooms is kept",
	}
	historyPageSize = configVar[int]{
		envKey:       "SERVER_HISTORY_PAGE_SIZE",
		flagKey:      "history-page-size",
		defaultValue: 50,
		usage:        "Default number of messages per history page",
	}
	allowedOrigins = configVar[[]string]{
		envKey:       "SERVER_ALLOWED_ORIGINS",
		flagKey:      "allowed-origins",
		defaultValue: []string{"*"},
		usage:        "Origins allowed to call the API",
	}
	wsPingInterval = configVar[time.Duration]{
		envKey:       "SERVER_WS_PING_INTERVAL",
		flagKey:      "ws-ping-interval",
		defaultValue: 30 * time.Second,
		usage:        "Interval between websocket pings",
	}
	wsPongWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_PONG_WAIT",
		flagKey:      "ws-pong-wait",
		defaultValue: 60 * time.Second,
		usage:        "How long to wait for a websocket pong",
	}
	wsWriteWait = configVar[time.Duration]{
		envKey:       "SERVER_WS_WRITE_WAIT",
		flagKey:      "ws-write-wait",
		defaultValue: 10 * time.Second,
		usage:        "Websocket write deadline",
	}
	wsMaxMessageSize = configVar[int64]{
		envKey:       "SERVER_WS_MAX_MESSAGE_SIZE",
		flagKey:      "ws-max-message-size",
		defaultValue: 8192,
		usage:        "Maximum size of an incoming websocket message in bytes",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
	dbDriver = configVar[string]{
		envKey:       "DB_DRIVER",
		flagKey:      "db-driver",
		defaultValue: "sqlite",
		usage:        "Catalog database driver: sqlite, postgres or mysql",
	}
	dbHost = configVar[string]{
		envKey:       "DB_HOST",
		flagKey:      "db-host",
		defaultValue: "localhost",
		usage:        "Database host",
	}
	dbPort = configVar[int]{
		envKey:       "DB_PORT",
		flagKey:      "db-port",
		defaultValue: 5432,
		usage:        "Database port",
	}
	dbUser = configVar[string]{
		envKey:       "DB_USER",
		flagKey:      "db-user",
		defaultValue: "postgres",
		usage:        "Database user",
	}
	dbPassword = configVar[string]{
		envKey:  "DB_PASSWORD",
		flagKey: "db-password",
		usage:   "Database password",
	}
	dbName = configVar[string]{
		envKey:       "DB_NAME",
		flagKey:      "db-name",
		defaultValue: "movies",
		usage:        "Database name",
	}
	dbSSLMode = configVar[string]{
		envKey:       "DB_SSLMODE",
		flagKey:      "db-sslmode",
		defaultValue: "disable",
		usage:        "Postgres sslmode",
	}
	dbPath = configVar[string]{
		envKey:       "DB_PATH",
		flagKey:      "db-path",
		defaultValue: "watchparty.db",
		usage:        "Database file when the driver is sqlite",
	}
	dbMigrate = configVar[bool]{
		envKey:  "DB_MIGRATE",
		flagKey: "db-migrate",
		usage:   "Create the catalog and user tables on startup",
	}
)

// bind registers the flag, its env variable and its default with viper.
func bind[T any](v configVar[T], define func(name string, value T, usage string) *T) {
	define(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	bind(secret, pflag.String)
	bind(host, pflag.String)
	bind(port, pflag.Int)
	bind(logLevel, pflag.String)
	bind(membersLimit, pflag.Int)
	bind(membersMax, pflag.Int)
	bind(storeTimeout, pflag.Duration)
	bind(endedRoomTTL, pflag.Duration)
	bind(historyPageSize, pflag.Int)
	bind(allowedOrigins, pflag.StringSlice)
	bind(wsPingInterval, pflag.Duration)
	bind(wsPongWait, pflag.Duration)
	bind(wsWriteWait, pflag.Duration)
	bind(wsMaxMessageSize, pflag.Int64)
	bind(redisHost, pflag.String)
	bind(redisPort, pflag.Int)
	bind(redisPassword, pflag.String)
	bind(dbDriver, pflag.String)
	bind(dbHost, pflag.String)
	bind(dbPort, pflag.Int)
	bind(dbUser, pflag.String)
	bind(dbPassword, pflag.String)
	bind(dbName, pflag.String)
	bind(dbSSLMode, pflag.String)
	bind(dbPath, pflag.String)
	bind(dbMigrate, pflag.Bool)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	return &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		MembersLimit:     viper.GetInt(membersLimit.flagKey),
		MembersMax:       viper.GetInt(membersMax.flagKey),
		StoreTimeout:     viper.GetDuration(storeTimeout.flagKey),
		EndedRoomTTL:     viper.GetDuration(endedRoomTTL.flagKey),
		HistoryPageSize:  viper.GetInt(historyPageSize.flagKey),
		AllowedOrigins:   viper.GetStringSlice(allowedOrigins.flagKey),
		WSPingInterval:   viper.GetDuration(wsPingInterval.flagKey),
		WSPongWait:       viper.GetDuration(wsPongWait.flagKey),
		WSWriteWait:      viper.GetDuration(wsWriteWait.flagKey),
		WSMaxMessageSize: viper.GetInt64(wsMaxMessageSize.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		DBDriver:         viper.GetString(dbDriver.flagKey),
		DBHost:           viper.GetString(dbHost.flagKey),
		DBPort:           viper.GetInt(dbPort.flagKey),
		DBUser:           viper.GetString(dbUser.flagKey),
		DBPassword:       viper.GetString(dbPassword.flagKey),
		DBName:           viper.GetString(dbName.flagKey),
		DBSSLMode:        viper.GetString(dbSSLMode.flagKey),
		DBPath:           viper.GetString(dbPath.flagKey),
		DBMigrate:        viper.GetBool(dbMigrate.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
