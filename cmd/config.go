package main

import "time"

type Config struct {
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
	GRPCPort          int           `env:"GRPC_PORT,default=8081"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL,default=1s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=1s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=15s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,default=2s"`

	EnableModeration          bool   `env:"ENABLE_MODERATION,default=false"`
	CensoredDir               string `env:"CENSORED_DIR,default=censored"`
	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	EnableDebug bool `env:"ENABLE_DEBUG,default=false"`
}
