package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL is the websocket endpoint, e.g. ws://localhost:8080/ws. Empty skips the suite.
	ServerURL string `envconfig:"E2E_SERVER_URL"`
	GRPCAddr  string `envconfig:"E2E_GRPC_ADDR" default:"localhost:8081"`
	// E2E_JWT_SECRET must match the server JWT_SECRET so the suite can mint tokens.
	JWTSecret string `envconfig:"E2E_JWT_SECRET"`
	// E2E_ALICE_ID and E2E_BOB_ID are two accounts already registered on the server, e.g. by cmd/seed.
	AliceID int64 `envconfig:"E2E_ALICE_ID"`
	BobID   int64 `envconfig:"E2E_BOB_ID"`
	// E2E_DEBUG_JSON dumps every received frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
