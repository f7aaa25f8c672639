package main

import (
	"time"

	"github.com/fastprodman/casinobot/internal/broadcast"
	"github.com/fastprodman/casinobot/internal/config"
	"go.uber.org/zap/zapcore"
)

type apiConfig struct {
	AppEnv          string        `env:"APP_ENV" default:"local"`
	LogLevel        zapcore.Level `env:"LOG_LEVEL" default:"info"`
	Port            uint16        `env:"PORT" default:"8080"`
	MetricsAddr     string        `env:"METRICS_ADDR" default:":9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s"`

	PayoutsFile        string        `env:"PAYOUTS_FILE" default:""`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" default:"60s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"15m"`

	// LedgerDriver is postgres or memory.
	LedgerDriver string `env:"LEDGER_DRIVER" default:"postgres"`
	// BroadcastDriver is redis or kafka.
	BroadcastDriver string `env:"BROADCAST_DRIVER" default:"redis"`
	// EligibilityKey names the Redis set of eligible accounts. Empty admits
	// every authenticated account.
	EligibilityKey string `env:"ELIGIBILITY_SET_KEY" default:""`

	Postgres config.PostgresConfig
	Redis    config.RedisConfig
	Kafka    config.KafkaConfig
	Limits   config.Limits
	Gateway  config.GatewayConfig
	JWT      config.JWTConfig
	Topics   broadcast.Topics
}
