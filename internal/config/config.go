// Package config holds configuration blocks shared by the binaries.
// Fields are read from the environment by pkg/envconf.
package config

import (
	"time"

	"github.com/fastprodman/casinobot/internal/money"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" default:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" default:""`
	DB       int    `env:"REDIS_DB" default:"0"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" default:"localhost:9092"`
}

// Limits are the inclusive amount bounds per operation.
type Limits struct {
	StakeMin      money.Minor `env:"STAKE_MIN" default:"0.10"`
	StakeMax      money.Minor `env:"STAKE_MAX" default:"100"`
	DepositMin    money.Minor `env:"DEPOSIT_MIN" default:"1"`
	DepositMax    money.Minor `env:"DEPOSIT_MAX" default:"1000"`
	WithdrawalMin money.Minor `env:"WITHDRAWAL_MIN" default:"1"`
	WithdrawalMax money.Minor `env:"WITHDRAWAL_MAX" default:"1000"`
}

func (l Limits) Stake() money.Bounds {
	return money.Bounds{Min: l.StakeMin, Max: l.StakeMax}
}

func (l Limits) Deposit() money.Bounds {
	return money.Bounds{Min: l.DepositMin, Max: l.DepositMax}
}

func (l Limits) Withdrawal() money.Bounds {
	return money.Bounds{Min: l.WithdrawalMin, Max: l.WithdrawalMax}
}

type GatewayConfig struct {
	Driver  string        `env:"GATEWAY_DRIVER" default:"cryptopay"`
	BaseURL string        `env:"CRYPTOPAY_BASE_URL" default:"https://pay.crypt.bot"`
	Token   string        `env:"CRYPTOPAY_TOKEN" default:""`
	Asset   string        `env:"PAYMENT_ASSET" default:"USDT"`
	Timeout time.Duration `env:"GATEWAY_TIMEOUT" default:"10s"`
}

type JWTConfig struct {
	Secret string `env:"JWT_SECRET"`
	Issuer string `env:"JWT_ISSUER" default:""`
}
