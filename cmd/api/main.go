package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fastprodman/casinobot/internal/api"
	"github.com/fastprodman/casinobot/internal/broadcast"
	"github.com/fastprodman/casinobot/internal/gateway"
	"github.com/fastprodman/casinobot/internal/gateway/cryptopay"
	"github.com/fastprodman/casinobot/internal/gateway/fakegateway"
	"github.com/fastprodman/casinobot/internal/infra/logging"
	"github.com/fastprodman/casinobot/internal/infra/metrics"
	"github.com/fastprodman/casinobot/internal/infra/pgutils"
	"github.com/fastprodman/casinobot/internal/infra/redisutil"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/fastprodman/casinobot/internal/services/ledger/memledger"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/fastprodman/casinobot/internal/services/payments"
	"github.com/fastprodman/casinobot/internal/services/session"
	"github.com/fastprodman/casinobot/internal/services/settlement"
	"github.com/fastprodman/casinobot/pkg/envconf"
	"github.com/fastprodman/casinobot/pkg/shutdownqueue"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sessionSweepInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	log, err := logging.New("casinobot-api", cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}

		_ = log.Sync()
	}()

	payouts, err := outcome.LoadPayouts(cfg.PayoutsFile)
	if err != nil {
		return fmt.Errorf("load payouts: %w", err)
	}

	// --- Infra ---
	store, health, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}

	var rdb *redis.Client

	if cfg.BroadcastDriver == "redis" || cfg.EligibilityKey != "" {
		rdb, err = redisutil.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		shutdownqueue.Add("redis", func(context.Context) error { return rdb.Close() })
	}

	pub, err := newPublisher(cfg, rdb)
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	var eligibility api.Eligibility = api.AllowAll{}
	if cfg.EligibilityKey != "" {
		eligibility = api.NewRedisSetEligibility(rdb, cfg.EligibilityKey)
	}

	// --- Services ---
	channel := broadcast.NewChannel(pub, outcome.CryptoRoller{}, cfg.Topics)
	engine := settlement.New(store, channel, payouts, cfg.Limits.Stake(), log)
	sessions := session.NewManager(engine, store, cfg.SessionIdleTimeout, log)
	paySvc := payments.NewService(store, gw, channel, cfg.Gateway.Asset, payments.Limits{
		Deposit:    cfg.Limits.Deposit(),
		Withdrawal: cfg.Limits.Withdrawal(),
	}, log)
	reconciler := payments.NewReconciler(paySvc, cfg.ReconcileInterval, log)

	// --- HTTP servers ---
	srv := api.NewServer(cfg.Port, api.Deps{
		Sessions:    sessions,
		Payments:    paySvc,
		Auth:        api.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer),
		Eligibility: eligibility,
		Log:         log,
	})
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serve(srv, "api") })
	g.Go(func() error { return serve(metricsSrv, "metrics") })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error { return sessions.Run(gctx, sessionSweepInterval) })

	g.Go(func() error {
		<-gctx.Done()

		log.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			srv.Shutdown(shutdownCtx),
			metricsSrv.Shutdown(shutdownCtx),
		)
	})

	log.Info("API started",
		zap.Uint16("port", cfg.Port),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("ledger", cfg.LedgerDriver),
		zap.String("broadcast", cfg.BroadcastDriver),
		zap.String("gateway", cfg.Gateway.Driver),
	)

	err = g.Wait()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func serve(srv *http.Server, name string) error {
	err := srv.ListenAndServe()
	// http.ErrServerClosed is the normal path during Shutdown
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}

	return nil
}

func openLedger(ctx context.Context, cfg *apiConfig) (ledger.Store, metrics.HealthFunc, error) {
	switch cfg.LedgerDriver {
	case "postgres":
		db, err := pgutils.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}

		shutdownqueue.Add("postgres", func(context.Context) error { return db.Close() })

		svc := ledger.New(db)

		return svc, svc.Ping, nil
	case "memory":
		zap.L().Warn("using in-memory ledger, balances are lost on restart")
		return memledger.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}
}

func newPublisher(cfg *apiConfig, rdb *redis.Client) (broadcast.Publisher, error) {
	switch cfg.BroadcastDriver {
	case "redis":
		return broadcast.NewRedisPublisher(rdb), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is empty")
		}

		pub := broadcast.NewKafkaPublisher(cfg.Kafka.Brokers)
		shutdownqueue.Add("kafka", func(context.Context) error { return pub.Close() })

		return pub, nil
	default:
		return nil, fmt.Errorf("unknown BROADCAST_DRIVER %q", cfg.BroadcastDriver)
	}
}

func newGateway(cfg *apiConfig) (gateway.Gateway, error) {
	switch cfg.Gateway.Driver {
	case "cryptopay":
		if cfg.Gateway.Token == "" {
			return nil, errors.New("CRYPTOPAY_TOKEN is required for the cryptopay gateway")
		}

		return cryptopay.New(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout), nil
	case "fake":
		zap.L().Warn("using fake payment gateway")
		return fakegateway.New(), nil
	default:
		return nil, fmt.Errorf("unknown GATEWAY_DRIVER %q", cfg.Gateway.Driver)
	}
}
