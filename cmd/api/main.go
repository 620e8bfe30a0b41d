package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/config"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/httpx"
	kafkax "github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/kafka"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/logging"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/memstore"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/postgres"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/rabbitmq"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repository
	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("repository", zap.Error(err))
	}
	defer closeRepo()

	// Realtime sinks: local hub first, then relays and mirrors
	origin := uuid.NewString()
	hub := realtime.NewHub(log)
	sinks := []realtime.Sink{hub}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		bridge := &redisx.Bridge{RDB: rdb, Origin: origin, Local: hub, Log: log}
		sinks = append(sinks, bridge)
		go bridge.Run(ctx)
	}

	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, 1024, log)
		prod.Start(prodCtx)
		sinks = append(sinks, &kafkax.EventSink{Producer: prod, Service: cfg.ServiceName})
	}

	if cfg.RabbitMQURL != "" {
		mirror, err := rabbitmq.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Warn("rabbitmq mirror disabled", zap.Error(err))
		} else {
			defer mirror.Close()
			sinks = append(sinks, mirror)
		}
	}

	dispCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	disp := realtime.NewDispatcher(origin, 4096, log, sinks...)
	disp.Start(dispCtx)

	// Service & handlers
	opts := orders.Options{
		TaxRate:                 &cfg.TaxRate,
		DefaultEstimatedMinutes: cfg.DefaultEstimatedMinutes,
	}
	if rdb != nil {
		opts.Cache = &redisx.OrderCache{RDB: rdb}
	}
	svc := orders.NewService(repo, disp, log, opts)
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Orders:  svc,
		Limiter: httpx.NewRateLimiter(cfg.RateRPS, cfg.RateBurst),
		Log:     log,
	}
	if rdb != nil {
		oh.Idem = &redisx.Idempotency{RDB: rdb}
	}
	oh.Register(router)

	ws := realtime.NewServer(hub, log, cfg.WSHeartbeat)
	router.Handle("/ws", ws)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("origin", origin))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info("closing realtime connections", zap.Int("connections", ws.Connections()))
	ws.CloseAll()
	cancel()

	// stats snapshots publish into the dispatcher, which flushes into the
	// producer, so they stop in that order
	svc.Wait()
	stopDispatcher()
	disp.WaitClosed()
	if prod != nil {
		stopProducer()
		prod.WaitClosed()
	}
}

func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (orders.Repository, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store with demo data")
		return seedDemo(memstore.New()), func() {}, nil
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return &postgres.Repository{DB: db}, db.Close, nil
}
