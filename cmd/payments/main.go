package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/config"
	kafkax "github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/kafka"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/logging"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/payments"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/postgres"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-payments"

	log, err := logging.New(cfg.LogLevel, service)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	decimal.MarshalJSONWithoutQuotes = true

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Events from this worker reach websocket clients through the redis
	// relay and downstream consumers through the event stream.
	var sinks []realtime.Sink
	var dedup *redisx.Dedup
	var cache *redisx.OrderCache
	origin := uuid.NewString()
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		sinks = append(sinks, &redisx.Bridge{RDB: rdb, Origin: origin, Log: log})
		dedup = &redisx.Dedup{RDB: rdb, Service: "payments"}
		cache = &redisx.OrderCache{RDB: rdb}
	}
	prodCtx, stopProducer := context.WithCancel(context.Background())
	defer stopProducer()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, 1024, log)
	prod.Start(prodCtx)
	sinks = append(sinks, &kafkax.EventSink{Producer: prod, Service: service})

	dispCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	disp := realtime.NewDispatcher(origin, 1024, log, sinks...)
	disp.Start(dispCtx)

	// Payment updates refresh the same order cache the API reads from.
	opts := orders.Options{
		TaxRate:                 &cfg.TaxRate,
		DefaultEstimatedMinutes: cfg.DefaultEstimatedMinutes,
	}
	if cache != nil {
		opts.Cache = cache
	}
	ordersSvc := orders.NewService(&postgres.Repository{DB: db}, disp, log, opts)
	svc := &payments.Service{Orders: ordersSvc, Log: log}
	if dedup != nil {
		svc.Dedup = dedup
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, cfg.KafkaPaymentsTopic, cfg.PaymentsWorkers, log)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		log.Info("payments consumer started",
			zap.String("group", cfg.PaymentsGroup),
			zap.String("topic", cfg.KafkaPaymentsTopic),
			zap.Int("workers", cfg.PaymentsWorkers),
		)
		if err := cons.Start(ctx, svc.HandleGatewayEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-consumerDone
	ordersSvc.Wait()

	stopDispatcher()
	disp.WaitClosed()
	stopProducer()
	prod.WaitClosed()
}
