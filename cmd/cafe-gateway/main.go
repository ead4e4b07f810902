package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/cache"
	"github.com/fjod/cafe_cart/internal/catalog"
	"github.com/fjod/cafe_cart/internal/checkout"
	h "github.com/fjod/cafe_cart/internal/http"
	"github.com/fjod/cafe_cart/internal/logger"
	"github.com/fjod/cafe_cart/internal/promotion"
	"github.com/fjod/cafe_cart/internal/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	// identifies this instance in cross-process promotion signals
	origin := uuid.NewString()
	log = log.With(zap.String("instance", origin))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		log.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	httpClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	gateway := catalog.NewGateway(cfg.CatalogURL, httpClient, log)
	orders := checkout.NewHTTPOrderClient(cfg.OrdersURL, httpClient, log)

	registry := session.NewRegistry(orders, log,
		session.WithCache(cache.NewRedisCache(redisClient, cache.WithTTL(cfg.SessionTTL))),
		session.WithCatalog(gateway.FindItem),
		session.WithTTL(cfg.SessionTTL),
	)

	// every stored menu, whether reloaded on a signal or because a promotion
	// window passed, reprices the live carts
	gateway.OnRefresh(func(menu *domain.Menu) {
		repriced := registry.RepriceAll(menu.FindItem)
		log.Info("menu refreshed", zap.Int("carts_repriced", repriced))
	})

	// Promotion change signals
	local := promotion.NewBroadcaster()
	redisSignal := promotion.NewRedisSignal(redisClient, origin, log)
	signals := []promotion.Signal{local, redisSignal}
	publishers := []promotion.Publisher{redisSignal}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSignal := promotion.NewKafkaSignal(cfg.InstanceName, origin, log, cfg.KafkaBrokers...)
		defer kafkaSignal.Close()
		signals = append(signals, kafkaSignal)
		publishers = append(publishers, kafkaSignal)
		log.Info("kafka promotion signal enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("instance_name", cfg.InstanceName),
		)
	}
	promotions := promotion.NewSync(log, signals...)
	promotions.Subscribe(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		if _, err := gateway.Reload(ctx); err != nil {
			log.Warn("menu reload after promotion change failed", zap.Error(err))
		}
	})
	notifier := promotion.NewNotifier(local, publishers...)

	runCtx, stopRun := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := promotions.Run(runCtx); err != nil {
			log.Error("promotion sync stopped", zap.Error(err))
		}
	}()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if _, err := gateway.Load(loadCtx); err != nil {
		// the menu is fetched again on first request
		log.Warn("initial menu load failed", zap.Error(err))
	}
	cancelLoad()

	router := h.NewRouter(h.RouterConfig{
		Catalog:        gateway,
		Sessions:       registry,
		Notifier:       notifier,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "cafe-gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("cafe gateway starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// gRPC health endpoint
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		log.Info("grpc health listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cafe gateway")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	stopRun()
	wg.Wait()
	if err := registry.Close(); err != nil {
		log.Error("session registry close failed", zap.Error(err))
	}

	log.Info("cafe gateway stopped")
}
