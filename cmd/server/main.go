package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/mall-cart/internal/adapter/handler"
	"github.com/rl1809/mall-cart/internal/adapter/messaging"
	"github.com/rl1809/mall-cart/internal/adapter/metrics"
	"github.com/rl1809/mall-cart/internal/adapter/relayid"
	"github.com/rl1809/mall-cart/internal/adapter/storage"
	"github.com/rl1809/mall-cart/internal/adapter/storage/memory"
	"github.com/rl1809/mall-cart/internal/config"
	"github.com/rl1809/mall-cart/internal/core/service"
	"github.com/rl1809/mall-cart/internal/logger"
	"github.com/rl1809/mall-cart/internal/port"
)

// repositories is the storage selected by storage.driver.
type repositories struct {
	carts     port.CartRepository
	catalog   port.CatalogReader
	shipments port.ShipmentReader
	close     func() error
}

type eventPublisher interface {
	port.EventPublisher
	Close() error
}

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, logCloser, err := logger.New(cfg.Logger, cfg.ServiceName)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(ctx, cfg, logg)
	if err != nil {
		logg.Error("failed to open storage", slog.Any("err", err))
		os.Exit(1)
	}
	defer repos.close()

	opts := []service.Option{service.WithLogger(logg)}

	// Initialize Redis
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logg.Error("failed to connect redis", slog.Any("err", err))
			os.Exit(1)
		}
		defer rdb.Close()
		logg.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
		opts = append(opts, service.WithMutationCache(storage.NewRedisAdapter(rdb, cfg.Redis.ReplayTTL, cfg.Redis.ClaimTTL)))
	}

	// Initialize event publisher
	var publisher eventPublisher = messaging.NoopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = messaging.NewKafkaPublisher(messaging.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			TopicPrefix:  cfg.Kafka.TopicPrefix,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
			RetryBackoff: cfg.Kafka.RetryBackoff,
			Async:        cfg.Kafka.Async,
		}, logg)
	}
	defer publisher.Close()
	opts = append(opts, service.WithEventPublisher(publisher))

	// Initialize metrics
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		batchMetrics := metrics.NewBatchMetrics(cfg.Metrics.Namespace)
		if err := batchMetrics.Register(registry); err != nil {
			logg.Error("failed to register metrics", slog.Any("err", err))
			os.Exit(1)
		}
		opts = append(opts, service.WithBatchObserver(batchMetrics))
	}

	// Initialize services
	codec := relayid.NewCodec()
	svc := handler.Services{
		Carts: service.NewCartService(repos.carts, codec, opts...),
		Lines: service.NewLineMutator(repos.carts, repos.catalog, codec, opts...),
		Costs: service.NewCostAggregator(repos.carts, repos.catalog, repos.shipments, codec, cfg.Cart.DefaultCurrency, opts...),
		Codec: codec,
		Log:   logg,
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	healthServer := handler.RegisterCartServiceServer(grpcServer, handler.NewGRPCHandler(svc))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logg.Error("failed to listen", slog.String("addr", cfg.GRPC.Addr), slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		logg.Info("gRPC server listening", slog.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logg.Error("gRPC server error", slog.Any("err", err))
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	httpHandler := handler.NewHTTPHandler(svc)
	router.GET("/health", httpHandler.HealthCheck)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	httpHandler.RegisterRoutes(router.Group("/api/v1"))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logg.Info("HTTP server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logg.Error("HTTP server error", slog.Any("err", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down...")
	healthServer.Shutdown()

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Warn("HTTP shutdown", slog.Any("err", err))
	}
	logg.Info("HTTP server stopped")

	// Stop gRPC server
	grpcServer.GracefulStop()
	logg.Info("gRPC server stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config, logg *slog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		store := memory.NewStore()
		logg.Warn("using in-memory storage, carts are lost on restart")
		return &repositories{carts: store, catalog: store, shipments: store, close: func() error { return nil }}, nil
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	logg.Info("connected to mysql")

	adapter := storage.NewMySQLAdapter(db)
	if cfg.MySQL.Migrate {
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logg.Info("schema migrated")
	}
	return &repositories{carts: adapter, catalog: adapter, shipments: adapter, close: db.Close}, nil
}
