package main

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/mossvale/stallworks/internal/adapter/handler"
	"github.com/mossvale/stallworks/internal/adapter/handler/pb"
	"github.com/mossvale/stallworks/internal/adapter/storage"
	"github.com/mossvale/stallworks/internal/config"
	"github.com/mossvale/stallworks/internal/core/retry"
	"github.com/mossvale/stallworks/internal/core/service"
	"github.com/mossvale/stallworks/internal/obs"
	"github.com/mossvale/stallworks/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledgerDB := openMySQL(ctx, log, "ledger", cfg.LedgerDSN)
	defer ledgerDB.Close()
	holdingsDB := openMySQL(ctx, log, "holdings", cfg.HoldingsDSN)
	defer holdingsDB.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	var legacy port.LegacyRequestStore
	if cfg.LegacyDBPath != "" {
		archive, err := storage.OpenSQLiteLegacy(cfg.LegacyDBPath)
		if err != nil {
			log.Fatal("failed to open legacy archive", zap.Error(err))
		}
		defer archive.Close()
		legacy = archive
		log.Info("legacy request archive attached", zap.String("path", cfg.LegacyDBPath))
	}

	engine := service.NewEngine(
		storage.NewMySQLLedger(ledgerDB),
		storage.NewMySQLHoldings(holdingsDB),
		storage.NewRedisAdapter(rdb),
		service.Options{
			Legacy:     legacy,
			Logger:     log,
			RequestTTL: cfg.RequestTTL(),
			Policy: retry.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay(),
				JitterMax:   cfg.Retry.JitterMax(),
			},
		},
	)

	go engine.RunSweeper(ctx, cfg.SweepInterval())
	log.Info("sweeper started", zap.Duration("interval", cfg.SweepInterval()))

	grpcServer := grpc.NewServer()
	pb.RegisterFulfillmentServer(grpcServer, handler.NewGRPCHandler(engine))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	httpHandler := handler.NewHTTPHandler(engine)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/requests", httpHandler.GetRequest)
	mux.HandleFunc("/api/requests/create", httpHandler.CreateRequest)
	mux.HandleFunc("/api/fulfill", httpHandler.Fulfill)
	mux.HandleFunc("/api/cancel", httpHandler.Cancel)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	log.Info("servers stopped")
}

func openMySQL(ctx context.Context, log *zap.Logger, name, dsn string) *sql.DB {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal("failed to open mysql", zap.String("partition", name), zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping mysql", zap.String("partition", name), zap.Error(err))
	}
	log.Info("connected to mysql", zap.String("partition", name))
	return db
}
