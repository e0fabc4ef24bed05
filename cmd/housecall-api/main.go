// README: Entry point; loads config, wires services, starts HTTP server and the realtime hub.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"housecall/internal/auth"
	"housecall/internal/config"
	"housecall/internal/dispatch"
	"housecall/internal/gateway"
	httptransport "housecall/internal/http"
	"housecall/internal/infra"
	"housecall/internal/modules/chat"
	"housecall/internal/modules/directory"
	"housecall/internal/modules/ledger"
	"housecall/internal/modules/order"
	"housecall/internal/notify"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = lvl
	return loggerCfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.Migrate(cfg.DB.DSN); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)

	dirStore := directory.NewStore(dbPool)

	ledgerStore := ledger.NewStore(dbPool)
	ledgerSvc := ledger.NewService(ledgerStore)

	hub := gateway.NewHub(redisClient, logger)
	dispatchSvc := dispatch.NewService(dirStore, hub, notifier,
		time.Duration(cfg.Notify.TimeoutMillis)*time.Millisecond, logger)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, ledgerSvc, dispatchSvc)

	chatStore := chat.NewStore(dbPool)
	chatSvc := chat.NewService(chatStore, orderSvc)

	gw := gateway.New(hub, verifier, chatSvc, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:   orderSvc,
		Chat:     chatSvc,
		Ledger:   ledgerSvc,
		Dir:      dirStore,
		Gateway:  gw,
		Verifier: verifier,
		Log:      logger,
	})

	go hub.Run(ctx)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
