package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game/tetrisnt"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/server"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/session"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/storage"
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_DEV") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	dbPath := "tetrisnt.db"
	if p := os.Getenv("DB_PATH"); p != "" {
		dbPath = p
	}

	tick := 16 * time.Millisecond
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			logger.Fatal("invalid TICK_INTERVAL", zap.String("value", v))
		}
		tick = d
	}

	store, err := storage.New(dbPath)
	if err != nil {
		logger.Fatal("open database", zap.String("path", dbPath), zap.Error(err))
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(tetrisnt.Game{Logger: logger.Named("tetrisnt")})

	mgr := session.NewManager(registry, store, logger.Named("session"))
	if err := mgr.Restore(); err != nil {
		logger.Warn("restore sessions", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cleanup stale sessions every minute, remove after 1 hour
	go mgr.CleanupLoop(ctx, 1*time.Minute, 1*time.Hour)

	srv := server.New(ctx, registry, mgr, server.Options{
		TickInterval: tick,
		Logger:       logger.Named("server"),
	})
	if n := srv.ResumeTicking(); n > 0 {
		logger.Info("resumed matches", zap.Int("count", n))
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", addr), zap.Duration("tick", tick))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
	srv.Wait()
}
