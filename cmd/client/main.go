package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/roomcall/external/audio"
	configloader "github.com/foxseedlab/roomcall/external/config"
	"github.com/foxseedlab/roomcall/external/httpapi"
	notifyimpl "github.com/foxseedlab/roomcall/external/notify"
	repositoryimpl "github.com/foxseedlab/roomcall/external/repository"
	"github.com/foxseedlab/roomcall/external/rtpnet"
	"github.com/foxseedlab/roomcall/internal/config"
	"github.com/foxseedlab/roomcall/internal/receiver"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "payload_format", cfg.PayloadFormat().String())

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: starting receive pipeline")
	runClient(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	// stdout may carry the mixed PCM, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	rtpnet.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	receiver.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runClient(cfg *config.Config, injector do.Injector) {
	pipeline, err := do.Invoke[*receiver.Pipeline](injector)
	if err != nil {
		slog.Error("failed to resolve receive pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Start(ctx); err != nil {
		slog.Error("failed to start receive pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			slog.Error("receive pipeline close failed", "error", err)
		}
	}()

	for _, roomID := range cfg.AutoJoinRooms {
		if err := pipeline.JoinRoom(roomID, cfg.SelfSSRC); err != nil {
			slog.Error("failed to auto-join room", "error", err, "room_id", roomID)
			if errors.Is(err, receiver.ErrLink) {
				os.Exit(1)
			}
		}
	}

	if cfg.ControlAddr != "" {
		server, err := do.Invoke[*httpapi.Server](injector)
		if err != nil {
			slog.Error("failed to resolve control api", "error", err)
			os.Exit(1)
		}
		if err := server.Start(); err != nil {
			slog.Error("failed to start control api", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("control api shutdown failed", "error", err)
			}
		}()
	} else {
		slog.Info("CONTROL_ADDR empty; control api disabled")
	}

	slog.Info("receive pipeline running", "rooms", pipeline.Rooms(), "multicast_port", cfg.RTPMulticastPort)
	<-ctx.Done()
	slog.Info("shutting down")
}
