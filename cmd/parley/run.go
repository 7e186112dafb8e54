package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-im/parley-go/internal/auth"
	"github.com/parley-im/parley-go/internal/config"
	"github.com/parley-im/parley-go/internal/events"
	"github.com/parley-im/parley-go/internal/history"
	"github.com/parley-im/parley-go/internal/metrics"
	"github.com/parley-im/parley-go/internal/protocol"
	"github.com/parley-im/parley-go/internal/roomstate"
	"github.com/parley-im/parley-go/internal/session"
	"github.com/parley-im/parley-go/internal/subs"
	"github.com/parley-im/parley-go/internal/version"
)

var (
	flagConfig    string
	flagTokenFile string
	flagRooms     []string
	flagVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect and mirror room timelines",
	RunE:  runClient,
}

func init() {
	runCmd.Flags().StringVarP(&flagConfig, "config", "c", "configs/parley.yaml", "path to config file")
	runCmd.Flags().StringVar(&flagTokenFile, "token-file", "", "path to bearer token file (default: PARLEY_TOKEN env)")
	runCmd.Flags().StringSliceVar(&flagRooms, "rooms", nil, "room ids to subscribe (default: all rooms from the REST API)")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func runClient(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting sync client",
		"version", version.Version,
		"commit", version.Commit,
		"config", flagConfig,
	)

	cfg, err := config.LoadAndValidate(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cred, err := loadCredential()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Assemble the client: store and router first, then the session feeding
	// them, then the REST collaborator recovering history after reconnects.
	store := roomstate.NewStore(logger)
	router := events.NewRouter(logger)
	store.Bind(router)

	manager := session.NewManager(session.Config{
		URL:                  cfg.Server.WSURL,
		HeartbeatInterval:    cfg.Session.HeartbeatInterval,
		LeaseInterval:        cfg.Session.LeaseInterval,
		WriteTimeout:         cfg.Session.WriteTimeout,
		FrameBuffer:          cfg.Session.FrameBuffer,
		ReconnectBaseDelay:   cfg.Session.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Session.ReconnectMaxDelay,
		ReconnectMaxAttempts: cfg.Session.ReconnectMaxAttempts,
	}, router.Dispatch, logger)

	registry := subs.NewRegistry(manager, logger)
	registry.Bind(router)

	restClient := history.NewClient(
		cfg.Server.RestURL,
		cred,
		history.WithLogger(logger),
		history.WithTimeout(cfg.Server.Timeout),
		history.WithRetries(cfg.History.MaxRetries, cfg.History.RetryBackoff),
	)
	refresher := history.NewRefresher(history.RefresherConfig{
		PageSize:    cfg.History.PageSize,
		Concurrency: cfg.History.Concurrency,
		Timeout:     cfg.Server.Timeout,
	}, restClient, registry, store, logger)

	// Replay subscriptions on every authentication, then backfill whatever
	// arrived while the socket was down.
	manager.OnAuthenticated(func() {
		registry.Replay()
		go refresher.Refresh(ctx)
	})
	manager.OnStateChange(func(c session.StateChange) {
		logger.Info("session state", "from", c.Old, "to", c.New)
		if c.New == session.StateDisconnected {
			// Explicit disconnect; the subscription set does not survive it.
			registry.Clear()
		}
		if c.New == session.StateError && c.Err != nil {
			logger.Error("session failed", "error", c.Err)
			cancel()
		}
	})

	logTimeline(router, logger)

	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			logger.Info("serving metrics", "addr", addr, "path", cfg.Metrics.Path)
			if err := metrics.Serve(addr, cfg.Metrics.Path); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		manager.Stop(shutdownCtx)
	}()

	if err := manager.Connect(cred); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	rooms := flagRooms
	if len(rooms) == 0 {
		listed, err := restClient.ListRooms(ctx)
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		for _, r := range listed {
			rooms = append(rooms, r.ID)
		}
	}
	for _, id := range rooms {
		if err := registry.Subscribe(id); err != nil {
			logger.Warn("subscribe failed", "room_id", id, "error", err)
		}
	}
	logger.Info("subscribed", "rooms", len(rooms))

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// loadCredential reads the bearer token from the file flag or the
// PARLEY_TOKEN environment variable.
func loadCredential() (auth.Credential, error) {
	if flagTokenFile != "" {
		return auth.FromFile(flagTokenFile)
	}
	cred, err := auth.FromEnv("PARLEY_TOKEN")
	if err != nil {
		return auth.Credential{}, fmt.Errorf("no credential: set PARLEY_TOKEN or pass --token-file: %w", err)
	}
	return cred, nil
}

// logTimeline prints the live traffic the store is absorbing.
func logTimeline(router *events.Router, logger *slog.Logger) {
	router.On(protocol.TypeMessageCreated, func(f protocol.Frame) {
		var p protocol.MessageEventPayload
		if err := f.Unmarshal(&p); err != nil {
			return
		}
		logger.Info("message",
			"room_id", p.Message.RoomID,
			"sender", p.Message.SenderID,
			"content", p.Message.Content,
		)
	})
	router.On(protocol.TypeTypingChanged, func(f protocol.Frame) {
		var p protocol.TypingChangedPayload
		if err := f.Unmarshal(&p); err != nil {
			return
		}
		logger.Debug("typing", "room_id", p.RoomID, "users", p.TypingUserIDs)
	})
	router.On(protocol.TypeNotifyMessage, func(f protocol.Frame) {
		var p protocol.NotifyMessagePayload
		if err := f.Unmarshal(&p); err != nil {
			return
		}
		logger.Info("notification", "room_id", p.RoomID, "sender", p.SenderID, "preview", p.Preview)
	})
	router.OnNamespace("presence", func(f protocol.Frame) {
		logger.Debug("presence event", "type", f.Type)
	})
}
