package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-im/parley-go/internal/model"
)

// RoomSource provides the rooms whose timelines should be refreshed.
type RoomSource interface {
	Rooms() []string
}

// RefresherConfig holds refresher configuration.
type RefresherConfig struct {
	PageSize    int           // Messages per page (default: 50)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultRefresherConfig returns sensible defaults.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		PageSize:    50,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// PageSink merges one fetched page into local room state.
type PageSink interface {
	SetHistoryLoading(roomID string, loading bool)
	MergeHistory(roomID string, msgs []model.Message, nextCursor string, hasMore bool)
}

// Refresher re-pulls the latest history page for every subscribed room, used
// after reconnection to recover messages delivered while the socket was down.
type Refresher struct {
	cfg    RefresherConfig
	client *Client
	rooms  RoomSource
	sink   PageSink
	logger *slog.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg RefresherConfig, client *Client, rooms RoomSource, sink PageSink, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cfg:    cfg,
		client: client,
		rooms:  rooms,
		sink:   sink,
		logger: logger,
	}
}

// Refresh fetches the most recent page for every subscribed room with bounded
// concurrency and merges the results. Errors are logged per room, never
// fatal: a failed room keeps its current timeline.
func (r *Refresher) Refresh(ctx context.Context) {
	start := time.Now()

	rooms := r.rooms.Rooms()
	if len(rooms) == 0 {
		r.logger.Debug("no rooms to refresh")
		return
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, roomID := range rooms {
		wg.Add(1)
		go func(roomID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := r.refreshRoom(ctx, roomID); err != nil {
				r.logger.Warn("failed to refresh room",
					"room_id", roomID,
					"err", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(roomID)
	}

	wg.Wait()

	r.logger.Info("history refresh complete",
		"rooms", len(rooms),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// LoadOlder fetches the page before the given cursor for one room, for
// scroll-back.
func (r *Refresher) LoadOlder(ctx context.Context, roomID, cursor string) error {
	r.sink.SetHistoryLoading(roomID, true)
	defer r.sink.SetHistoryLoading(roomID, false)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	page, err := r.client.MessagesPage(ctx, roomID, cursor, r.cfg.PageSize)
	if err != nil {
		return err
	}

	r.sink.MergeHistory(roomID, page.Messages, page.NextCursor, page.HasMore)
	return nil
}

// refreshRoom fetches and merges a single room's latest page.
func (r *Refresher) refreshRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	page, err := r.client.MessagesPage(ctx, roomID, "", r.cfg.PageSize)
	if err != nil {
		return err
	}

	r.sink.MergeHistory(roomID, page.Messages, page.NextCursor, page.HasMore)
	return nil
}
