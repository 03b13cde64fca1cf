package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	reapInterval   = 1 * time.Minute
	defaultMaxIdle = 10 * time.Minute
)

// IdleReaper ends conversations whose device stopped sending anything,
// including pongs. Without it a phone that silently drops off the network
// would leave its conversation open server-side indefinitely.
type IdleReaper struct {
	hub      *Hub
	maxIdle  time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewIdleReaper creates an idle reaper. maxIdle <= 0 selects the default of
// ten minutes.
func NewIdleReaper(hub *Hub, maxIdle time.Duration, logger *zap.Logger) *IdleReaper {
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	return &IdleReaper{
		hub:      hub,
		maxIdle:  maxIdle,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reap process.
func (r *IdleReaper) Start() {
	go r.reapLoop()
	r.logger.Info("Idle reaper started", zap.Duration("maxIdle", r.maxIdle))
}

// Stop gracefully stops the reaper.
func (r *IdleReaper) Stop() {
	close(r.stopChan)
	r.logger.Info("Idle reaper stopped")
}

func (r *IdleReaper) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

func (r *IdleReaper) reap() {
	cutoff := time.Now().Add(-r.maxIdle)

	r.hub.mu.RLock()
	var stale []*Client
	for _, client := range r.hub.clients {
		if client.idleSince().Before(cutoff) {
			stale = append(stale, client)
		}
	}
	r.hub.mu.RUnlock()

	for _, client := range stale {
		r.logger.Info("Reaping idle client",
			zap.String("userID", client.userID),
			zap.Time("lastActivity", client.idleSince()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r.hub.conversations.Release(ctx, client.controller)
		cancel()

		// Closing the connection lets readPump unwind and unregister.
		client.conn.Close()
	}
}
