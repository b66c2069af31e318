package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher extends session TTLs in the background, detached from the
// request that triggered the refresh.
type Refresher struct {
	manager *Manager
	logger  *slog.Logger
	timeout time.Duration
	observe func(error)
	wg      sync.WaitGroup
}

// NewRefresher constructs a Refresher. observe, when not nil, receives the
// outcome of every task.
func NewRefresher(manager *Manager, logger *slog.Logger, timeout time.Duration, observe func(error)) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Refresher{manager: manager, logger: logger, timeout: timeout, observe: observe}
}

// Spawn starts a refresh of the session id and returns immediately. The
// returned channel receives exactly one value and is then closed.
func (r *Refresher) Spawn(id string) <-chan error {
	result := make(chan error, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(result)

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		err := r.manager.RefreshID(ctx, id)
		if err != nil {
			r.logger.Warn("background session refresh failed", slog.Any("error", err))
		}
		if r.observe != nil {
			r.observe(err)
		}
		result <- err
	}()
	return result
}

// Wait blocks until every spawned refresh has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
