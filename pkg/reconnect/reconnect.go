// Copyright 2025 Certen Protocol
//
// Reconnection — retries a connection attempt with exponential backoff,
// then reloads persisted state and reconciles ledgers with the peer.

package reconnect

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrExhausted is returned when every reconnection attempt fails.
var ErrExhausted = errors.New("reconnect: exhausted all attempts")

// ConnectFunc attempts a single connection, returning an error on failure.
type ConnectFunc func(ctx context.Context) error

// Config controls reconnection retry behavior.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultConfig mirrors the protocol's original reconnection defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, RetryDelay: 5 * time.Second}
}

// Handler drives reconnection attempts for a single peer session.
type Handler struct {
	config Config
	logger *log.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewHandler creates a Handler with the given config.
func NewHandler(config Config) *Handler {
	return &Handler{
		config: config,
		logger: log.New(log.Writer(), "[Reconnect] ", log.LstdFlags),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt retries connect with exponential backoff (retryDelay * 2^attempt)
// up to MaxAttempts times, stopping early if ctx is cancelled. It returns
// nil as soon as connect succeeds, or ErrExhausted after the last attempt
// fails.
func (h *Handler) Attempt(ctx context.Context, connect ConnectFunc) error {
	for attempt := 0; attempt < h.config.MaxAttempts; attempt++ {
		h.logger.Printf("reconnection attempt %d/%d", attempt+1, h.config.MaxAttempts)

		if err := connect(ctx); err == nil {
			h.logger.Printf("reconnected successfully")
			return nil
		} else {
			h.logger.Printf("reconnection attempt %d failed: %v", attempt+1, err)
		}

		if attempt < h.config.MaxAttempts-1 {
			wait := h.config.RetryDelay * time.Duration(1<<uint(attempt))
			h.logger.Printf("waiting %v before next attempt", wait)
			if err := h.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	h.logger.Printf("reconnection failed after all attempts")
	return ErrExhausted
}
