package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) PeriodicRefresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestLastSeenWorker_Ticks_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	// Given a refresher that always fails
	refresher := &countingRefresher{err: errors.New("store down")}
	w := NewLastSeenWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), refresher, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then it keeps ticking through failures
	req.Eventually(func() bool { return refresher.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	// And stops cleanly on cancel
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker did not stop")
	}
}
