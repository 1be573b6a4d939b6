package connmgr

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const maxMissedHeartbeats = 3

// heartbeat sends periodic MTI 0800 echoes (network-info "301") on the
// send socket and tracks consecutive misses. Three consecutive misses
// trigger onUnhealthy, which the Connection wires to a RECONNECTING
// transition.
type heartbeat struct {
	interval    time.Duration
	missed      int32
	send        func(ctx context.Context) error
	onUnhealthy func()
	log         *zap.Logger
}

func newHeartbeat(interval time.Duration, send func(ctx context.Context) error, onUnhealthy func(), log *zap.Logger) *heartbeat {
	return &heartbeat{interval: interval, send: send, onUnhealthy: onUnhealthy, log: log}
}

// run blocks until ctx is cancelled, firing the heartbeat on interval.
func (h *heartbeat) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *heartbeat) tick(ctx context.Context) {
	sendCtx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	if err := h.send(sendCtx); err != nil {
		missed := atomic.AddInt32(&h.missed, 1)
		h.log.Warn("heartbeat missed", zap.Int32("consecutive_misses", missed), zap.Error(err))
		if missed >= maxMissedHeartbeats {
			atomic.StoreInt32(&h.missed, 0)
			h.onUnhealthy()
		}
		return
	}
	atomic.StoreInt32(&h.missed, 0)
}
