package connmgr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHeartbeatTriggersUnhealthyAfterThreeMisses(t *testing.T) {
	var unhealthy int32
	failing := func(ctx context.Context) error { return errors.New("no response") }

	hb := newHeartbeat(time.Millisecond, failing, func() { atomic.StoreInt32(&unhealthy, 1) }, zap.NewNop())

	for i := 0; i < maxMissedHeartbeats; i++ {
		hb.tick(context.Background())
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&unhealthy))
}

func TestHeartbeatResetsMissCountOnSuccess(t *testing.T) {
	var unhealthy int32
	calls := 0
	send := func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil // recovers after one miss
		}
		return errors.New("no response")
	}

	hb := newHeartbeat(time.Millisecond, send, func() { atomic.StoreInt32(&unhealthy, 1) }, zap.NewNop())
	hb.tick(context.Background()) // miss 1
	hb.tick(context.Background()) // success, resets
	hb.tick(context.Background()) // miss 1 again
	hb.tick(context.Background()) // miss 2

	require.Equal(t, int32(0), atomic.LoadInt32(&unhealthy))
}
