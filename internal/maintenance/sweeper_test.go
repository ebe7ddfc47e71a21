package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweep struct {
	runs atomic.Int64
}

func (c *countingSweep) DeactivateExpired(context.Context) (int64, error) {
	c.runs.Add(1)
	return 0, nil
}

func TestSweeperRunsImmediatelyAndOnTicks(t *testing.T) {
	sweep := &countingSweep{}
	s := NewSweeper(sweep, 20*time.Millisecond, zap.NewNop())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start must fail")

	assert.Eventually(t, func() bool {
		return sweep.runs.Load() >= 3
	}, time.Second, 5*time.Millisecond, "initial pass plus at least two ticks")

	s.Stop()
	after := sweep.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, sweep.runs.Load(), "no sweeps after stop")

	// Stopping again is a no-op.
	s.Stop()
}
