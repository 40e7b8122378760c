package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerEmitsSnapshotWithTotal(t *testing.T) {
	counter := &AtomicCounter{}
	ticker := NewTicker(context.Background(), counter, 10, 5*time.Millisecond)
	defer ticker.Stop()

	counter.Inc()
	counter.Inc()

	snapshot, ok := <-ticker.C
	require.True(t, ok)
	assert.GreaterOrEqual(t, snapshot.Count, int64(0))
	assert.Equal(t, int64(10), snapshot.Total)
}

func TestSnapshotPercentHandlesZeroTotal(t *testing.T) {
	snapshot := Snapshot{Count: 3, Total: 0}
	assert.Equal(t, 0.0, snapshot.Percent())
}

func TestSnapshotPercent(t *testing.T) {
	snapshot := Snapshot{Count: 25, Total: 100}
	assert.InDelta(t, 25.0, snapshot.Percent(), 0.001)
}
