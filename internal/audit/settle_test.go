package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedDelay_Waits(t *testing.T) {
	start := time.Now()
	err := FixedDelay{}.Settle(context.Background(), 20*time.Millisecond, "test")
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFixedDelay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := FixedDelay{}.Settle(ctx, time.Minute, "test")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFixedDelay_ZeroDuration(t *testing.T) {
	assert.NoError(t, FixedDelay{}.Settle(context.Background(), 0, "none"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, FixedDelay{}.Settle(ctx, 0, "none"), context.Canceled)
}
