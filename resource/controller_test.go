package resource

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerSearchSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("bounds concurrent workers", func(t *testing.T) {
		c := NewController(Config{MaxSearchWorkers: 2})

		var active, maxActive atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, c.AcquireSearch(ctx))
				defer c.ReleaseSearch()

				cur := active.Add(1)
				for {
					prev := maxActive.Load()
					if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, maxActive.Load(), int64(2))
	})

	t.Run("nil controller is a no-op", func(t *testing.T) {
		var c *Controller
		require.NoError(t, c.AcquireSearch(ctx))
		c.ReleaseSearch()
		require.NoError(t, c.AcquireIO(ctx, 1024))
	})

	t.Run("acquire respects cancellation", func(t *testing.T) {
		c := NewController(Config{MaxSearchWorkers: 1})
		require.NoError(t, c.AcquireSearch(ctx))
		defer c.ReleaseSearch()

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, c.AcquireSearch(canceled))
	})
}

func TestLimitWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("passes data through", func(t *testing.T) {
		c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

		var buf bytes.Buffer
		w := c.LimitWriter(ctx, &buf)

		n, err := w.Write([]byte("snapshot-bytes"))
		require.NoError(t, err)
		assert.Equal(t, 14, n)
		assert.Equal(t, "snapshot-bytes", buf.String())
	})

	t.Run("unlimited config returns the writer unchanged", func(t *testing.T) {
		c := NewController(Config{})

		var buf bytes.Buffer
		assert.Equal(t, &buf, c.LimitWriter(ctx, &buf))
	})

	t.Run("paces writes larger than the burst", func(t *testing.T) {
		c := NewController(Config{IOLimitBytesPerSec: 1024})

		var buf bytes.Buffer
		w := c.LimitWriter(ctx, &buf)

		data := make([]byte, 2048)
		start := time.Now()
		_, err := w.Write(data)
		require.NoError(t, err)

		// 2048 bytes at 1024 B/s with a full initial burst needs about a second.
		assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, 2048, buf.Len())
	})
}
