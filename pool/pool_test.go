package pool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/cliassert/pool"
)

func TestLocalPoolRunsTask(t *testing.T) {
	p := pool.NewLocal(4, nil)

	var ran atomic.Bool
	h := p.Submit("stdout", func() { ran.Store(true) })
	h.Join()

	assert.True(t, ran.Load())
}

func TestLocalPoolBoundsConcurrency(t *testing.T) {
	p := pool.NewLocal(1, nil)

	var active atomic.Int32
	var maxActive atomic.Int32
	handles := make([]pool.Handle, 0, 5)
	for i := 0; i < 5; i++ {
		handles = append(handles, p.Submit("worker", func() {
			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
		}))
	}
	for _, h := range handles {
		h.Join()
	}

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestConfigureFailsAfterProcessWideCreated(t *testing.T) {
	_ = pool.ProcessWide(nil)
	err := pool.Configure(1, 1, time.Second)
	require.Error(t, err)
}
