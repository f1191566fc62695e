// Package pool implements the cached worker-pool discipline behind the
// engine's I/O workers (spec §4.7 C9 Worker Pool): a process-wide pool that
// is created lazily on first use and never torn down, coexisting with
// per-command local pools that are created fresh for each Start and
// disposed when the command terminates.
//
// Workers are named "<prefix>-<name>-<seq>"; the engine stamps each Start
// invocation with a run ID (github.com/google/uuid) and folds it into
// worker names as "cli-assert-io-<run>-(stdout|stderr|stdin)-<seq>" so
// log lines and panics can be traced back to the exact concurrent test
// that produced them (spec §4.7: "this index must appear in the error
// messages to support debugging concurrent tests").
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// errAlreadyCreated is returned by Configure once the process-wide pool has
// been created (spec §4.7: "subsequent configuration attempts fail with
// 'pool already created'").
var errAlreadyCreated = errors.New("pool already created")

// Handle is returned by Submit; Join blocks until the submitted task has
// returned.
type Handle interface {
	Join()
}

// Pool is the minimal worker-submission surface the engine needs (spec §9:
// "Expose the pool as an interface with submit(task) → join_handle").
type Pool interface {
	// Submit runs fn on a worker named name and returns a Handle to join
	// it. If the pool has no free capacity, Submit blocks until a worker
	// is available. Both the process-wide pool and local pools are bounded
	// by their max size; a max size <= 0 means unbounded.
	Submit(name string, fn func()) Handle
}

// handle implements Handle over a single goroutine's completion channel.
type handle struct{ done chan struct{} }

func (h *handle) Join() { <-h.done }

// cachedPool is the default Pool implementation: a bounded (or unbounded)
// set of named goroutines dispatched through a semaphore, matching the
// process-wide pool's core/max/keep_alive configuration surface (spec
// §4.7). Workers are not literally kept warm between tasks (Go goroutines
// are cheap enough that a real thread-pool-with-idle-reaping design would
// only add complexity); core size and "keep_alive" are accepted for API
// compatibility and stored, but do not affect dispatch: only the max size
// bounds concurrency.
type cachedPool struct {
	sem       *semaphore.Weighted // nil means unbounded
	coreSize  int
	maxSize   int
	keepAlive time.Duration
	logger    *zap.Logger
	seq       atomic.Int64
	prefix    string
}

// newCachedPool returns a pool bounded by maxSize (<=0 means unbounded).
func newCachedPool(prefix string, coreSize, maxSize int, keepAlive time.Duration, logger *zap.Logger) *cachedPool {
	p := &cachedPool{coreSize: coreSize, maxSize: maxSize, keepAlive: keepAlive, logger: logger, prefix: prefix}
	if maxSize > 0 {
		p.sem = semaphore.NewWeighted(int64(maxSize))
	}
	return p
}

func (p *cachedPool) Submit(name string, fn func()) Handle {
	h := &handle{done: make(chan struct{})}
	seq := p.seq.Add(1)
	workerName := fmt.Sprintf("%s-%s-%d", p.prefix, name, seq)

	acquire := func() {
		if p.sem != nil {
			_ = p.sem.Acquire(context.Background(), 1)
		}
	}
	release := func() {
		if p.sem != nil {
			p.sem.Release(1)
		}
	}

	acquire()
	go func() {
		defer close(h.done)
		defer release()
		defer func() {
			if r := recover(); r != nil && p.logger != nil {
				p.logger.Error("worker panicked", zap.String("worker", workerName), zap.Any("recover", r))
			}
		}()
		fn()
	}()
	return h
}

var (
	processPoolOnce    sync.Once
	processPool        *cachedPool
	processPoolCore    = 0
	processPoolMax     = -1 // unbounded
	processPoolKeep    = 60 * time.Second
	processPoolMu      sync.Mutex
	processPoolCreated atomic.Bool
)

// Configure sets the process-wide pool's core size, max size, and
// keep-alive. It must be called before the pool is first used (via
// ProcessWide); calling it afterward returns errAlreadyCreated (spec
// §4.7: "Parameters are configurable only before first creation").
func Configure(coreSize, maxSize int, keepAlive time.Duration) error {
	processPoolMu.Lock()
	defer processPoolMu.Unlock()
	if processPoolCreated.Load() {
		return errAlreadyCreated
	}
	processPoolCore, processPoolMax, processPoolKeep = coreSize, maxSize, keepAlive
	return nil
}

// ProcessWide returns the process-wide pool, creating it on first use with
// whatever parameters Configure last set (defaults: core=0, max=unbounded,
// keep_alive=60s). It is never shut down by the engine (spec §4.7).
func ProcessWide(logger *zap.Logger) Pool {
	processPoolOnce.Do(func() {
		processPoolMu.Lock()
		core, max, keep := processPoolCore, processPoolMax, processPoolKeep
		processPoolMu.Unlock()
		processPool = newCachedPool("cli-assert-io", core, max, keep, logger)
		processPoolCreated.Store(true)
	})
	return processPool
}

// NewLocal returns a fresh per-command pool with the given spec, to be
// disposed (simply dropped; goroutines self-terminate) when the command
// that owns it terminates (spec §4.7 "per-command local pool"). Run
// correlation comes from the caller's Submit name, not the prefix here,
// so callers get "cli-assert-io-<run>-<tag>-<seq>" without doubling it.
func NewLocal(maxSize int, logger *zap.Logger) Pool {
	return newCachedPool("cli-assert-io", 0, maxSize, 0, logger)
}
