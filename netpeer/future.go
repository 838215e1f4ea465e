package netpeer

import (
	"sync"
	"time"

	"github.com/blkwallet/spv"
)

// BlockFuture is spec.md §9's "sum-typed pending request record": it
// starts empty, is completed exactly once by the reader goroutine,
// and can be advisorially cancelled by the caller (the reply, if it
// still arrives, is discarded rather than stored).
type BlockFuture struct {
	mu        sync.Mutex
	done      chan struct{}
	block     *spv.Block
	err       error
	discarded bool
}

func newBlockFuture() *BlockFuture {
	return &BlockFuture{done: make(chan struct{})}
}

// Cancel marks the future as discarded; a reply that arrives after
// Cancel is silently dropped by complete.
func (f *BlockFuture) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
}

func (f *BlockFuture) complete(block *spv.Block, err error) {
	f.mu.Lock()
	if f.discarded {
		f.mu.Unlock()
		return
	}
	f.block, f.err = block, err
	f.mu.Unlock()
	close(f.done)
}

// Get blocks until the future completes or timeout elapses.
func (f *BlockFuture) Get(timeout time.Duration) (*spv.Block, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.block, f.err
	case <-time.After(timeout):
		return nil, &spv.TimeoutError{Op: "get_block"}
	}
}
