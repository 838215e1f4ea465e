// Package chain implements the block chain engine of spec.md §4.4:
// accepting blocks, verifying difficulty transitions, connecting them
// to the best chain, holding orphans, and driving reorganizations.
//
// Grounded on the teacher's graph.go (blkGraph's ancestor-tree and
// split-detection logic is the direct ancestor of the orphan tree and
// the reorg common-ancestor walk below) and streamer.go (the
// channel-driven retry-on-connect worker is the ancestor of the
// post-connect orphan-draining loop in Add).
package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
)

// BlockType tells the wallet whether a transaction's containing block
// is on the best chain or a side branch (spec.md §4.6).
type BlockType int

const (
	BestChain BlockType = iota
	SideChain
)

// WalletSink is the chain engine's view of the wallet: just enough to
// deliver block-arrival and reorganization events without importing
// the wallet package (which itself imports this package for
// BlockType, so the dependency can only run from wallet to chain).
type WalletSink interface {
	Receive(tx *spv.Tx, block *chainstore.StoredBlock, blockType BlockType)
	Reorganize(oldChain, newChain []*chainstore.StoredBlock)
}

// BlockChain is the public contract of §4.4: thread-safe, serialized
// on a single chain-wide lock that is held across an entire Add,
// including orphan retry rounds and the wallet callbacks within
// (spec.md §5's BlockChain→Wallet nesting order).
type BlockChain struct {
	mu     sync.Mutex
	store  chainstore.BlockStore
	params *spv.NetParams
	wallet WalletSink

	// orphans maps a missing parent hash to the blocks waiting on it
	// — the design note's "mapping from prev_hash to set of orphan
	// block" alternative to an append-only list, chosen for its O(1)
	// wake-up (spec.md §9).
	orphans map[spv.Hash][]*spv.Block

	// lastOrphan is the most recently stored orphan's hash, used by
	// the peer's "continue" signal detection (spec.md §4.5).
	lastOrphan spv.Hash
	hasOrphan  bool

	now func() time.Time
}

func New(store chainstore.BlockStore, params *spv.NetParams, wallet WalletSink) *BlockChain {
	return &BlockChain{
		store:   store,
		params:  params,
		wallet:  wallet,
		orphans: make(map[spv.Hash][]*spv.Block),
		now:     time.Now,
	}
}

// LastOrphan returns the hash of the most recently recorded orphan
// block and whether one exists, for the peer's continue-signal check.
func (bc *BlockChain) LastOrphan() (spv.Hash, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.lastOrphan, bc.hasOrphan
}

// Head returns the current best-chain head.
func (bc *BlockChain) Head() (*chainstore.StoredBlock, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.store.Head()
}

// Add implements the algorithm of §4.4 steps 1-8. It returns true if
// the block connected to the best chain or a known side chain, false
// if it was held as an orphan.
func (bc *BlockChain) Add(block *spv.Block) (bool, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.add(block)
}

func (bc *BlockChain) add(block *spv.Block) (bool, error) {
	hash := block.Hash()

	head, err := bc.store.Head()
	if err != nil {
		return false, err
	}

	// Step 1: idempotent duplicate of the current head.
	if hash == head.Hash() {
		return true, nil
	}

	// Step 2: context-free verification.
	if err := spv.Verify(block, bc.params, bc.now()); err != nil {
		return false, err
	}

	// Step 3: look up parent.
	prev, ok, err := bc.store.Get(block.PrevHash)
	if err != nil {
		return false, err
	}
	if !ok {
		bc.storeOrphan(block)
		return false, nil
	}

	// Step 4: derive the candidate StoredBlock.
	next := prev.Build(block.BlockHeader)

	// Step 5: difficulty transition check.
	if err := bc.checkDifficultyTransition(prev, next); err != nil {
		return false, err
	}

	// Step 6: persist.
	if err := bc.store.Put(next); err != nil {
		return false, err
	}

	// Step 7: connect.
	if err := bc.connect(prev, next, block, head); err != nil {
		return false, err
	}

	// Step 8: drain orphans, round by round, until a full pass
	// connects none — the direct descendant of streamer.go's
	// retry-on-connect worker loop.
	bc.drainOrphans(hash)

	return true, nil
}

func (bc *BlockChain) storeOrphan(block *spv.Block) {
	hash := block.Hash()
	bc.orphans[block.PrevHash] = append(bc.orphans[block.PrevHash], block)
	bc.lastOrphan = hash
	bc.hasOrphan = true
}

func (bc *BlockChain) drainOrphans(justConnected spv.Hash) {
	for {
		waiting, ok := bc.orphans[justConnected]
		if !ok || len(waiting) == 0 {
			return
		}
		delete(bc.orphans, justConnected)

		connectedAny := false
		for _, orphan := range waiting {
			if ok, err := bc.add(orphan); err == nil && ok {
				connectedAny = true
				justConnected = orphan.Hash()
			} else if err != nil {
				// A verification error surfacing from a previously
				// stored orphan drops the orphan without logging or
				// returning the error — it can never become valid by
				// waiting longer.
				continue
			} else {
				// Still missing a (different) parent: re-orphan.
				bc.orphans[orphan.PrevHash] = append(bc.orphans[orphan.PrevHash], orphan)
			}
		}
		if !connectedAny {
			return
		}
	}
}

// connect implements step 7: either the new block extends the
// current head (promote + feed BestChain), or it grows a side branch
// that either overtakes the head (reorganize) or stays behind it
// (feed SideChain).
func (bc *BlockChain) connect(prev, next *chainstore.StoredBlock, block *spv.Block, head *chainstore.StoredBlock) error {
	if prev.Hash() == head.Hash() {
		if err := bc.store.SetHead(next.Hash()); err != nil {
			return err
		}
		bc.feed(block, next, BestChain)
		return nil
	}

	// Side branch. Edge policy: equal cumulative work keeps the
	// existing head (first-seen wins), per spec.md §4.4.
	//
	// The reorg-triggering block is fed as a side-chain block first,
	// same as any other side branch block: Reorganize only carries
	// StoredBlock headers, so a block's transactions reach the wallet
	// exclusively through feed, and the new tip is no exception.
	bc.feed(block, next, SideChain)
	if next.Work.Cmp(head.Work) > 0 {
		return bc.reorganize(head, next)
	}
	return nil
}

func (bc *BlockChain) feed(block *spv.Block, sb *chainstore.StoredBlock, bt BlockType) {
	if bc.wallet == nil {
		return
	}
	for _, tx := range block.Txs {
		bc.wallet.Receive(tx, sb, bt)
	}
}

// reorganize implements spec.md §4.4's reorg algorithm: locate the
// common ancestor by walking both cursors back (always advancing the
// cursor at greater height) until they meet, then deliver
// (old_chain, new_chain) to the wallet before moving the head
// pointer. Grounded on graph.go's ancestor/DFS machinery, generalized
// from chain-length comparison to cumulative-work comparison.
func (bc *BlockChain) reorganize(oldHead, newHead *chainstore.StoredBlock) error {
	oldChain, newChain, err := bc.commonAncestorChains(oldHead, newHead)
	if err != nil {
		return err
	}

	if bc.wallet != nil {
		bc.wallet.Reorganize(oldChain, newChain)
	}

	return bc.store.SetHead(newHead.Hash())
}

func (bc *BlockChain) commonAncestorChains(oldHead, newHead *chainstore.StoredBlock) (oldChain, newChain []*chainstore.StoredBlock, err error) {
	oldCursor, newCursor := oldHead, newHead
	var oldPath, newPath []*chainstore.StoredBlock

	for oldCursor.Hash() != newCursor.Hash() {
		switch {
		case oldCursor.Height > newCursor.Height:
			oldPath = append(oldPath, oldCursor)
			oldCursor, err = bc.getParent(oldCursor)
		case newCursor.Height > oldCursor.Height:
			newPath = append(newPath, newCursor)
			newCursor, err = bc.getParent(newCursor)
		default:
			oldPath = append(oldPath, oldCursor)
			newPath = append(newPath, newCursor)
			if oldCursor, err = bc.getParent(oldCursor); err != nil {
				return nil, nil, err
			}
			newCursor, err = bc.getParent(newCursor)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	// oldPath/newPath were collected head-to-ancestor; reverse to
	// ancestor-to-head order, exclusive of the ancestor itself.
	reverse(oldPath)
	reverse(newPath)
	return oldPath, newPath, nil
}

func (bc *BlockChain) getParent(sb *chainstore.StoredBlock) (*chainstore.StoredBlock, error) {
	parent, ok, err := bc.store.Get(sb.Header.PrevHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chain: missing ancestor %v while reorganizing", sb.Header.PrevHash)
	}
	return parent, nil
}

func reverse(s []*chainstore.StoredBlock) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
