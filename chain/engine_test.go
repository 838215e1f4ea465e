package chain

import (
	"testing"
	"time"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
)

// fakeWallet records every call the chain engine makes, so tests can
// assert on delivery order and contents without a real wallet.
type fakeWallet struct {
	received []receivedCall
	reorgs   []reorgCall
}

type receivedCall struct {
	tx        *spv.Tx
	block     *chainstore.StoredBlock
	blockType BlockType
}

type reorgCall struct {
	oldChain, newChain []*chainstore.StoredBlock
}

func (w *fakeWallet) Receive(tx *spv.Tx, block *chainstore.StoredBlock, bt BlockType) {
	w.received = append(w.received, receivedCall{tx, block, bt})
}

func (w *fakeWallet) Reorganize(oldChain, newChain []*chainstore.StoredBlock) {
	w.reorgs = append(w.reorgs, reorgCall{oldChain, newChain})
}

// mineHeader finds a nonce satisfying bits' target against the
// trivially easy UnitTests parameters — any nonce will do almost
// immediately given how large that target is.
func mineHeader(prev spv.Hash, bits uint32, t uint32, txs spv.TxList) *spv.BlockHeader {
	h := &spv.BlockHeader{
		Version:  1,
		PrevHash: prev,
		Time:     t,
		Bits:     bits,
	}
	if len(txs) > 0 {
		h.MerkleRoot = spv.MerkleRoot(txs.Hashes())
	}
	for nonce := uint32(0); nonce < 1_000_000; nonce++ {
		h.Nonce = nonce
		if isSatisfied(h, bits) {
			return h
		}
	}
	panic("could not mine a header under the trivially easy test target")
}

func isSatisfied(h *spv.BlockHeader, bits uint32) bool {
	b := &spv.Block{BlockHeader: h}
	return spv.Verify(b, spv.UnitTests, time.Now().Add(time.Hour)) == nil
}

func newTestChain(w WalletSink) *BlockChain {
	store := chainstore.NewMemStore(spv.UnitTests.Genesis)
	return New(store, spv.UnitTests, w)
}

// onScheduleTime returns the timestamp of the nth block (n >= 1) after
// genesis, spaced exactly RetargetTimespan apart. UnitTests' retarget
// window (walking back RetargetInterval-1 == 1 block) therefore always
// measures exactly one RetargetTimespan, keeping every transition
// on-schedule and bits unchanged throughout a freshly built chain.
func onScheduleTime(n int) uint32 {
	return spv.UnitTests.Genesis.Time + uint32(n)*uint32(spv.UnitTests.RetargetTimespan)
}

func Test_Add_extendsBestChain(t *testing.T) {
	w := &fakeWallet{}
	bc := newTestChain(w)

	h1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(1), nil)

	connected, err := bc.Add(&spv.Block{BlockHeader: h1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !connected {
		t.Fatal("expected the block to connect immediately")
	}

	head, err := bc.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash() != h1.Hash() {
		t.Errorf("head = %v, want %v", head.Hash(), h1.Hash())
	}
	if head.Height != 1 {
		t.Errorf("head height = %d, want 1", head.Height)
	}
}

func Test_Add_duplicateBlockIsIdempotent(t *testing.T) {
	w := &fakeWallet{}
	bc := newTestChain(w)

	h1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(1), nil)
	blk := &spv.Block{BlockHeader: h1}

	if _, err := bc.Add(blk); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	connected, err := bc.Add(blk)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if !connected {
		t.Error("re-adding the current head should report connected (idempotent duplicate)")
	}
}

func Test_Add_orphanThenParentConnectsBoth(t *testing.T) {
	w := &fakeWallet{}
	bc := newTestChain(w)

	h1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(1), nil)
	h2 := mineHeader(h1.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(2), nil)

	// Add h2 first: its parent h1 is unknown, so it becomes an orphan.
	connected, err := bc.Add(&spv.Block{BlockHeader: h2})
	if err != nil {
		t.Fatalf("Add(h2): %v", err)
	}
	if connected {
		t.Error("h2 should not connect before its parent arrives")
	}
	orphan, ok := bc.LastOrphan()
	if !ok || orphan != h2.Hash() {
		t.Errorf("LastOrphan() = %v, %v; want %v, true", orphan, ok, h2.Hash())
	}

	// Now add h1: both h1 and the drained h2 should connect.
	connected, err = bc.Add(&spv.Block{BlockHeader: h1})
	if err != nil {
		t.Fatalf("Add(h1): %v", err)
	}
	if !connected {
		t.Fatal("h1 should connect")
	}

	head, err := bc.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash() != h2.Hash() {
		t.Errorf("head after draining orphan = %v, want %v", head.Hash(), h2.Hash())
	}
}

func Test_Add_sideChainWithLessWorkDoesNotOvertake(t *testing.T) {
	w := &fakeWallet{}
	bc := newTestChain(w)

	a1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(1), nil)
	a2 := mineHeader(a1.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(2), nil)

	if _, err := bc.Add(&spv.Block{BlockHeader: a1}); err != nil {
		t.Fatalf("Add(a1): %v", err)
	}
	if _, err := bc.Add(&spv.Block{BlockHeader: a2}); err != nil {
		t.Fatalf("Add(a2): %v", err)
	}

	// A side branch off genesis with a single block cannot outweigh a
	// two-block best chain: it should be fed as SideChain, not become head.
	b1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, onScheduleTime(1), nil)
	if b1.Hash() == a1.Hash() {
		t.Skip("mined an identical header by chance; flaky by construction, not a real failure")
	}
	if _, err := bc.Add(&spv.Block{BlockHeader: b1}); err != nil {
		t.Fatalf("Add(b1): %v", err)
	}

	head, err := bc.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash() != a2.Hash() {
		t.Errorf("head = %v, want the longer a-chain's tip %v", head.Hash(), a2.Hash())
	}
	if len(w.reorgs) != 0 {
		t.Error("a losing side branch should never trigger a reorganize")
	}
}

func Test_Add_rejectsBadDifficultyTransition(t *testing.T) {
	w := &fakeWallet{}
	bc := newTestChain(w)

	// h1 is mined badly off the retarget schedule: at height 2 (h2's
	// arrival), the engine recomputes what bits height 2 must carry
	// from h1's actual timestamp versus genesis, which — given this
	// wildly stretched timespan — is clamped to 4x the timespan, then
	// capped at PowLimit, and so no longer equals the unchanged bits h2
	// carries below.
	offSchedule := spv.UnitTests.Genesis.Time + 1 + 100*uint32(spv.UnitTests.RetargetTimespan)
	h1 := mineHeader(spv.UnitTests.Genesis.Hash(), spv.UnitTests.Genesis.Bits, offSchedule, nil)
	if _, err := bc.Add(&spv.Block{BlockHeader: h1}); err != nil {
		t.Fatalf("Add(h1): %v", err)
	}

	h2 := mineHeader(h1.Hash(), spv.UnitTests.Genesis.Bits, offSchedule+600, nil)

	_, err := bc.Add(&spv.Block{BlockHeader: h2})
	if err == nil {
		t.Error("expected a difficulty-transition error, got nil")
	}
}
