package wallet

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chain"
	"github.com/blkwallet/spv/chainstore"
)

func newTestWallet(t *testing.T) (*Wallet, *Key) {
	t.Helper()
	k, err := NewKey("primary")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	ring := NewKeyRing()
	ring.Add(k)
	return New(ring), k
}

func fundingTx(to *Key, value int64) *spv.Tx {
	return &spv.Tx{
		Version: 1,
		TxIns:   spv.TxInList{{PrevOut: spv.OutPoint{N: 0xffffffff}}},
		TxOuts:  spv.TxOutList{{Value: value, ScriptPubKey: PayToPubKeyHashScript(to.pubKeyHash[:])}},
	}
}

func someBlock(height int) *chainstore.StoredBlock {
	return &chainstore.StoredBlock{
		Header: &spv.BlockHeader{Time: uint32(1296688602 + height*600)},
		Work:   big.NewInt(int64(height)),
		Height: height,
	}
}

func Test_Receive_creditsOwnOutputIntoUnspentPool(t *testing.T) {
	w, k := newTestWallet(t)
	tx := fundingTx(k, 550000000)

	w.Receive(tx, someBlock(1), chain.BestChain)

	bal := w.GetBalance()
	if bal.Available != 550000000 {
		t.Errorf("Available = %d, want 550000000", bal.Available)
	}
	if bal.Estimated != bal.Available {
		t.Errorf("Estimated = %d, want equal to Available (%d) with nothing pending", bal.Estimated, bal.Available)
	}
}

func Test_Receive_ignoresIrrelevantTransaction(t *testing.T) {
	w, _ := newTestWallet(t)
	other, _ := NewKey("other")
	tx := fundingTx(other, 100)

	w.Receive(tx, someBlock(1), chain.BestChain)

	if bal := w.GetBalance(); bal.Available != 0 {
		t.Errorf("Available = %d, want 0 for a transaction that doesn't touch our keys", bal.Available)
	}
}

// Test_CreateSend_matchesWorkedExample reproduces spec.md §8 scenario
// 3's worked balance example: 5.00 received in one block and 0.50 in
// another, followed by CreateSend(1.00) and ConfirmSend, should leave
// Estimated at 4.50 with Available not yet equal to it; including the
// send in a third block then brings Available to 4.50 too.
func Test_CreateSend_matchesWorkedExample(t *testing.T) {
	w, k := newTestWallet(t)
	change, err := NewKey("change")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	w.AddKey(change)

	const nanocoin = 100000000
	w.Receive(fundingTx(k, 500*nanocoin/100), someBlock(1), chain.BestChain)
	w.Receive(fundingTx(k, 50*nanocoin/100), someBlock(2), chain.BestChain)

	if bal := w.GetBalance(); bal.Available != 550*nanocoin/100 {
		t.Fatalf("Available before send = %d, want 550000000", bal.Available)
	}

	dest, err := NewKey("dest")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}

	tx, err := w.CreateSend(dest.pubKeyHash[:], 100*nanocoin/100, change)
	if err != nil {
		t.Fatalf("CreateSend: %v", err)
	}

	if bal := w.GetBalance(); bal.Available != 550*nanocoin/100 {
		t.Fatalf("Available before ConfirmSend = %d, want unchanged at 550000000 (CreateSend is stateless)", bal.Available)
	}

	w.ConfirmSend(tx)

	bal := w.GetBalance()
	if got, want := bal.Estimated, int64(450*nanocoin/100); got != want {
		t.Errorf("Estimated = %d, want %d", got, want)
	}
	if bal.Available == bal.Estimated {
		t.Error("Available should not yet equal Estimated before the send confirms on-chain")
	}

	w.Receive(tx, someBlock(3), chain.BestChain)

	bal = w.GetBalance()
	if got, want := bal.Available, int64(450*nanocoin/100); got != want {
		t.Errorf("Available after confirming the send = %d, want %d", got, want)
	}
	if bal.Available != bal.Estimated {
		t.Errorf("Available (%d) should now equal Estimated (%d)", bal.Available, bal.Estimated)
	}
}

func Test_CreateSend_insufficientFunds(t *testing.T) {
	w, k := newTestWallet(t)
	w.Receive(fundingTx(k, 100), someBlock(1), chain.BestChain)

	change, _ := NewKey("change")
	dest, _ := NewKey("dest")
	_, err := w.CreateSend(dest.pubKeyHash[:], 1000, change)
	if err == nil {
		t.Fatal("expected an insufficient-funds error")
	}
	if _, ok := err.(*spv.InsufficientFundsError); !ok {
		t.Errorf("error type = %T, want *spv.InsufficientFundsError", err)
	}
}

// Test_Confirm_finneyAttackKillsPendingDoubleSpend exercises spec.md
// §8 scenario 4's Finney-attack scenario: CreateSend+ConfirmSend a
// spend ("send1"), then — independently, exactly as the scenario
// describes — CreateSend a second, conflicting spend of the same
// input. CreateSend's statelessness lets the second call reuse it;
// once the rival confirms, the first is marked dead.
func Test_Confirm_finneyAttackKillsPendingDoubleSpend(t *testing.T) {
	w, k := newTestWallet(t)
	change, _ := NewKey("change")
	w.AddKey(change)
	dest, _ := NewKey("dest")
	dest2, _ := NewKey("dest2")

	funding := fundingTx(k, 500000000)
	w.Receive(funding, someBlock(1), chain.BestChain)

	pending, err := w.CreateSend(dest.pubKeyHash[:], 100000000, change)
	if err != nil {
		t.Fatalf("CreateSend(pending): %v", err)
	}
	w.ConfirmSend(pending)

	var deadReason string
	w.OnDeadTx(func(tx *spv.Tx, reason string) { deadReason = reason })

	rival, err := w.CreateSend(dest2.pubKeyHash[:], 500000000, change)
	if err != nil {
		t.Fatalf("CreateSend(rival): %v", err)
	}
	if rival.TxIns[0].PrevOut != pending.TxIns[0].PrevOut {
		t.Fatalf("expected the independent send to reuse pending's input, got %+v", rival.TxIns[0].PrevOut)
	}
	w.Receive(rival, someBlock(2), chain.BestChain)

	w.mu.RLock()
	gotPool := w.txs[pending.Hash()].pool
	w.mu.RUnlock()

	if gotPool != PoolDead {
		t.Errorf("pending tx pool = %v, want %v", gotPool, PoolDead)
	}
	if deadReason == "" {
		t.Error("expected OnDeadTx callback to fire with a reason")
	}
}

func Test_Reorganize_demotesThenRestoresTransaction(t *testing.T) {
	w, k := newTestWallet(t)
	tx := fundingTx(k, 250000000)

	blockA := someBlock(1)
	w.Receive(tx, blockA, chain.BestChain)

	if bal := w.GetBalance(); bal.Available != 250000000 {
		t.Fatalf("Available before reorg = %d, want 250000000", bal.Available)
	}

	blockB := someBlock(1) // a competing block at the same height
	blockB.Header.Nonce = 1
	w.Reorganize([]*chainstore.StoredBlock{blockA}, []*chainstore.StoredBlock{blockB})

	if bal := w.GetBalance(); bal.Available != 0 {
		t.Errorf("Available after demotion = %d, want 0", bal.Available)
	}

	// Reorganizing back: blockA becomes the new chain again.
	w.Reorganize([]*chainstore.StoredBlock{blockB}, []*chainstore.StoredBlock{blockA})
	if bal := w.GetBalance(); bal.Available != 250000000 {
		t.Errorf("Available after restoring original chain = %d, want 250000000", bal.Available)
	}
}

func Test_Save_Load_roundTrip(t *testing.T) {
	w, k := newTestWallet(t)
	label, _ := NewKey("labeled")
	w.AddKey(label)
	w.Receive(fundingTx(k, 123456789), someBlock(1), chain.BestChain)

	buf := new(bytes.Buffer)
	if err := w.Save(buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(NewKeyRing())
	if err := loaded.Load(buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := loaded.GetBalance().Available, w.GetBalance().Available; got != want {
		t.Errorf("reloaded Available = %d, want %d", got, want)
	}
	if len(loaded.keys.Keys()) != len(w.keys.Keys()) {
		t.Errorf("reloaded key count = %d, want %d", len(loaded.keys.Keys()), len(w.keys.Keys()))
	}
}
