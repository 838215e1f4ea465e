package wallet

import (
	"log"
	"sync"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chain"
	"github.com/blkwallet/spv/chainstore"
)

// DeadTxFunc is called whenever a pending transaction of ours is
// invalidated by a conflicting confirmation — the Finney-attack
// double-spend case of spec.md §4.6.
type DeadTxFunc func(tx *spv.Tx, reason string)

// Wallet implements chain.WalletSink: it reconciles every transaction
// the chain engine delivers against its key ring, maintains the four
// pools of spec.md §3, and answers balance and send requests.
//
// Grounded on the btcwallet package's credit/debit bookkeeping model,
// simplified to spec.md's coarser whole-transaction pool membership,
// and on the teacher's utxo.go for the OutPoint-keyed coin shapes
// CreateSend selects from.
type Wallet struct {
	mu sync.RWMutex

	keys *KeyRing
	txs  map[spv.Hash]*walletTx

	// sideChain retains the full transaction for anything seen only on
	// a side chain, so a later reorganization back onto that branch
	// can reclassify it without re-fetching the block (spec.md §4.6).
	sideChain map[spv.Hash]*spv.Tx

	// blockTxs remembers, for every block we have fed a relevant
	// transaction from (best or side chain), which of our tracked
	// transactions it carried — the bookkeeping Reorganize needs,
	// since chain.WalletSink.Reorganize is handed only headers.
	blockTxs map[spv.Hash][]spv.Hash

	spent *spentIndex

	onDead []DeadTxFunc
}

func New(keys *KeyRing) *Wallet {
	return &Wallet{
		keys:      keys,
		txs:       make(map[spv.Hash]*walletTx),
		sideChain: make(map[spv.Hash]*spv.Tx),
		blockTxs:  make(map[spv.Hash][]spv.Hash),
		spent:     newSpentIndex(),
	}
}

// AddKey adds k to the wallet's key ring.
func (w *Wallet) AddKey(k *Key) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys.Add(k)
}

func (w *Wallet) OnDeadTx(f DeadTxFunc) {
	w.onDead = append(w.onDead, f)
}

func (w *Wallet) fireDead(tx *spv.Tx, reason string) {
	for _, f := range w.onDead {
		f(tx, reason)
	}
}

// Balance is spec.md §4.6's pair of balance figures.
type Balance struct {
	Available int64
	Estimated int64
}

// GetBalance computes Available (spendable now) and Estimated
// (Available plus our own pending change, treated as already
// confirmed).
func (w *Wallet) GetBalance() Balance {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var available int64
	for hash, wt := range w.txs {
		if wt.pool != PoolUnspent {
			continue
		}
		for i, out := range wt.tx.TxOuts {
			if !w.keys.IsMine(out) {
				continue
			}
			op := spv.OutPoint{Hash: hash, N: uint32(i)}
			if _, claimed := w.spent.claimant(op); claimed {
				continue
			}
			available += out.Value
		}
	}

	estimated := available
	for _, wt := range w.txs {
		if wt.pool != PoolPending {
			continue
		}
		estimated += w.ourOutputValue(wt.tx)
	}

	return Balance{Available: available, Estimated: estimated}
}

// Receive implements chain.WalletSink.Receive: spec.md §4.6's
// classification of one transaction as its containing block arrives.
func (w *Wallet) Receive(tx *spv.Tx, block *chainstore.StoredBlock, blockType chain.BlockType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logScriptErrors(tx)

	if !w.isRelevant(tx) {
		if _, tracked := w.txs[tx.Hash()]; !tracked {
			return
		}
	}

	hash := tx.Hash()
	if block != nil {
		w.blockTxs[block.Hash()] = append(w.blockTxs[block.Hash()], hash)
	}

	if blockType == chain.SideChain {
		w.sideChain[hash] = tx
		return
	}

	w.confirm(tx)
}

// logScriptErrors implements spec.md §7's "ScriptError during wallet
// scanning is logged and the transaction is skipped": an output whose
// script looks like a broken attempt at one of our two recognized
// forms is surfaced as a *spv.ScriptError rather than silently treated
// the same as a legitimately different, unrecognized script type.
// Never fatal: the caller's own relevance test already skips whatever
// that output doesn't make ours.
func (w *Wallet) logScriptErrors(tx *spv.Tx) {
	for _, out := range tx.TxOuts {
		if reason := malformedScriptReason(out.ScriptPubKey); reason != "" {
			log.Print((&spv.ScriptError{TxHash: tx.Hash(), Msg: reason}).Error())
		}
	}
}

// confirm applies spec.md §4.6's best-chain reconciliation: Finney
// double-spend detection against the spend index, classification into
// unspent or spent, and retirement of any predecessor transaction the
// new transaction spends from.
func (w *Wallet) confirm(tx *spv.Tx) {
	hash := tx.Hash()

	for _, in := range tx.TxIns {
		if prevClaimant, claimed := w.spent.claimant(in.PrevOut); claimed && prevClaimant != hash {
			if pwt, ok := w.txs[prevClaimant]; ok && pwt.pool == PoolPending {
				pwt.pool = PoolDead
				w.fireDead(pwt.tx, "double-spent by confirmed transaction "+hash.String())
			}
		}
		w.spent.claim(in.PrevOut, hash)
	}

	if existing, ok := w.txs[hash]; ok {
		// Already tracked (typically our own pending send, now
		// confirmed): reclassify based on whether any of its own
		// outputs have in turn already been spent.
		existing.pool = w.classify(tx)
	} else {
		w.put(&walletTx{tx: tx, pool: w.classify(tx)})
	}
	delete(w.sideChain, hash)

	// A confirmed spend retires its predecessor from the unspent pool,
	// per spec.md §4.6's stated transition — wholesale, not per output.
	for _, in := range tx.TxIns {
		if pwt, ok := w.txs[in.PrevOut.Hash]; ok && pwt.pool == PoolUnspent {
			pwt.pool = PoolSpent
		}
	}
}

// classify decides whether a newly confirmed transaction belongs in
// unspent (it has an output of ours that nothing spends yet) or spent
// (every output of ours is already claimed).
func (w *Wallet) classify(tx *spv.Tx) Pool {
	hash := tx.Hash()
	anyUnclaimed := false
	anyOurs := false
	for i, out := range tx.TxOuts {
		if !w.keys.IsMine(out) {
			continue
		}
		anyOurs = true
		if _, claimed := w.spent.claimant(spv.OutPoint{Hash: hash, N: uint32(i)}); !claimed {
			anyUnclaimed = true
		}
	}
	if !anyOurs {
		return PoolSpent
	}
	if anyUnclaimed {
		return PoolUnspent
	}
	return PoolSpent
}

// Reorganize implements chain.WalletSink.Reorganize: per spec.md §8's
// scenario 6, every old-chain transaction not also present on the new
// chain moves from unspent/spent back to pending (it may still be
// valid and reconfirm elsewhere, so it is not discarded), and every
// new-chain transaction — whether previously seen only on that side
// branch or previously demoted to pending by this same reorg — is
// promoted through the same confirmation path Receive uses.
func (w *Wallet) Reorganize(oldChain, newChain []*chainstore.StoredBlock) {
	w.mu.Lock()
	defer w.mu.Unlock()

	newTxids := make(map[spv.Hash]bool)
	for _, sb := range newChain {
		for _, hash := range w.blockTxs[sb.Hash()] {
			newTxids[hash] = true
		}
	}

	for _, sb := range oldChain {
		for _, hash := range w.blockTxs[sb.Hash()] {
			if newTxids[hash] {
				continue
			}
			wt, ok := w.txs[hash]
			if !ok || wt.pool == PoolDead {
				continue
			}
			wt.pool = PoolPending
			for _, in := range wt.tx.TxIns {
				if claimant, claimed := w.spent.claimant(in.PrevOut); claimed && claimant == hash {
					w.spent.release(in.PrevOut)
				}
			}
		}
	}

	for _, sb := range newChain {
		for _, hash := range w.blockTxs[sb.Hash()] {
			if wt, ok := w.txs[hash]; ok {
				if wt.pool == PoolPending {
					w.confirm(wt.tx)
				}
				continue
			}
			if tx, ok := w.sideChain[hash]; ok {
				delete(w.sideChain, hash)
				w.confirm(tx)
			}
		}
	}
}
