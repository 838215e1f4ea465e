package wallet

import "github.com/blkwallet/spv"

// Pool is the four-way partition of spec.md §3: every transaction the
// wallet tracks sits in exactly one of these at a time.
type Pool int

const (
	PoolUnspent Pool = iota
	PoolSpent
	PoolPending
	PoolDead
)

func (p Pool) String() string {
	switch p {
	case PoolUnspent:
		return "unspent"
	case PoolSpent:
		return "spent"
	case PoolPending:
		return "pending"
	case PoolDead:
		return "dead"
	default:
		return "unknown"
	}
}

// walletTx is one tracked transaction plus its pool membership. A
// transaction moves wholesale between pools rather than tracking a
// spent flag per output, per spec.md §4.6's stated transition rule.
type walletTx struct {
	tx   *spv.Tx
	pool Pool
}

func (w *Wallet) get(hash spv.Hash) *walletTx {
	return w.txs[hash]
}

func (w *Wallet) put(wt *walletTx) {
	w.txs[wt.tx.Hash()] = wt
}

func (w *Wallet) moveTo(hash spv.Hash, pool Pool) {
	if wt, ok := w.txs[hash]; ok {
		wt.pool = pool
	}
}

// ourOutputValue sums the outputs of tx that pay to a key in the
// wallet's ring.
func (w *Wallet) ourOutputValue(tx *spv.Tx) int64 {
	var total int64
	for _, out := range tx.TxOuts {
		if w.keys.IsMine(out) {
			total += out.Value
		}
	}
	return total
}

// isRelevant reports whether tx touches the wallet at all: it pays to
// one of our keys, or it has an input signed by one of our keys —
// either because we already track the transaction that input spends,
// or because the scriptSig itself recovers to a pubkey we hold
// (spec.md §4.6's relevance test, spec.md:119/131's IsPubKeyMine).
func (w *Wallet) isRelevant(tx *spv.Tx) bool {
	for _, out := range tx.TxOuts {
		if w.keys.IsMine(out) {
			return true
		}
	}
	for _, in := range tx.TxIns {
		if _, ok := w.txs[in.PrevOut.Hash]; ok {
			return true
		}
		if pubkey, ok := extractSigScriptPubKey(in.ScriptSig); ok && w.keys.IsPubKeyMine(pubkey) {
			return true
		}
	}
	return false
}
