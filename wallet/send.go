package wallet

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/blkwallet/spv"
)

const sigHashAll = 1

// coinSelection is one spendable output considered by CreateSend.
type coinSelection struct {
	outpoint spv.OutPoint
	value    int64
	key      *Key
}

// spendableCoins returns every output the wallet owns, held by a
// transaction in the unspent pool — spec.md §4.6's "selects coins
// from unspent" greedy policy. It does not consult the spend index:
// CreateSend is stateless with respect to the wallet's pools and the
// locally-initiated-spend bookkeeping alike, so two independent
// CreateSend calls may select the same coin (spec.md §8 scenario 4);
// Balance.Available is what excludes a locally-claimed coin from the
// spendable figure, not coin selection. The order is the transaction
// id byte order, so selection is deterministic.
func (w *Wallet) spendableCoins() []coinSelection {
	var coins []coinSelection
	for hash, wt := range w.txs {
		if wt.pool != PoolUnspent {
			continue
		}
		for i, out := range wt.tx.TxOuts {
			k := w.keys.keyForScript(out.ScriptPubKey)
			if k == nil {
				continue
			}
			op := spv.OutPoint{Hash: hash, N: uint32(i)}
			coins = append(coins, coinSelection{outpoint: op, value: out.Value, key: k})
		}
	}
	sort.Slice(coins, func(i, j int) bool {
		if c := bytes.Compare(coins[i].outpoint.Hash[:], coins[j].outpoint.Hash[:]); c != 0 {
			return c < 0
		}
		return coins[i].outpoint.N < coins[j].outpoint.N
	})
	return coins
}

// CreateSend builds and signs a transaction paying amount to toHash160
// (a standard pay-to-pubkey-hash destination), with any change
// returned to changeKey. It performs greedy coin selection over the
// unspent pool (spec.md §4.6). The result is not placed in any pool
// and the spend index is not updated — CreateSend is stateless with
// respect to the wallet's pools; a second, independent CreateSend may
// therefore select the same coins (spec.md §8 scenario 4's Finney
// setup relies on exactly this). ConfirmSend is what locks the coins.
func (w *Wallet) CreateSend(toHash160 []byte, amount int64, changeKey *Key) (*spv.Tx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	coins := w.spendableCoins()

	var selected []coinSelection
	var total int64
	for _, c := range coins {
		selected = append(selected, c)
		total += c.value
		if total >= amount {
			break
		}
	}
	if total < amount {
		return nil, &spv.InsufficientFundsError{Wanted: amount, Available: total}
	}

	tx := &spv.Tx{Version: 1}
	for _, c := range selected {
		tx.TxIns = append(tx.TxIns, &spv.TxIn{PrevOut: c.outpoint, Sequence: 0xffffffff})
	}
	tx.TxOuts = append(tx.TxOuts, &spv.TxOut{Value: amount, ScriptPubKey: PayToPubKeyHashScript(toHash160)})
	if change := total - amount; change > 0 {
		tx.TxOuts = append(tx.TxOuts, &spv.TxOut{Value: change, ScriptPubKey: PayToPubKeyHashScript(changeKey.pubKeyHash[:])})
	}

	prevScripts := make([][]byte, len(selected))
	for i, c := range selected {
		wt := w.get(c.outpoint.Hash)
		prevScripts[i] = wt.tx.TxOuts[c.outpoint.N].ScriptPubKey
	}
	for i, c := range selected {
		tx.TxIns[i].ScriptSig = signInput(tx, i, prevScripts[i], c.key)
	}

	return tx, nil
}

// signInput computes the legacy SIGHASH_ALL digest for input i against
// prevScript and signs it with key, returning a standard
// <sig><pubkey> scriptSig.
func signInput(tx *spv.Tx, i int, prevScript []byte, key *Key) []byte {
	digest := sigHashAll256(tx, i, prevScript)

	sig := ecdsa.Sign(key.Priv, digest[:])
	der := sig.Serialize()

	script := new(bytes.Buffer)
	script.WriteByte(byte(len(der) + 1))
	script.Write(der)
	script.WriteByte(sigHashAll)
	pub := key.pubKeyCompressed
	script.WriteByte(byte(len(pub)))
	script.Write(pub)
	return script.Bytes()
}

// sigHashAll256 builds the classic pre-segwit SIGHASH_ALL preimage:
// every input's scriptSig is blanked except input i's, which is
// replaced by prevScript, then the sighash type is appended and the
// result double-hashed.
func sigHashAll256(tx *spv.Tx, i int, prevScript []byte) spv.Hash {
	copyTx := &spv.Tx{Version: tx.Version, LockTime: tx.LockTime}
	for j, in := range tx.TxIns {
		script := []byte{}
		if j == i {
			script = prevScript
		}
		copyTx.TxIns = append(copyTx.TxIns, &spv.TxIn{
			PrevOut:   in.PrevOut,
			ScriptSig: script,
			Sequence:  in.Sequence,
		})
	}
	copyTx.TxOuts = tx.TxOuts

	buf := new(bytes.Buffer)
	_ = copyTx.BinWrite(buf)
	_ = binary.Write(buf, binary.LittleEndian, uint32(sigHashAll))
	return spv.DoubleSha256(buf.Bytes())
}

// ConfirmSend marks tx (built by CreateSend) as locally broadcast: it
// enters the pending pool and its inputs are claimed in the spend
// index, so Balance.Available stops counting those coins as spendable
// (CreateSend's own coin selection is unaffected — it never consults
// the spend index, per spec.md §8 scenario 4). The transport-level
// broadcast itself is spec.md §1's out-of-scope external collaborator;
// Receive reconciles the transaction once it confirms on-chain.
func (w *Wallet) ConfirmSend(tx *spv.Tx) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hash := tx.Hash()
	if wt := w.get(hash); wt != nil {
		wt.pool = PoolPending
	} else {
		w.put(&walletTx{tx: tx, pool: PoolPending})
	}
	for _, in := range tx.TxIns {
		w.spent.claim(in.PrevOut, hash)
	}
}
