// Package wallet implements spec.md §4.6: a key ring, four
// transaction pools (unspent/spent/pending/dead), balance computation,
// send construction, and reorg application.
//
// Grounded on the btcwallet package doc's credit/debit vocabulary
// (a transaction store that tracks spendable outputs and signed
// spends in memory) adapted to the coarser four-pool model spec.md
// requires, and on the teacher's utxo.go OutPoint/UTXO shapes for the
// coin-selection structures in CreateSend.
package wallet

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/blkwallet/spv"
)

// Key is one wallet key pair: the signing scalar, its cached
// compressed public key, and an optional label — the persisted form
// spec.md §6 describes ("private-key scalar + optional label").
// Elliptic-curve generation and signing themselves are treated as
// opaque primitives per spec.md §1, supplied here by btcec.
type Key struct {
	Priv  *btcec.PrivateKey
	Label string

	pubKeyCompressed []byte
	pubKeyHash       [20]byte
}

// Hash160 returns the RIPEMD160(SHA256(pubkey)) value standard P2PKH
// scripts address this key by.
func (k *Key) Hash160() []byte {
	return k.pubKeyHash[:]
}

func NewKey(label string) (*Key, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return newKeyFromPriv(priv, label), nil
}

func newKeyFromPriv(priv *btcec.PrivateKey, label string) *Key {
	pub := priv.PubKey().SerializeCompressed()
	k := &Key{Priv: priv, Label: label, pubKeyCompressed: pub}
	copy(k.pubKeyHash[:], btcutil.Hash160(pub))
	return k
}

// KeyRing is the set of ECDSA key pairs spec.md §3 describes. Keys
// are added externally and never removed during reconciliation;
// additions after sync has begun are tolerated but not synchronized
// against concurrent IsMine lookups (spec.md §5's acknowledged race).
type KeyRing struct {
	keys []*Key
}

func NewKeyRing() *KeyRing {
	return &KeyRing{}
}

func (r *KeyRing) Add(k *Key) {
	r.keys = append(r.keys, k)
}

func (r *KeyRing) Keys() []*Key {
	return r.keys
}

// IsPubKeyMine reports whether pubkey (compressed or uncompressed
// SEC1 encoding) is held by this key ring.
func (r *KeyRing) IsPubKeyMine(pubkey []byte) bool {
	return r.keyForPubKey(pubkey) != nil
}

func (r *KeyRing) keyForPubKey(pubkey []byte) *Key {
	for _, k := range r.keys {
		if bytes.Equal(k.pubKeyCompressed, pubkey) {
			return k
		}
		// Also match the uncompressed encoding of the same key.
		if parsed, err := btcec.ParsePubKey(pubkey); err == nil {
			if bytes.Equal(parsed.SerializeCompressed(), k.pubKeyCompressed) {
				return k
			}
		}
	}
	return nil
}

func (r *KeyRing) keyForHash160(h160 []byte) *Key {
	for _, k := range r.keys {
		if bytes.Equal(k.pubKeyHash[:], h160) {
			return k
		}
	}
	return nil
}

// IsMine reports whether out's scriptPubKey pays to a pubkey or
// pubkey-hash held in this ring (spec.md §4.6).
func (r *KeyRing) IsMine(out *spv.TxOut) bool {
	return r.keyForScript(out.ScriptPubKey) != nil
}

func (r *KeyRing) keyForScript(script []byte) *Key {
	if pubkey, ok := extractP2PKPubKey(script); ok {
		return r.keyForPubKey(pubkey)
	}
	if h160, ok := extractP2PKHHash(script); ok {
		return r.keyForHash160(h160)
	}
	return nil
}
