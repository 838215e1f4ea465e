package spv

import (
	"fmt"
	"io"
	"math/big"
	"time"
)

// maxFutureDrift is the "current time + 2 hours" bound of §4.2 rule 3.
const maxFutureDrift = 2 * time.Hour

// Block is a BlockHeader plus an optionally-empty ordered transaction
// list (a header-only Block, as delivered during catch-up before full
// block data arrives, has Txs == nil).
type Block struct {
	*BlockHeader
	Txs TxList
}

func (b *Block) BinRead(r io.Reader) error {
	var bh BlockHeader
	if err := BinRead(&bh, r); err != nil {
		return err
	}
	b.BlockHeader = &bh
	return BinRead(&b.Txs, r)
}

func (b *Block) BinWrite(w io.Writer) error {
	if err := BinWrite(b.BlockHeader, w); err != nil {
		return err
	}
	return BinWrite(b.Txs, w)
}

// Verify enforces the four context-free rules of §4.2. It does not
// know about chain height or difficulty-transition rules; those are
// the chain engine's job (§4.4).
func Verify(b *Block, params *NetParams, now time.Time) error {
	hash := b.Hash()

	target := bitsToTarget(b.Bits)
	if target.Sign() <= 0 || target.Cmp(params.PowLimit) > 0 {
		return &VerificationError{Hash: hash, Msg: fmt.Sprintf("target out of range: %x", b.Bits)}
	}

	hashInt := hashToBig(hash)
	if hashInt.Cmp(target) > 0 {
		return &VerificationError{Hash: hash, Msg: "hash does not satisfy target (insufficient proof-of-work)"}
	}

	if int64(b.Time) > now.Add(maxFutureDrift).Unix() {
		return &VerificationError{Hash: hash, Msg: "block timestamp too far in the future"}
	}

	if len(b.Txs) > 0 {
		if !b.Txs[0].IsCoinbase() {
			return &VerificationError{Hash: hash, Msg: "first transaction is not coinbase"}
		}
		for _, tx := range b.Txs[1:] {
			if tx.IsCoinbase() {
				return &VerificationError{Hash: hash, Msg: "non-first transaction is coinbase"}
			}
		}
		root := MerkleRoot(b.Txs.Hashes())
		if root != b.MerkleRoot {
			return &VerificationError{Hash: hash, Msg: "computed Merkle root does not match header"}
		}
	}

	return nil
}

// hashToBig interprets a Hash as a big-endian integer for the
// hash-vs-target comparison. Hash's internal bytes are wire order
// (little-endian), so we must reverse before interpreting as a number
// — this is the one place the wire/display byte-reversal convention
// has a numeric consequence.
func hashToBig(h Hash) *big.Int {
	var rev [32]byte
	for i := 0; i < 32; i++ {
		rev[i] = h[31-i]
	}
	return new(big.Int).SetBytes(rev[:])
}
