package spv

import (
	"bytes"
	"io"
	"math/big"
)

// BlockHeader is the 80-byte serialized identity of a block: version,
// previous-block hash, Merkle root, time, compact difficulty target
// ("bits"), nonce.
type BlockHeader struct {
	Version    uint32
	PrevHash   Hash
	MerkleRoot Hash
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

const BlockHeaderSize = 4 + 32 + 32 + 4 + 4 + 4

func (bh *BlockHeader) BinRead(r io.Reader) error {
	if err := BinRead(&bh.Version, r); err != nil {
		return err
	}
	if h, err := readHash(r); err != nil {
		return err
	} else {
		bh.PrevHash = h
	}
	if h, err := readHash(r); err != nil {
		return err
	} else {
		bh.MerkleRoot = h
	}
	if err := BinRead(&bh.Time, r); err != nil {
		return err
	}
	if err := BinRead(&bh.Bits, r); err != nil {
		return err
	}
	return BinRead(&bh.Nonce, r)
}

func (bh *BlockHeader) BinWrite(w io.Writer) error {
	if err := BinWrite(bh.Version, w); err != nil {
		return err
	}
	if err := writeHash(bh.PrevHash, w); err != nil {
		return err
	}
	if err := writeHash(bh.MerkleRoot, w); err != nil {
		return err
	}
	if err := BinWrite(bh.Time, w); err != nil {
		return err
	}
	if err := BinWrite(bh.Bits, w); err != nil {
		return err
	}
	return BinWrite(bh.Nonce, w)
}

// Hash is the double-SHA256 of the 80-byte serialization, independent
// of any transactions the block may carry.
func (bh *BlockHeader) Hash() Hash {
	buf := new(bytes.Buffer)
	// BinWrite never fails writing into a bytes.Buffer.
	_ = bh.BinWrite(buf)
	return DoubleSha256(buf.Bytes())
}

// Work is floor(2^256 / (target+1)), the proof-of-work value of this
// header's decoded Bits field. Higher Work means a numerically lower
// target, i.e. harder to satisfy.
func (bh *BlockHeader) Work() *big.Int {
	return workFromBits(bh.Bits)
}
