package spv

import (
	"bytes"
	"io"
)

// Tx is version, inputs, outputs, lock-time — the §6 `tx` message
// payload. Identity is the double-SHA256 of the full serialization.
type Tx struct {
	Version  uint32
	TxIns    TxInList
	TxOuts   TxOutList
	LockTime uint32
}

func (tx *Tx) Hash() Hash {
	buf := new(bytes.Buffer)
	_ = tx.BinWrite(buf)
	return DoubleSha256(buf.Bytes())
}

func (tx *Tx) Size() int {
	return 4 + tx.TxIns.Size() + tx.TxOuts.Size() + 4
}

// IsCoinbase reports whether this is a block's first transaction: a
// single input whose previous-hash is all-zero and index 0xFFFFFFFF.
func (tx *Tx) IsCoinbase() bool {
	return len(tx.TxIns) == 1 && tx.TxIns[0].PrevOut.IsCoinbasePrevOut()
}

func (tx *Tx) BinRead(r io.Reader) (err error) {
	if err = BinRead(&tx.Version, r); err != nil {
		return err
	}
	if err = BinRead(&tx.TxIns, r); err != nil {
		return err
	}
	if err = BinRead(&tx.TxOuts, r); err != nil {
		return err
	}
	return BinRead(&tx.LockTime, r)
}

func (tx *Tx) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(tx.Version, w); err != nil {
		return err
	}
	if err = BinWrite(tx.TxIns, w); err != nil {
		return err
	}
	if err = BinWrite(tx.TxOuts, w); err != nil {
		return err
	}
	return BinWrite(tx.LockTime, w)
}

type TxList []*Tx

func (txs *TxList) BinRead(r io.Reader) error {
	*txs = nil
	return readList(r, func(r io.Reader) error {
		var tx Tx
		if err := BinRead(&tx, r); err != nil {
			return err
		}
		*txs = append(*txs, &tx)
		return nil
	})
}

func (txs TxList) BinWrite(w io.Writer) error {
	return writeList(w, len(txs), func(w io.Writer, i int) error {
		return BinWrite(txs[i], w)
	})
}

func (txs TxList) Size() int {
	n := 0
	for _, tx := range txs {
		n += tx.Size()
	}
	return n
}

func (txs TxList) Hashes() []Hash {
	hashes := make([]Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return hashes
}
