package spv

import "io"

// OutPoint identifies a previous transaction output being spent.
type OutPoint struct {
	Hash Hash
	N    uint32
}

func (o *OutPoint) BinRead(r io.Reader) error {
	h, err := readHash(r)
	if err != nil {
		return err
	}
	o.Hash = h
	return BinRead(&o.N, r)
}

func (o *OutPoint) BinWrite(w io.Writer) error {
	if err := writeHash(o.Hash, w); err != nil {
		return err
	}
	return BinWrite(o.N, w)
}

// IsCoinbasePrevOut reports whether this OutPoint is the distinguished
// all-zero-hash, max-index marker a coinbase input carries.
func (o OutPoint) IsCoinbasePrevOut() bool {
	return o.Hash.IsZero() && o.N == 0xffffffff
}

type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

func (tin *TxIn) Size() int {
	return 32 + 4 + varIntSize(uint64(len(tin.ScriptSig))) + len(tin.ScriptSig) + 4
}

func (tin *TxIn) BinRead(r io.Reader) (err error) {
	if err = BinRead(&tin.PrevOut, r); err != nil {
		return err
	}
	if tin.ScriptSig, err = readString(r); err != nil {
		return err
	}
	return BinRead(&tin.Sequence, r)
}

func (tin *TxIn) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(&tin.PrevOut, w); err != nil {
		return err
	}
	if err = writeString(tin.ScriptSig, w); err != nil {
		return err
	}
	return BinWrite(tin.Sequence, w)
}

type TxInList []*TxIn

func (tins *TxInList) BinRead(r io.Reader) error {
	*tins = nil
	return readList(r, func(r io.Reader) error {
		var tin TxIn
		if err := BinRead(&tin, r); err != nil {
			return err
		}
		*tins = append(*tins, &tin)
		return nil
	})
}

func (tins TxInList) BinWrite(w io.Writer) error {
	return writeList(w, len(tins), func(w io.Writer, i int) error {
		return BinWrite(tins[i], w)
	})
}

func (tins TxInList) Size() int {
	n := 0
	for _, tin := range tins {
		n += tin.Size()
	}
	return n
}
