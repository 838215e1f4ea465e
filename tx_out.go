package spv

import "io"

// TxOut carries a value in base units ("nanocoins" per spec.md §3)
// and the script that must be satisfied to spend it.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
}

func (tout *TxOut) Size() int {
	return 8 + varIntSize(uint64(len(tout.ScriptPubKey))) + len(tout.ScriptPubKey)
}

func (tout *TxOut) BinRead(r io.Reader) (err error) {
	if err = BinRead(&tout.Value, r); err != nil {
		return err
	}
	tout.ScriptPubKey, err = readString(r)
	return err
}

func (tout *TxOut) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(tout.Value, w); err != nil {
		return err
	}
	return writeString(tout.ScriptPubKey, w)
}

type TxOutList []*TxOut

func (touts *TxOutList) BinRead(r io.Reader) error {
	*touts = nil
	return readList(r, func(r io.Reader) error {
		var tout TxOut
		if err := BinRead(&tout, r); err != nil {
			return err
		}
		*touts = append(*touts, &tout)
		return nil
	})
}

func (touts TxOutList) BinWrite(w io.Writer) error {
	return writeList(w, len(touts), func(w io.Writer, i int) error {
		return BinWrite(touts[i], w)
	})
}

func (touts TxOutList) Size() int {
	n := 0
	for _, tout := range touts {
		n += tout.Size()
	}
	return n
}
