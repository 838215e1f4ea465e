package wallet

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/blkwallet/spv"
)

// walletMagic and walletVersion guard the persisted format of spec.md
// §6: the wallet file is its own little sequence of the wire codec's
// primitives, not a separate serialization scheme.
const (
	walletMagic   uint32 = 0x53505657 // "SPVW"
	walletVersion uint8  = 1
)

// Save writes the key ring and every tracked transaction, each tagged
// with its pool (unspent, spent, pending or dead), to out.
// The side-chain index is not persisted: it is rebuilt as blocks are
// replayed again after Load, the same way it was built the first time.
func (w *Wallet) Save(out io.Writer) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if err := binary.Write(out, binary.LittleEndian, walletMagic); err != nil {
		return &spv.IOError{Op: "write_magic", Err: err}
	}
	if err := binary.Write(out, binary.LittleEndian, walletVersion); err != nil {
		return &spv.IOError{Op: "write_version", Err: err}
	}

	if err := writeVarInt(out, uint64(len(w.keys.keys))); err != nil {
		return &spv.IOError{Op: "write_key_count", Err: err}
	}
	for _, k := range w.keys.keys {
		if err := writeKey(out, k); err != nil {
			return err
		}
	}

	if err := writeVarInt(out, uint64(len(w.txs))); err != nil {
		return &spv.IOError{Op: "write_tx_count", Err: err}
	}
	for _, wt := range w.txs {
		if err := binary.Write(out, binary.LittleEndian, uint8(wt.pool)); err != nil {
			return &spv.IOError{Op: "write_pool", Err: err}
		}
		if err := spv.BinWrite(wt.tx, out); err != nil {
			return &spv.IOError{Op: "write_tx", Err: err}
		}
	}
	return nil
}

// Load replaces w's key ring and pools with the contents of in.
func (w *Wallet) Load(in io.Reader) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var magic uint32
	if err := binary.Read(in, binary.LittleEndian, &magic); err != nil {
		return &spv.IOError{Op: "read_magic", Err: err}
	}
	if magic != walletMagic {
		return &spv.ProtocolError{Offset: 0, Msg: "wallet: bad magic"}
	}
	var version uint8
	if err := binary.Read(in, binary.LittleEndian, &version); err != nil {
		return &spv.IOError{Op: "read_version", Err: err}
	}
	if version != walletVersion {
		return &spv.ProtocolError{Offset: 4, Msg: "wallet: unsupported version"}
	}

	keyCount, err := readVarInt(in)
	if err != nil {
		return &spv.IOError{Op: "read_key_count", Err: err}
	}
	ring := NewKeyRing()
	for i := uint64(0); i < keyCount; i++ {
		k, err := readKey(in)
		if err != nil {
			return err
		}
		ring.Add(k)
	}

	txCount, err := readVarInt(in)
	if err != nil {
		return &spv.IOError{Op: "read_tx_count", Err: err}
	}
	txs := make(map[spv.Hash]*walletTx, txCount)
	for i := uint64(0); i < txCount; i++ {
		var poolByte uint8
		if err := binary.Read(in, binary.LittleEndian, &poolByte); err != nil {
			return &spv.IOError{Op: "read_pool", Err: err}
		}
		var tx spv.Tx
		if err := spv.BinRead(&tx, in); err != nil {
			return &spv.IOError{Op: "read_tx", Err: err}
		}
		txs[tx.Hash()] = &walletTx{tx: &tx, pool: Pool(poolByte)}
	}

	w.keys = ring
	w.txs = txs
	w.sideChain = make(map[spv.Hash]*spv.Tx)
	w.blockTxs = make(map[spv.Hash][]spv.Hash)
	w.spent = newSpentIndex()
	for _, wt := range w.txs {
		for _, in := range wt.tx.TxIns {
			w.spent.claim(in.PrevOut, wt.tx.Hash())
		}
	}
	return nil
}

func writeKey(out io.Writer, k *Key) error {
	scalar := k.Priv.Serialize()
	if _, err := out.Write(scalar); err != nil {
		return &spv.IOError{Op: "write_key_scalar", Err: err}
	}
	return writeString(out, k.Label)
}

func readKey(in io.Reader) (*Key, error) {
	scalar := make([]byte, 32)
	if _, err := io.ReadFull(in, scalar); err != nil {
		return nil, &spv.IOError{Op: "read_key_scalar", Err: err}
	}
	label, err := readString(in)
	if err != nil {
		return nil, &spv.IOError{Op: "read_key_label", Err: err}
	}
	priv, _ := btcec.PrivKeyFromBytes(scalar)
	return newKeyFromPriv(priv, label), nil
}

// writeVarInt/readVarInt and writeString/readString mirror binary.go's
// compact size-prefix convention so the wallet file is built from the
// same primitives as the wire codec, without reaching into the spv
// package's unexported helpers.

func writeVarInt(w io.Writer, i uint64) error {
	if i < 0xfd {
		_, err := w.Write([]byte{byte(i)})
		return err
	}
	if i <= 0xffff {
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint16(i))
	}
	if i <= 0xffffffff {
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint32(i))
	}
	if _, err := w.Write([]byte{0xff}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, i)
}

func readVarInt(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	var n int
	var err error
	switch buf[0] {
	case 0xfd:
		n, err = io.ReadFull(r, buf[:2])
	case 0xfe:
		n, err = io.ReadFull(r, buf[:4])
	case 0xff:
		n, err = io.ReadFull(r, buf[:8])
	default:
		return uint64(buf[0]), nil
	}
	if err != nil {
		return 0, err
	}
	var result uint64
	for i := 0; i < n; i++ {
		result |= uint64(buf[i]) << uint64(i*8)
	}
	return result, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	size, err := readVarInt(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, int(size))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
