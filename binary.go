package spv

import (
	"encoding/binary"
	"io"
	"math"
)

// BinReader lets a type take over its own decoding; BinRead falls
// back to a fixed-width little-endian binary.Read otherwise.
type BinReader interface {
	BinRead(io.Reader) error
}

// BinWriter is the encoding counterpart of BinReader.
type BinWriter interface {
	BinWrite(io.Writer) error
}

func BinRead(s interface{}, r io.Reader) error {
	if br, ok := s.(BinReader); ok {
		return br.BinRead(r)
	}
	return binary.Read(r, binary.LittleEndian, s)
}

func BinWrite(s interface{}, w io.Writer) error {
	if bw, ok := s.(BinWriter); ok {
		return bw.BinWrite(w)
	}
	return binary.Write(w, binary.LittleEndian, s)
}

// readVarInt implements the compact size-prefix rule from §4.1: value
// < 0xFD is a single byte; 0xFD/0xFE/0xFF prefix 2/4/8 little-endian
// bytes respectively.
func readVarInt(r io.Reader) (uint64, error) {
	var buf [8]byte

	n, err := io.ReadFull(r, buf[:1])
	if err != nil {
		return 0, err
	}

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

func writeVarInt(i uint64, w io.Writer) error {
	if i < 0xfd {
		_, err := w.Write([]byte{byte(i)})
		return err
	}
	if i <= math.MaxUint16 {
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, uint16(i))
	}
	if i <= math.MaxUint32 {
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

func varIntSize(i uint64) int {
	switch {
	case i < 0xfd:
		return 1
	case i <= math.MaxUint16:
		return 3
	case i <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// readString reads a varint-prefixed byte string (the "varstring" of
// §6, also used for scripts).
func readString(r io.Reader) ([]byte, error) {
	size, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, int(size))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(s []byte, w io.Writer) error {
	if err := writeVarInt(uint64(len(s)), w); err != nil {
		return err
	}
	_, err := w.Write(s)
	return err
}

// readHash reads a hash in wire order (already little-endian, no
// reversal needed: Hash's internal representation IS the wire order).
func readHash(r io.Reader) (Hash, error) {
	var h Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeHash(h Hash, w io.Writer) error {
	_, err := w.Write(h[:])
	return err
}

// readList reads a varint count followed by `count` repetitions of
// doRead, the generic shape behind every wire vector (inputs,
// outputs, inventory items, locator hashes, transactions).
func readList(r io.Reader, doRead func(io.Reader) error) error {
	n, err := readVarInt(r)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if err := doRead(r); err != nil {
			return err
		}
	}
	return nil
}

func writeList(w io.Writer, n int, doWrite func(io.Writer, int) error) error {
	if err := writeVarInt(uint64(n), w); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := doWrite(w, i); err != nil {
			return err
		}
	}
	return nil
}
