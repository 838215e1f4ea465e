package chainstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/blkwallet/spv"
)

// EncodeStoredBlock is the on-disk form used by both disk-backed
// stores: the 80-byte header, a varint height, and the cumulative
// work as a length-prefixed big-endian integer. Modeled on the
// teacher's IdxBlockHeader (block_header.go), which also prefixes a
// BlockHeader with varint bookkeeping fields for LevelDB storage.
func EncodeStoredBlock(sb *StoredBlock) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := spv.BinWrite(sb.Header, buf); err != nil {
		return nil, err
	}
	if err := writeUvarint(buf, uint64(sb.Height)); err != nil {
		return nil, err
	}
	workBytes := sb.Work.Bytes()
	if err := writeUvarint(buf, uint64(len(workBytes))); err != nil {
		return nil, err
	}
	buf.Write(workBytes)
	return buf.Bytes(), nil
}

func DecodeStoredBlock(b []byte) (*StoredBlock, error) {
	r := bytes.NewReader(b)
	var hdr spv.BlockHeader
	if err := spv.BinRead(&hdr, r); err != nil {
		return nil, fmt.Errorf("chainstore: decoding header: %w", err)
	}
	height, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("chainstore: decoding height: %w", err)
	}
	workLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("chainstore: decoding work length: %w", err)
	}
	workBytes := make([]byte, workLen)
	if _, err := r.Read(workBytes); err != nil && workLen > 0 {
		return nil, fmt.Errorf("chainstore: decoding work: %w", err)
	}
	return &StoredBlock{
		Header: &hdr,
		Height: int(height),
		Work:   new(big.Int).SetBytes(workBytes),
	}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	_, err := buf.Write(tmp[:n])
	return err
}
