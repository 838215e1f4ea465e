package spv

import (
	"bytes"
	"io"
)

// MessageHeader is the 24-byte frame wrapping every payload: 4-byte
// magic, 12-byte null-padded command, 4-byte little-endian length,
// 4-byte checksum (first 4 bytes of double-SHA256 of the payload).
// BinRead always reads the 4 checksum bytes and always sets
// HasChecksum to true; a header that omits the checksum field is not
// recognized.
type MessageHeader struct {
	Magic       uint32
	Command     string
	Length      uint32
	Checksum    [4]byte
	HasChecksum bool
}

const commandSize = 12

func (h *MessageHeader) BinRead(r io.Reader) error {
	if err := BinRead(&h.Magic, r); err != nil {
		return err
	}
	var cmd [commandSize]byte
	if _, err := io.ReadFull(r, cmd[:]); err != nil {
		return err
	}
	h.Command = string(bytes.TrimRight(cmd[:], "\x00"))
	if err := BinRead(&h.Length, r); err != nil {
		return err
	}
	// The checksum field is always read; whether a mismatching
	// checksum is tolerated is decided by DecodeMessage.
	h.HasChecksum = true
	_, err := io.ReadFull(r, h.Checksum[:])
	return err
}

func (h *MessageHeader) BinWrite(w io.Writer) error {
	if err := BinWrite(h.Magic, w); err != nil {
		return err
	}
	var cmd [commandSize]byte
	copy(cmd[:], h.Command)
	if _, err := w.Write(cmd[:]); err != nil {
		return err
	}
	if err := BinWrite(h.Length, w); err != nil {
		return err
	}
	_, err := w.Write(h.Checksum[:])
	return err
}

// checksum is the first 4 bytes of double-SHA256 of payload.
func checksum(payload []byte) [4]byte {
	h := DoubleSha256(payload)
	var c [4]byte
	copy(c[:], h[:4])
	return c
}

// EncodeMessage frames command/payload as a complete wire message.
func EncodeMessage(magic uint32, command string, payload []byte) []byte {
	hdr := MessageHeader{
		Magic:    magic,
		Command:  command,
		Length:   uint32(len(payload)),
		Checksum: checksum(payload),
	}
	buf := new(bytes.Buffer)
	_ = hdr.BinWrite(buf)
	buf.Write(payload)
	return buf.Bytes()
}

// DecodeMessage reads one framed message and verifies its checksum.
// When requireChecksum is false, a version or verack message whose
// checksum does not match is still accepted. On malformed input it
// returns a ProtocolError.
func DecodeMessage(r io.Reader, requireChecksum bool) (command string, payload []byte, err error) {
	var hdr MessageHeader
	if err := hdr.BinRead(r); err != nil {
		return "", nil, newProtoErr(-1, "reading message header: %v", err)
	}

	payload = make([]byte, hdr.Length)
	if n, err := io.ReadFull(r, payload); err != nil {
		return "", nil, newProtoErr(n, "reading payload for %q: %v", hdr.Command, err)
	}

	got := checksum(payload)
	if hdr.Checksum != got {
		if requireChecksum || hdr.Command != CmdVersion && hdr.Command != CmdVerAck {
			return "", nil, newProtoErr(-1, "checksum mismatch for %q", hdr.Command)
		}
	}

	return hdr.Command, payload, nil
}
