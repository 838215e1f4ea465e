package spv

import (
	"io"
	"net"
	"time"
)

// Commands are the 12-byte, null-padded strings carried in the
// message header (§6).
const (
	CmdVersion   = "version"
	CmdVerAck    = "verack"
	CmdInv       = "inv"
	CmdGetData   = "getdata"
	CmdGetBlocks = "getblocks"
	CmdBlock     = "block"
	CmdTx        = "tx"
	CmdAddr      = "addr"
)

// InvType distinguishes transaction from block inventory items.
type InvType uint32

const (
	InvTx    InvType = 1
	InvBlock InvType = 2
)

// InvVect is one (type, hash) pair as carried by `inv` and `getdata`.
type InvVect struct {
	Type InvType
	Hash Hash
}

func (iv *InvVect) BinRead(r io.Reader) error {
	if err := BinRead(&iv.Type, r); err != nil {
		return err
	}
	h, err := readHash(r)
	if err != nil {
		return err
	}
	iv.Hash = h
	return nil
}

func (iv *InvVect) BinWrite(w io.Writer) error {
	if err := BinWrite(iv.Type, w); err != nil {
		return err
	}
	return writeHash(iv.Hash, w)
}

type invList []*InvVect

func (l *invList) BinRead(r io.Reader) error {
	*l = nil
	return readList(r, func(r io.Reader) error {
		var iv InvVect
		if err := BinRead(&iv, r); err != nil {
			return err
		}
		*l = append(*l, &iv)
		return nil
	})
}

func (l invList) BinWrite(w io.Writer) error {
	return writeList(w, len(l), func(w io.Writer, i int) error {
		return BinWrite(l[i], w)
	})
}

// InvMsg and GetDataMsg share the same wire shape: a varint-prefixed
// vector of InvVect.
type InvMsg struct{ Items invList }

func (m *InvMsg) BinRead(r io.Reader) error  { return BinRead(&m.Items, r) }
func (m *InvMsg) BinWrite(w io.Writer) error { return BinWrite(m.Items, w) }

type GetDataMsg struct{ Items invList }

func (m *GetDataMsg) BinRead(r io.Reader) error  { return BinRead(&m.Items, r) }
func (m *GetDataMsg) BinWrite(w io.Writer) error { return BinWrite(m.Items, w) }

// BlockHashes extracts the block-typed inventory items, per §4.5's
// "filter to block items" routing rule.
func (m *InvMsg) BlockHashes() []Hash {
	var out []Hash
	for _, iv := range m.Items {
		if iv.Type == InvBlock {
			out = append(out, iv.Hash)
		}
	}
	return out
}

// GetBlocksMsg requests a forward range of blocks via a sparse
// locator and a terminal stop-hash (zero means "as many as possible",
// per §4.5).
type GetBlocksMsg struct {
	Version  uint32
	Locator  []Hash
	StopHash Hash
}

func (m *GetBlocksMsg) BinRead(r io.Reader) error {
	if err := BinRead(&m.Version, r); err != nil {
		return err
	}
	m.Locator = nil
	if err := readList(r, func(r io.Reader) error {
		h, err := readHash(r)
		if err != nil {
			return err
		}
		m.Locator = append(m.Locator, h)
		return nil
	}); err != nil {
		return err
	}
	h, err := readHash(r)
	if err != nil {
		return err
	}
	m.StopHash = h
	return nil
}

func (m *GetBlocksMsg) BinWrite(w io.Writer) error {
	if err := BinWrite(m.Version, w); err != nil {
		return err
	}
	if err := writeList(w, len(m.Locator), func(w io.Writer, i int) error {
		return writeHash(m.Locator[i], w)
	}); err != nil {
		return err
	}
	return writeHash(m.StopHash, w)
}

// NetAddr is the sender/receiver address shape embedded in VersionMsg.
type NetAddr struct {
	Services uint64
	IP       net.IP
	Port     uint16
}

func (a *NetAddr) BinRead(r io.Reader) error {
	if err := BinRead(&a.Services, r); err != nil {
		return err
	}
	var ip [16]byte
	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	a.IP = net.IP(ip[:])
	var port uint16
	// Port is big-endian on the wire, unlike every other integer field.
	var portBytes [2]byte
	if _, err := io.ReadFull(r, portBytes[:]); err != nil {
		return err
	}
	port = uint16(portBytes[0])<<8 | uint16(portBytes[1])
	a.Port = port
	return nil
}

func (a *NetAddr) BinWrite(w io.Writer) error {
	if err := BinWrite(a.Services, w); err != nil {
		return err
	}
	var ip [16]byte
	copy(ip[:], a.IP.To16())
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte{byte(a.Port >> 8), byte(a.Port)})
	return err
}

// VersionMsg is the handshake payload (§6).
type VersionMsg struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       int64
	Receiver        NetAddr
	Sender          NetAddr
	Nonce           uint64
	UserAgent       string
	BestHeight      int32
	Relay           bool
}

func (m *VersionMsg) BinRead(r io.Reader) (err error) {
	if err = BinRead(&m.ProtocolVersion, r); err != nil {
		return err
	}
	if err = BinRead(&m.Services, r); err != nil {
		return err
	}
	if err = BinRead(&m.Timestamp, r); err != nil {
		return err
	}
	if err = BinRead(&m.Receiver, r); err != nil {
		return err
	}
	if err = BinRead(&m.Sender, r); err != nil {
		return err
	}
	if err = BinRead(&m.Nonce, r); err != nil {
		return err
	}
	ua, err := readString(r)
	if err != nil {
		return err
	}
	m.UserAgent = string(ua)
	if err = BinRead(&m.BestHeight, r); err != nil {
		return err
	}
	var relay uint8
	if err = BinRead(&relay, r); err != nil {
		return err
	}
	m.Relay = relay != 0
	return nil
}

func (m *VersionMsg) BinWrite(w io.Writer) (err error) {
	if err = BinWrite(m.ProtocolVersion, w); err != nil {
		return err
	}
	if err = BinWrite(m.Services, w); err != nil {
		return err
	}
	if err = BinWrite(m.Timestamp, w); err != nil {
		return err
	}
	if err = BinWrite(&m.Receiver, w); err != nil {
		return err
	}
	if err = BinWrite(&m.Sender, w); err != nil {
		return err
	}
	if err = BinWrite(m.Nonce, w); err != nil {
		return err
	}
	if err = writeString([]byte(m.UserAgent), w); err != nil {
		return err
	}
	if err = BinWrite(m.BestHeight, w); err != nil {
		return err
	}
	var relay uint8
	if m.Relay {
		relay = 1
	}
	return BinWrite(relay, w)
}

// VerAckMsg has no payload.
type VerAckMsg struct{}

func (m *VerAckMsg) BinRead(r io.Reader) error  { return nil }
func (m *VerAckMsg) BinWrite(w io.Writer) error { return nil }

// AddrMsg is accepted but ignored by the peer state machine (§4.5).
type AddrMsg struct {
	Addrs []TimestampedAddr
}

type TimestampedAddr struct {
	Time time.Time
	Addr NetAddr
}

func (m *AddrMsg) BinRead(r io.Reader) error {
	m.Addrs = nil
	return readList(r, func(r io.Reader) error {
		var ts uint32
		if err := BinRead(&ts, r); err != nil {
			return err
		}
		var a NetAddr
		if err := BinRead(&a, r); err != nil {
			return err
		}
		m.Addrs = append(m.Addrs, TimestampedAddr{Time: time.Unix(int64(ts), 0), Addr: a})
		return nil
	})
}

func (m *AddrMsg) BinWrite(w io.Writer) error {
	return writeList(w, len(m.Addrs), func(w io.Writer, i int) error {
		ts := uint32(m.Addrs[i].Time.Unix())
		if err := BinWrite(ts, w); err != nil {
			return err
		}
		return BinWrite(&m.Addrs[i].Addr, w)
	})
}
