package spv

import (
	"bytes"
	"net"
	"testing"
)

func Test_EncodeDecodeMessage_roundTrip(t *testing.T) {
	payload := []byte("hello wire")
	framed := EncodeMessage(0xfeedbeef, CmdInv, payload)

	cmd, got, err := DecodeMessage(bytes.NewReader(framed), true)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if cmd != CmdInv {
		t.Errorf("command = %q, want %q", cmd, CmdInv)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func Test_DecodeMessage_badChecksum(t *testing.T) {
	framed := EncodeMessage(0xfeedbeef, CmdInv, []byte("payload"))
	framed[len(framed)-1] ^= 0xff // corrupt the payload's last byte so the checksum no longer matches

	if _, _, err := DecodeMessage(bytes.NewReader(framed), true); err == nil {
		t.Error("expected a checksum error, got nil")
	}
}

func Test_VersionMsg_roundTrip(t *testing.T) {
	want := &VersionMsg{
		ProtocolVersion: 70015,
		Services:        1,
		Timestamp:       1700000000,
		Receiver:        NetAddr{Services: 1, IP: net.IPv4(127, 0, 0, 1).To16(), Port: 8333},
		Sender:          NetAddr{Services: 1, IP: net.IPv4(10, 0, 0, 1).To16(), Port: 18333},
		Nonce:           0xdeadbeefcafebabe,
		UserAgent:       "/spv-wallet:0.1.0/",
		BestHeight:      12345,
		Relay:           true,
	}

	buf := new(bytes.Buffer)
	if err := want.BinWrite(buf); err != nil {
		t.Fatalf("BinWrite: %v", err)
	}

	var got VersionMsg
	if err := got.BinRead(buf); err != nil {
		t.Fatalf("BinRead: %v", err)
	}

	if got.ProtocolVersion != want.ProtocolVersion || got.Nonce != want.Nonce ||
		got.UserAgent != want.UserAgent || got.BestHeight != want.BestHeight || got.Relay != want.Relay {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !got.Receiver.IP.Equal(want.Receiver.IP) || got.Receiver.Port != want.Receiver.Port {
		t.Errorf("receiver addr mismatch: got %+v, want %+v", got.Receiver, want.Receiver)
	}
}

func Test_InvMsg_blockHashesFilters(t *testing.T) {
	txHash := DoubleSha256([]byte("tx"))
	blockHash := DoubleSha256([]byte("block"))

	msg := &InvMsg{Items: invList{
		{Type: InvTx, Hash: txHash},
		{Type: InvBlock, Hash: blockHash},
	}}

	hashes := msg.BlockHashes()
	if len(hashes) != 1 || hashes[0] != blockHash {
		t.Errorf("BlockHashes() = %v, want [%v]", hashes, blockHash)
	}
}

func Test_GetBlocksMsg_roundTrip(t *testing.T) {
	want := &GetBlocksMsg{
		Version:  1,
		Locator:  []Hash{DoubleSha256([]byte("a")), DoubleSha256([]byte("b"))},
		StopHash: Hash{},
	}
	buf := new(bytes.Buffer)
	if err := want.BinWrite(buf); err != nil {
		t.Fatalf("BinWrite: %v", err)
	}
	var got GetBlocksMsg
	if err := got.BinRead(buf); err != nil {
		t.Fatalf("BinRead: %v", err)
	}
	if len(got.Locator) != len(want.Locator) {
		t.Fatalf("locator len = %d, want %d", len(got.Locator), len(want.Locator))
	}
	for i := range want.Locator {
		if got.Locator[i] != want.Locator[i] {
			t.Errorf("locator[%d] = %v, want %v", i, got.Locator[i], want.Locator[i])
		}
	}
}
