// Package netpeer implements the peer protocol state machine of
// spec.md §4.5: it reads framed messages, routes inventory, block and
// address messages, drives block-locator catch-up, and exposes an
// asynchronous single-block fetch with futures.
//
// Grounded on the teacher's btcnode/btcnode.go and btcnode/log.go: the
// TCP byte transport, message framing and checksum are spec.md §1's
// explicitly out-of-scope "external collaborator" — exactly the role
// github.com/btcsuite/btcd/peer.Peer already plays for the teacher.
// We wrap it the same way (NewOutboundPeer, AssociateConnection,
// message Listeners), and its internal read loop IS the "dedicated
// reader task" of spec.md §4.5/§5: our Listener callbacks fire on that
// goroutine and are this package's only concurrent actor besides the
// caller.
package netpeer

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/peer"
	"github.com/btcsuite/btcd/wire"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
	"github.com/blkwallet/spv/sync2"
)

// State is the peer's lifecycle, spec.md §4.5.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ChainAdder is the peer's view of the chain engine: just enough to
// feed it blocks and ask about orphans/height, without importing the
// chain package's WalletSink wiring.
type ChainAdder interface {
	Add(block *spv.Block) (bool, error)
	LastOrphan() (spv.Hash, bool)
	Head() (*chainstore.StoredBlock, error)
}

// Peer is one connection to a remote node, driving the catch-up and
// single-block-fetch protocol against a ChainAdder.
type Peer struct {
	addr   string
	tmout  time.Duration
	params *spv.NetParams
	chain  ChainAdder

	stateMu sync.Mutex
	state   State

	btcPeer *peer.Peer
	conn    net.Conn

	reqMu sync.Mutex
	// requests is the per-peer pending-request table of spec.md §9's
	// "sum-typed pending request record", indexed by requested hash.
	requests map[spv.Hash]*BlockFuture

	latchMu sync.Mutex
	// latch is the in-flight catch-up countdown from the most recent
	// StartBlockChainDownload, decremented by onBlock's successful
	// connects (spec.md §4.5's start-of-sync contract). nil when no
	// download is in progress.
	latch *sync2.CountDownLatch
}

func New(addr string, tmout time.Duration, params *spv.NetParams, chain ChainAdder) *Peer {
	return &Peer{
		addr:     addr,
		tmout:    tmout,
		params:   params,
		chain:    chain,
		state:    StateCreated,
		requests: make(map[spv.Hash]*BlockFuture),
	}
}

func (p *Peer) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Start establishes the connection and handshake, then leaves the
// underlying peer.Peer's own goroutine reading and routing messages
// via the Listeners installed below.
func (p *Peer) Start() error {
	if p.State() != StateCreated {
		return fmt.Errorf("netpeer: Start called from state %v", p.State())
	}

	btcParams := &chaincfg.MainNetParams
	if p.params.ID == spv.TestNetID {
		btcParams = &chaincfg.TestNet3Params
	}

	verackCh := make(chan struct{}, 1)

	cfg := &peer.Config{
		UserAgentName:    "spv-wallet",
		UserAgentVersion: "0.1.0",
		ChainParams:      btcParams,
		DisableRelayTx:   true,
		TrickleInterval:  10 * time.Second,
		Listeners: peer.MessageListeners{
			OnVerAck: func(_ *peer.Peer, _ *wire.MsgVerAck) {
				select {
				case verackCh <- struct{}{}:
				default:
				}
			},
			OnInv:   p.onInv,
			OnBlock: p.onBlock,
			OnAddr: func(_ *peer.Peer, _ *wire.MsgAddr) {
				// Accepted, ignored (spec.md §4.5).
			},
		},
	}

	bp, err := peer.NewOutboundPeer(cfg, p.addr)
	if err != nil {
		return &spv.IOError{Op: "NewOutboundPeer", Err: err}
	}

	conn, err := net.Dial("tcp", bp.Addr())
	if err != nil {
		return &spv.IOError{Op: "Dial", Err: err}
	}
	bp.AssociateConnection(conn)

	select {
	case <-verackCh:
	case <-time.After(p.tmout):
		bp.Disconnect()
		return &spv.TimeoutError{Op: "handshake"}
	}

	p.btcPeer = bp
	p.conn = conn
	p.setState(StateRunning)
	return nil
}

// Disconnect sets the running flag false and forcibly shuts the
// underlying connection; the reader goroutine inside btcd's peer.Peer
// observes the resulting IO error and exits — the IOError-during-
// shutdown case of spec.md §7 is expected and suppressed there, not
// here.
func (p *Peer) Disconnect() {
	p.setState(StateShuttingDown)
	if p.btcPeer != nil {
		p.btcPeer.Disconnect()
		p.btcPeer.WaitForDisconnect()
	}
	p.setState(StateStopped)
}

// onInv implements spec.md §4.5's Inventory routing: filter to block
// items; a single-item inventory matching the chain's most recent
// orphan is a "continue" signal that anchors a new GetBlocks there;
// otherwise request all announced blocks.
func (p *Peer) onInv(_ *peer.Peer, msg *wire.MsgInv) {
	var blockHashes []spv.Hash
	for _, inv := range msg.InvList {
		if inv.Type == wire.InvTypeBlock || inv.Type == wire.InvTypeWitnessBlock {
			blockHashes = append(blockHashes, spv.Hash(inv.Hash))
		}
	}
	if len(blockHashes) == 0 {
		return
	}

	if last, ok := p.chain.LastOrphan(); ok && len(blockHashes) == 1 && blockHashes[0] == last {
		if err := p.sendGetBlocks([]spv.Hash{last}, spv.Hash{}); err != nil {
			log.Printf("netpeer: continuing catch-up past orphan %v: %v", last, err)
		}
		return
	}

	gd := wire.NewMsgGetData()
	for _, h := range blockHashes {
		ch := chainhash.Hash(h)
		gd.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &ch))
	}
	p.btcPeer.QueueMessage(gd, nil)
}

// onBlock implements spec.md §4.5's Block routing: complete an
// outstanding explicit fetch without forwarding to the chain, or
// forward to the chain and, if unconnected, progress catch-up with
// another locator-anchored GetBlocks.
func (p *Peer) onBlock(_ *peer.Peer, msg *wire.MsgBlock, _ []byte) {
	block := blockFromWire(msg)
	hash := block.Hash()

	if fut := p.takeRequest(hash); fut != nil {
		fut.complete(block, nil)
		return
	}

	connected, err := p.chain.Add(block)
	if err != nil {
		// VerificationError or ScriptError during block processing
		// inside the reader is logged and the block is dropped; the
		// reader continues (spec.md §7).
		log.Printf("netpeer: dropping block %v: %v", hash, err)
		return
	}
	if connected {
		p.countDownLatch()
		return
	}
	if orphan, ok := p.chain.LastOrphan(); ok {
		if err := p.sendGetBlocks([]spv.Hash{orphan}, spv.Hash{}); err != nil {
			log.Printf("netpeer: requesting catch-up past orphan %v: %v", orphan, err)
		}
	}
}

// countDownLatch decrements the in-flight catch-up latch, if any.
func (p *Peer) countDownLatch() {
	p.latchMu.Lock()
	latch := p.latch
	p.latchMu.Unlock()
	if latch != nil {
		latch.CountDown()
	}
}

func blockFromWire(mb *wire.MsgBlock) *spv.Block {
	blk := &spv.Block{
		BlockHeader: &spv.BlockHeader{
			Version:    uint32(mb.Header.Version),
			PrevHash:   spv.Hash(mb.Header.PrevBlock),
			MerkleRoot: spv.Hash(mb.Header.MerkleRoot),
			Time:       uint32(mb.Header.Timestamp.Unix()),
			Bits:       mb.Header.Bits,
			Nonce:      mb.Header.Nonce,
		},
		Txs: make(spv.TxList, 0, len(mb.Transactions)),
	}
	for _, mtx := range mb.Transactions {
		blk.Txs = append(blk.Txs, txFromWire(mtx))
	}
	return blk
}

func txFromWire(mtx *wire.MsgTx) *spv.Tx {
	tx := &spv.Tx{
		Version:  uint32(mtx.Version),
		TxIns:    make(spv.TxInList, 0, len(mtx.TxIn)),
		TxOuts:   make(spv.TxOutList, 0, len(mtx.TxOut)),
		LockTime: mtx.LockTime,
	}
	for _, in := range mtx.TxIn {
		tx.TxIns = append(tx.TxIns, &spv.TxIn{
			PrevOut: spv.OutPoint{
				Hash: spv.Hash(in.PreviousOutPoint.Hash),
				N:    in.PreviousOutPoint.Index,
			},
			ScriptSig: in.SignatureScript,
			Sequence:  in.Sequence,
		})
	}
	for _, out := range mtx.TxOut {
		tx.TxOuts = append(tx.TxOuts, &spv.TxOut{
			Value:        out.Value,
			ScriptPubKey: out.PkScript,
		})
	}
	return tx
}

// sendGetBlocks constructs the sparse block-locator message of
// spec.md §4.5: known hashes (genesis and/or the given anchors) with a
// terminal stop-hash (zero meaning "send as many as possible"). No
// exponential thinning is performed, per spec.md §9's open question —
// a deliberate choice, not an oversight; see DESIGN.md.
func (p *Peer) sendGetBlocks(locator []spv.Hash, stop spv.Hash) error {
	if p.btcPeer == nil {
		return fmt.Errorf("netpeer: not connected")
	}
	bl := make([]*chainhash.Hash, len(locator))
	for i, h := range locator {
		ch := chainhash.Hash(h)
		bl[i] = &ch
	}
	stopHash := chainhash.Hash(stop)
	p.btcPeer.PushGetBlocksMsg(bl, &stopHash)
	return nil
}

// StartBlockChainDownload implements spec.md §4.5's start-of-sync
// contract: it anchors an initial GetBlocks on the local chain head
// and returns a countdown latch initialized to remote_best_height -
// local_best_height, decremented by onBlock every time a delivered
// block successfully connects. The peer's own onInv/onBlock handlers
// drive the rest of catch-up by re-anchoring on each new orphan as it
// arrives; the caller only polls the latch for progress.
func (p *Peer) StartBlockChainDownload() (*sync2.CountDownLatch, error) {
	local, err := p.chain.Head()
	if err != nil {
		return nil, err
	}
	remote := int(p.btcPeer.LastBlock())
	diff := remote - local.Height
	if diff < 0 {
		diff = 0
	}

	latch := sync2.NewCountDownLatch(diff)
	p.latchMu.Lock()
	p.latch = latch
	p.latchMu.Unlock()

	if diff > 0 {
		if err := p.sendGetBlocks([]spv.Hash{local.Hash()}, spv.Hash{}); err != nil {
			return nil, err
		}
	}
	return latch, nil
}

// takeRequest atomically removes and returns the pending fetch for
// hash, if any.
func (p *Peer) takeRequest(hash spv.Hash) *BlockFuture {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	fut, ok := p.requests[hash]
	if !ok {
		return nil
	}
	delete(p.requests, hash)
	return fut
}

// GetBlock implements spec.md §4.5's explicit single-block fetch: the
// future is registered before the wire send so the reply cannot race
// ahead of registration; completion happens strictly on the reader
// goroutine (inside onBlock above); cancellation is advisory only.
func (p *Peer) GetBlock(hash spv.Hash) *BlockFuture {
	fut := newBlockFuture()

	p.reqMu.Lock()
	p.requests[hash] = fut
	p.reqMu.Unlock()

	gd := wire.NewMsgGetData()
	ch := chainhash.Hash(hash)
	gd.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &ch))
	p.btcPeer.QueueMessage(gd, nil)

	return fut
}
