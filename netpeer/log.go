package netpeer

import (
	"log"

	"github.com/btcsuite/btcd/peer"
	"github.com/btcsuite/btclog"
)

// btcd's peer package uses its own logging interface; logWriter
// adapts it back to the standard "log" package everything else in
// this module uses (grounded on the teacher's btcnode/log.go).
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	log.Print(string(p[24:])) // strip btclog's own timestamp prefix
	return len(p), nil
}

func init() {
	backend := btclog.NewBackend(logWriter{})
	peerLog := backend.Logger("PEER")
	peerLog.SetLevel(btclog.LevelInfo)
	peer.UseLogger(peerLog)
}
