package wallet

import "github.com/blkwallet/spv"

// spentIndex tracks, for every outpoint currently claimed by a
// transaction the wallet is holding in pending or unspent/spent, which
// transaction claims it. A second claimant arriving in a best-chain
// block is exactly the Finney-attack double-spend of spec.md §4.6:
// the first claimant, if still pending, is moved to dead.
//
// Grounded on the teacher's txidcache.go: a mutex-guarded map from a
// compact key to a small claim record, incremented/decremented rather
// than rescanned. The teacher's cache is an approximate, bounded-size,
// sampling structure (it deliberately evicts and tolerates misses);
// ours is exact and unbounded because it only ever holds entries for
// the wallet's own relevant outpoints, a tiny fraction of the chain.
type spentIndex struct {
	claims map[spv.OutPoint]spv.Hash
}

func newSpentIndex() *spentIndex {
	return &spentIndex{claims: make(map[spv.OutPoint]spv.Hash)}
}

// claim records that txid spends outpoint, returning the previous
// claimant (the zero hash if none).
func (s *spentIndex) claim(outpoint spv.OutPoint, txid spv.Hash) spv.Hash {
	prev := s.claims[outpoint]
	s.claims[outpoint] = txid
	return prev
}

func (s *spentIndex) release(outpoint spv.OutPoint) {
	delete(s.claims, outpoint)
}

func (s *spentIndex) claimant(outpoint spv.OutPoint) (spv.Hash, bool) {
	h, ok := s.claims[outpoint]
	return h, ok
}
