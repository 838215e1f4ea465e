// Package chainstore maps block hashes to StoredBlock records and
// tracks the best-chain head pointer (spec.md §4.3).
package chainstore

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/blkwallet/spv"
)

// StoredBlock is a header plus the bookkeeping the chain engine needs
// to pick a best chain: cumulative work from genesis, and height.
type StoredBlock struct {
	Header *spv.BlockHeader
	Work   *big.Int
	Height int
}

func (sb *StoredBlock) Hash() spv.Hash {
	return sb.Header.Hash()
}

// Build derives the StoredBlock for a child header: height+1,
// cumulative work + child's own work (spec.md §3).
func (sb *StoredBlock) Build(child *spv.BlockHeader) *StoredBlock {
	return &StoredBlock{
		Header: child,
		Work:   new(big.Int).Add(sb.Work, workOf(child)),
		Height: sb.Height + 1,
	}
}

func workOf(h *spv.BlockHeader) *big.Int {
	return h.Work()
}

func (sb *StoredBlock) clone() *StoredBlock {
	if sb == nil {
		return nil
	}
	hdrCopy := *sb.Header
	return &StoredBlock{
		Header: &hdrCopy,
		Work:   new(big.Int).Set(sb.Work),
		Height: sb.Height,
	}
}

// BlockStore is the persistence contract of §4.3. Implementations
// must not let callers observe mutations to records after Put/Get
// returns — spec.md §9 notes this is "solely to prevent callers from
// depending on mutable shared state"; our in-memory implementation
// meets it by deep-copying instead of the teacher's binary
// serialize/deserialize round-trip, which is equivalent.
type BlockStore interface {
	Put(sb *StoredBlock) error
	Get(hash spv.Hash) (*StoredBlock, bool, error)
	Head() (*StoredBlock, error)
	SetHead(hash spv.Hash) error
}

// MemStore is the in-memory reference implementation. On creation it
// inserts the genesis block and designates it head, per spec.md §3.
type MemStore struct {
	mu     sync.RWMutex
	byHash map[spv.Hash]*StoredBlock
	head   spv.Hash
}

func NewMemStore(genesis *spv.BlockHeader) *MemStore {
	s := &MemStore{byHash: make(map[spv.Hash]*StoredBlock)}
	gsb := &StoredBlock{Header: genesis, Work: workOf(genesis), Height: 0}
	hash := gsb.Hash()
	s.byHash[hash] = gsb.clone()
	s.head = hash
	return s
}

func (s *MemStore) Put(sb *StoredBlock) error {
	if sb == nil || sb.Header == nil {
		return fmt.Errorf("chainstore: nil StoredBlock")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[sb.Hash()] = sb.clone()
	return nil
}

func (s *MemStore) Get(hash spv.Hash) (*StoredBlock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sb, ok := s.byHash[hash]
	if !ok {
		return nil, false, nil
	}
	return sb.clone(), true, nil
}

func (s *MemStore) Head() (*StoredBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sb, ok := s.byHash[s.head]
	if !ok {
		return nil, &spv.StoreError{Op: "Head", Err: fmt.Errorf("head %v not found", s.head)}
	}
	return sb.clone(), nil
}

func (s *MemStore) SetHead(hash spv.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[hash]; !ok {
		return &spv.StoreError{Hash: hash, Op: "SetHead", Err: fmt.Errorf("unknown block")}
	}
	s.head = hash
	return nil
}
