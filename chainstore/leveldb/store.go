// Package leveldb adapts the teacher's LevelDB block-header index
// (leveldb.go, coredb/leveldb.go) into a durable chainstore.BlockStore:
// same library, same "open a flat keyspace and iterate/point-get it"
// approach, generalized from a read-only archival index into a
// read/write store keyed by block hash.
package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
)

const headKey = "head"

// Store is a chainstore.BlockStore backed by a LevelDB database. Keys
// are raw 32-byte wire-order hashes (the 4-byte "head" key is reserved
// and cannot collide with them, since its length differs).
type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, &spv.StoreError{Op: "Open", Err: err}
	}
	return &Store{db: db}, nil
}

// Bootstrap seeds a freshly opened, empty store with the genesis
// block and designates it head, mirroring chainstore.NewMemStore's
// constructor contract for disk-backed stores (spec.md §3).
func (s *Store) Bootstrap(genesis *spv.BlockHeader) error {
	if _, err := s.db.Get([]byte(headKey), nil); err == nil {
		return nil // already bootstrapped
	}
	gsb := &chainstore.StoredBlock{Header: genesis, Work: genesis.Work(), Height: 0}
	if err := s.Put(gsb); err != nil {
		return err
	}
	return s.SetHead(gsb.Hash())
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(sb *chainstore.StoredBlock) error {
	enc, err := chainstore.EncodeStoredBlock(sb)
	if err != nil {
		return &spv.StoreError{Hash: sb.Hash(), Op: "Put", Err: err}
	}
	hash := sb.Hash()
	if err := s.db.Put(hash[:], enc, nil); err != nil {
		return &spv.StoreError{Hash: hash, Op: "Put", Err: err}
	}
	return nil
}

func (s *Store) Get(hash spv.Hash) (*chainstore.StoredBlock, bool, error) {
	b, err := s.db.Get(hash[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &spv.StoreError{Hash: hash, Op: "Get", Err: err}
	}
	sb, err := chainstore.DecodeStoredBlock(b)
	if err != nil {
		return nil, false, &spv.StoreError{Hash: hash, Op: "Get", Err: err}
	}
	return sb, true, nil
}

func (s *Store) Head() (*chainstore.StoredBlock, error) {
	hb, err := s.db.Get([]byte(headKey), nil)
	if err != nil {
		return nil, &spv.StoreError{Op: "Head", Err: err}
	}
	var hash spv.Hash
	copy(hash[:], hb)
	sb, ok, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &spv.StoreError{Hash: hash, Op: "Head", Err: fmt.Errorf("head block not found")}
	}
	return sb, nil
}

func (s *Store) SetHead(hash spv.Hash) error {
	if err := s.db.Put([]byte(headKey), hash[:], nil); err != nil {
		return &spv.StoreError{Hash: hash, Op: "SetHead", Err: err}
	}
	return nil
}
