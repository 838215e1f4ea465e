// Package postgres adapts the teacher's Postgres block writer
// (postgres.go) and sqlx query layer (db/explore.go) into a durable
// chainstore.BlockStore: same driver, same "prepared statement per
// operation" style, narrowed from full block/transaction archival
// down to the StoredBlock granularity the wallet chain engine needs.
package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/blkwallet/spv"
	"github.com/blkwallet/spv/chainstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS stored_blocks (
	hash   BYTEA PRIMARY KEY,
	height INTEGER NOT NULL,
	work   BYTEA NOT NULL,
	header BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS chain_head (
	id   BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	hash BYTEA NOT NULL
);
`

// Store is a chainstore.BlockStore backed by Postgres via sqlx, the
// way db/explore.go queries the archival schema with e.db.Get/Select.
type Store struct {
	db *sqlx.DB
}

func Open(connStr string) (*Store, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, &spv.StoreError{Op: "Open", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, &spv.StoreError{Op: "Open", Err: err}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Bootstrap seeds an empty store with the genesis block, mirroring
// chainstore.NewMemStore's constructor contract (spec.md §3).
func (s *Store) Bootstrap(genesis *spv.BlockHeader) error {
	var count int
	if err := s.db.Get(&count, "SELECT count(*) FROM chain_head"); err != nil {
		return &spv.StoreError{Op: "Bootstrap", Err: err}
	}
	if count > 0 {
		return nil
	}
	gsb := &chainstore.StoredBlock{Header: genesis, Work: genesis.Work(), Height: 0}
	if err := s.Put(gsb); err != nil {
		return err
	}
	return s.SetHead(gsb.Hash())
}

func (s *Store) Put(sb *chainstore.StoredBlock) error {
	enc, err := chainstore.EncodeStoredBlock(sb)
	if err != nil {
		return &spv.StoreError{Hash: sb.Hash(), Op: "Put", Err: err}
	}
	hash := sb.Hash()
	const stmt = `INSERT INTO stored_blocks (hash, height, work, header)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO UPDATE SET height = $2, work = $3, header = $4`
	if _, err := s.db.Exec(stmt, hash[:], sb.Height, sb.Work.Bytes(), enc); err != nil {
		return &spv.StoreError{Hash: hash, Op: "Put", Err: err}
	}
	return nil
}

func (s *Store) Get(hash spv.Hash) (*chainstore.StoredBlock, bool, error) {
	var header []byte
	err := s.db.Get(&header, "SELECT header FROM stored_blocks WHERE hash = $1", hash[:])
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &spv.StoreError{Hash: hash, Op: "Get", Err: err}
	}
	sb, err := chainstore.DecodeStoredBlock(header)
	if err != nil {
		return nil, false, &spv.StoreError{Hash: hash, Op: "Get", Err: err}
	}
	return sb, true, nil
}

func (s *Store) Head() (*chainstore.StoredBlock, error) {
	var hashBytes []byte
	if err := s.db.Get(&hashBytes, "SELECT hash FROM chain_head WHERE id"); err != nil {
		return nil, &spv.StoreError{Op: "Head", Err: err}
	}
	var hash spv.Hash
	copy(hash[:], hashBytes)
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
	const stmt = `INSERT INTO chain_head (id, hash) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET hash = $1`
	if _, err := s.db.Exec(stmt, hash[:]); err != nil {
		return &spv.StoreError{Hash: hash, Op: "SetHead", Err: err}
	}
	return nil
}
