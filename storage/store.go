package storage

import (
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"daotoken/native/factory"
	"daotoken/native/staking"
)

var (
	bucketRegistry = []byte("registry")
	bucketStaking  = []byte("staking")

	stateKey = []byte("state")

	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// Store persists the registry and staking ledger snapshots in BoltDB.
// Records are JSON payloads; one bucket per record family.
type Store struct {
	db *bolt.DB
}

// Open initialises (and migrates) the BoltDB-backed store.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRegistry, bucketStaking} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) save(bucket []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(stateKey, raw)
	})
}

func (s *Store) load(bucket []byte, into any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get(stateKey)
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, into)
	})
}

// SaveRegistry persists the token registry snapshot.
func (s *Store) SaveRegistry(state *factory.StoreState) error {
	return s.save(bucketRegistry, state)
}

// LoadRegistry returns the persisted registry snapshot, or ErrNotFound
// on first boot.
func (s *Store) LoadRegistry() (*factory.StoreState, error) {
	state := &factory.StoreState{}
	if err := s.load(bucketRegistry, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveStaking persists the staking ledger snapshot.
func (s *Store) SaveStaking(snap *staking.Snapshot) error {
	return s.save(bucketStaking, snap)
}

// LoadStaking returns the persisted ledger snapshot, or ErrNotFound on
// first boot.
func (s *Store) LoadStaking() (*staking.Snapshot, error) {
	snap := &staking.Snapshot{}
	if err := s.load(bucketStaking, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
