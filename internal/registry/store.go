package registry

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/wahke/ET-Masterserver/internal/wire"
)

var serversBucket = []byte("servers")

// BoltStore persists ServerRecords in a single-file embedded bbolt
// database, one key-value pair per endpoint. This is the closest
// pack-grounded analogue to the original's embedded single-file SQLite
// database: both are an opaque, zero-admin, single-process store.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) the bbolt file at path and
// ensures the servers bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(serversBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create servers bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func endpointKey(ep wire.Endpoint) []byte {
	return []byte(ep.String())
}

// Get returns the record for ep, if any.
func (s *BoltStore) Get(ep wire.Endpoint) (ServerRecord, bool, error) {
	var rec ServerRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(serversBucket).Get(endpointKey(ep))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
	})
	if err != nil {
		return ServerRecord{}, false, fmt.Errorf("get %s: %w", ep, err)
	}
	return rec, found, nil
}

// Put inserts or overwrites the record for rec.Endpoint.
func (s *BoltStore) Put(rec ServerRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Endpoint, err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(serversBucket).Put(endpointKey(rec.Endpoint), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Endpoint, err)
	}
	return nil
}

// All returns every stored record. The registry never deletes records, so
// this set only grows, aging out of the visibility windows rather than
// being pruned.
func (s *BoltStore) All() ([]ServerRecord, error) {
	var records []ServerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(serversBucket).ForEach(func(_, v []byte) error {
			var rec ServerRecord
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan servers: %w", err)
	}
	return records, nil
}

// Close closes the underlying bbolt file handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
