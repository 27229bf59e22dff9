package bootstrap

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketProtocols = []byte("protocols")

// Protocol is one registered protocol instance: the identity reference an
// operator must never lose, plus enough context to resolve its state.
type Protocol struct {
	PolicyID     string
	Ref          IdentityReference
	Network      string
	StateAddress string
	CreatedAt    time.Time
}

// Store durably persists identity references in a bbolt database. The
// ledger holds the protocol state; this store holds the only key to reach
// it.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens or creates the registry database at dbPath. The parent
// directory is created if it does not exist.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("bootstrap: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProtocols)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put registers a protocol. Registering an already known policy identity
// is rejected: an identity reference is written exactly once and never
// overwritten.
func (s *Store) Put(p *Protocol) error {
	if p == nil {
		return fmt.Errorf("%w: protocol", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProtocols)
		if b.Get([]byte(p.PolicyID)) != nil {
			return fmt.Errorf("%w: %s", ErrProtocolExists, p.PolicyID)
		}
		data, err := encodeGob(p)
		if err != nil {
			return fmt.Errorf("bootstrap: encode protocol: %w", err)
		}
		return b.Put([]byte(p.PolicyID), data)
	})
}

// Get returns the registered protocol for a policy identity.
func (s *Store) Get(policyID string) (*Protocol, error) {
	var p *Protocol
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketProtocols).Get([]byte(policyID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrProtocolNotFound, policyID)
		}
		decoded := &Protocol{}
		if err := decodeGob(data, decoded); err != nil {
			return fmt.Errorf("bootstrap: decode protocol: %w", err)
		}
		p = decoded
		return nil
	})
	return p, err
}

// List returns all registered protocols in key order.
func (s *Store) List() ([]*Protocol, error) {
	var out []*Protocol
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProtocols).ForEach(func(_, data []byte) error {
			p := &Protocol{}
			if err := decodeGob(data, p); err != nil {
				return fmt.Errorf("bootstrap: decode protocol: %w", err)
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
