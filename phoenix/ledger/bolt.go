package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/phoenix/note"
	"go.etcd.io/bbolt"
)

var (
	bucketNotes      = []byte("notes")
	bucketNullifiers = []byte("nullifiers")
)

// BoltBackend persists notes keyed by big-endian index and nullifiers as
// keys of a set bucket.
type BoltBackend struct {
	db *bbolt.DB
}

var _ Backend = (*BoltBackend)(nil)

// OpenBoltBackend opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltBackend(dbPath string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketNotes, bucketNullifiers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltbackend: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Load returns every stored note in index order and every nullifier.
func (s *BoltBackend) Load() ([]*note.Note, []common.Nullifier, error) {
	var (
		notes      []*note.Note
		nullifiers []common.Nullifier
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketNotes).ForEach(func(k, v []byte) error {
			n, err := note.Decode(v)
			if err != nil {
				return fmt.Errorf("boltbackend: decode note %x: %w", k, err)
			}
			if n.Idx() != common.IdxFromBytes(k) {
				return fmt.Errorf("boltbackend: note %x is stamped %d", k, n.Idx())
			}
			notes = append(notes, n)
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNullifiers).ForEach(func(k, _ []byte) error {
			if len(k) != len(common.Nullifier{}) {
				return fmt.Errorf("boltbackend: nullifier key of %d bytes", len(k))
			}
			var nf common.Nullifier
			copy(nf[:], k)
			nullifiers = append(nullifiers, nf)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return notes, nullifiers, nil
}

// Commit writes b in one bbolt transaction.
func (s *BoltBackend) Commit(b *Batch) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		nb := tx.Bucket(bucketNotes)
		for _, n := range b.Notes {
			data, err := n.MarshalBinary()
			if err != nil {
				return fmt.Errorf("boltbackend: encode note: %w", err)
			}
			if err := nb.Put(n.Idx().Bytes(), data); err != nil {
				return fmt.Errorf("boltbackend: put note: %w", err)
			}
		}
		fb := tx.Bucket(bucketNullifiers)
		for _, nf := range b.Nullifiers {
			if err := fb.Put(nf[:], []byte{}); err != nil {
				return fmt.Errorf("boltbackend: put nullifier: %w", err)
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BoltBackend) Close() error { return s.db.Close() }
