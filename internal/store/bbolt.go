package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the bbolt store.
var (
	bucketConflicts = []byte("conflicts")
	bucketRollbacks = []byte("rollbacks")
	bucketAudit     = []byte("audit")
)

// BboltStore implements Store using a single embedded bbolt database file.
type BboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConflicts, bucketRollbacks, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db}, nil
}

// Close closes the database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Apply writes the batch in one bbolt transaction.
func (s *BboltStore) Apply(_ context.Context, b *models.Batch) error {
	if b == nil || b.Empty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		conflicts := tx.Bucket(bucketConflicts)
		for _, c := range b.Conflicts {
			if err := putJSON(conflicts, c.ID, c); err != nil {
				return fmt.Errorf("store conflict %s: %w", c.ID, err)
			}
		}
		for _, id := range b.DeletedConflicts {
			if err := conflicts.Delete([]byte(id)); err != nil {
				return fmt.Errorf("delete conflict %s: %w", id, err)
			}
		}

		rollbacks := tx.Bucket(bucketRollbacks)
		for _, rs := range b.Rollbacks {
			if err := putJSON(rollbacks, rs.ConflictID, rs); err != nil {
				return fmt.Errorf("store rollback state %s: %w", rs.ConflictID, err)
			}
		}
		for _, id := range b.DeletedRollbacks {
			if err := rollbacks.Delete([]byte(id)); err != nil {
				return fmt.Errorf("delete rollback state %s: %w", id, err)
			}
		}

		audit := tx.Bucket(bucketAudit)
		for _, e := range b.Audit {
			seq, err := audit.NextSequence()
			if err != nil {
				return fmt.Errorf("audit sequence: %w", err)
			}
			if err := putJSON(audit, auditKey(seq), e); err != nil {
				return fmt.Errorf("store audit entry: %w", err)
			}
		}
		return nil
	})
}

// Load reads every bucket. bbolt iterates keys in byte order, so the
// zero-padded audit keys come back in insertion order.
func (s *BboltStore) Load(_ context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketConflicts).ForEach(func(_, v []byte) error {
			var c models.Conflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode conflict: %w", err)
			}
			snap.Conflicts = append(snap.Conflicts, &c)
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(bucketRollbacks).ForEach(func(_, v []byte) error {
			var rs models.RollbackState
			if err := json.Unmarshal(v, &rs); err != nil {
				return fmt.Errorf("decode rollback state: %w", err)
			}
			snap.Rollbacks = append(snap.Rollbacks, &rs)
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketAudit).ForEach(func(_, v []byte) error {
			var e models.AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode audit entry: %w", err)
			}
			snap.Audit = append(snap.Audit, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// auditKey builds the bbolt key for an audit entry: "{seq:016d}".
func auditKey(seq uint64) string {
	return fmt.Sprintf("%016d", seq)
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
