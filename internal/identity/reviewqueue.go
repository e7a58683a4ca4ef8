package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/truckfactor/truckfactor-go/internal/models"
)

// ReviewQueue receives ambiguous merge candidates for out-of-band human
// confirmation. The resolver only emits candidates; a separate component
// turns confirmed candidates into override entries.
type ReviewQueue interface {
	Enqueue(candidates []models.MergeCandidate) error
	Pending(projectID string) ([]models.MergeCandidate, error)
	Clear(projectID string) error
	Close() error
}

// BoltQueue persists pending merge candidates in a local bbolt database,
// bucketed per project. Re-enqueueing the same candidate overwrites its
// previous record, so repeated analysis runs are idempotent.
type BoltQueue struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltQueue opens (or creates) the pending-review database.
func NewBoltQueue(path string) (*BoltQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create review queue directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open review queue %s: %w", path, err)
	}

	return &BoltQueue{
		db:     db,
		logger: slog.Default().With("component", "review_queue"),
	}, nil
}

func (q *BoltQueue) Enqueue(candidates []models.MergeCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	return q.db.Update(func(tx *bolt.Tx) error {
		for _, candidate := range candidates {
			bucket, err := tx.CreateBucketIfNotExists([]byte(candidate.ProjectID))
			if err != nil {
				return fmt.Errorf("create bucket %s: %w", candidate.ProjectID, err)
			}

			key := candidate.Left.Key() + "||" + candidate.Right.Key()
			value, err := json.Marshal(candidate)
			if err != nil {
				return fmt.Errorf("marshal candidate: %w", err)
			}
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("store candidate: %w", err)
			}
		}
		return nil
	})
}

func (q *BoltQueue) Pending(projectID string) ([]models.MergeCandidate, error) {
	var candidates []models.MergeCandidate

	err := q.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(projectID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var candidate models.MergeCandidate
			if err := json.Unmarshal(value, &candidate); err != nil {
				q.logger.Warn("skipping corrupt review record", "project", projectID, "error", err)
				return nil
			}
			candidates = append(candidates, candidate)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read pending candidates: %w", err)
	}
	return candidates, nil
}

func (q *BoltQueue) Clear(projectID string) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(projectID)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(projectID))
	})
}

func (q *BoltQueue) Close() error {
	return q.db.Close()
}

// NopQueue discards candidates; used when no review persistence is
// configured (the report still carries the alias-unconfirmed flag).
type NopQueue struct{}

func (NopQueue) Enqueue([]models.MergeCandidate) error { return nil }
func (NopQueue) Pending(string) ([]models.MergeCandidate, error) {
	return nil, nil
}
func (NopQueue) Clear(string) error { return nil }
func (NopQueue) Close() error       { return nil }
