// ABOUTME: JobStore persists analysis jobs in BadgerDB for async polling
// ABOUTME: Jobs survive restarts so intake hosts can resolve submissions later

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// JobStore persists jobs by ID.
type JobStore struct {
	db *badger.DB
}

// Put stores a job record.
func (s *JobStore) Put(ctx context.Context, job *types.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job has no ID")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobPrefix+job.ID), data)
	})
}

// Update overwrites an existing job record.
func (s *JobStore) Update(ctx context.Context, job *types.Job) error {
	return s.Put(ctx, job)
}

// Get retrieves a job by ID. Returns (nil, nil) when not found.
func (s *JobStore) Get(ctx context.Context, id string) (*types.Job, error) {
	var job *types.Job

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobPrefix + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting job: %w", err)
		}

		return item.Value(func(val []byte) error {
			job = &types.Job{}
			if err := json.Unmarshal(val, job); err != nil {
				return fmt.Errorf("unmarshaling job: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job record if present.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(jobPrefix + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Count returns the number of stored jobs.
func (s *JobStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(jobPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}
