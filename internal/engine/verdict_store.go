// ABOUTME: Persistent verdict store keyed by fingerprint in BadgerDB
// ABOUTME: Second-level cache behind the in-memory LRU with TTL expiration

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// VerdictStore persists verdicts by fingerprint so restarts and LRU
// evictions do not force re-analysis. Stored verdicts are immutable;
// a Put for an existing key replaces the record wholesale.
type VerdictStore struct {
	db  *badger.DB
	ttl time.Duration
}

// Put stores a verdict with the configured TTL. Degraded verdicts are
// refused: they describe system state at delivery time, not the content.
func (s *VerdictStore) Put(ctx context.Context, fp types.Fingerprint, v *types.Verdict) error {
	if v == nil {
		return fmt.Errorf("verdict is nil")
	}
	if v.Degraded {
		return fmt.Errorf("refusing to persist degraded verdict")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling verdict: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(verdictPrefix+string(fp)), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a stored verdict.
// Returns (verdict, true, nil) if found, (nil, false, nil) if not found.
func (s *VerdictStore) Get(ctx context.Context, fp types.Fingerprint) (*types.Verdict, bool, error) {
	var verdict *types.Verdict

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(verdictPrefix + string(fp)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting verdict: %w", err)
		}

		return item.Value(func(val []byte) error {
			verdict = &types.Verdict{}
			if err := json.Unmarshal(val, verdict); err != nil {
				return fmt.Errorf("unmarshaling verdict: %w", err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, false, err
	}
	return verdict, verdict != nil, nil
}

// Delete removes a stored verdict if present.
func (s *VerdictStore) Delete(ctx context.Context, fp types.Fingerprint) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(verdictPrefix + string(fp)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Count returns the number of stored verdicts.
func (s *VerdictStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(verdictPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// TTL returns the configured verdict TTL.
func (s *VerdictStore) TTL() time.Duration {
	return s.ttl
}
