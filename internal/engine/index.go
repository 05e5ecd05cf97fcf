// ABOUTME: Known-malicious fingerprint index with bloom filter fast path
// ABOUTME: Two-tier lookup: bloom rejection first, BadgerDB confirmation second

package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// IndexConfig holds configuration for the known-malicious index.
type IndexConfig struct {
	// ExpectedItems sizes the bloom filter.
	ExpectedItems uint

	// FalsePositiveRate is the target false positive rate (e.g., 0.01).
	FalsePositiveRate float64
}

// Index defaults.
const (
	DefaultExpectedItems     = 1_000_000
	DefaultFalsePositiveRate = 0.01
)

func (c IndexConfig) withDefaults() IndexConfig {
	if c.ExpectedItems == 0 {
		c.ExpectedItems = DefaultExpectedItems
	}
	if c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1 {
		c.FalsePositiveRate = DefaultFalsePositiveRate
	}
	return c
}

// IndexStats contains lookup statistics for the index.
type IndexStats struct {
	Entries         int64
	TotalLookups    int64
	BloomRejections int64
	BloomHits       int64
	Confirmed       int64
}

// KnownBadIndex answers "is this fingerprint a confirmed known-malicious
// sample" with a bloom filter in front of the database. A negative bloom
// test is a definite no and skips the store entirely; a positive one is
// confirmed against BadgerDB before short-circuiting the pipeline.
type KnownBadIndex struct {
	filter atomic.Pointer[bloom.BloomFilter]
	mu     sync.Mutex // serializes filter writes and rebuilds
	db     *badger.DB
	cfg    IndexConfig

	entries         atomic.Int64
	totalLookups    atomic.Int64
	bloomRejections atomic.Int64
	bloomHits       atomic.Int64
	confirmed       atomic.Int64
}

func newKnownBadIndex(db *badger.DB, cfg IndexConfig) *KnownBadIndex {
	cfg = cfg.withDefaults()
	idx := &KnownBadIndex{db: db, cfg: cfg}
	idx.filter.Store(bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate))
	return idx
}

// Add marks a fingerprint as known-malicious: persisted first, then added
// to the filter so a crash between the two can only lose the fast path,
// never invent a detection.
func (idx *KnownBadIndex) Add(fp types.Fingerprint) error {
	err := idx.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(knownBadPrefix+string(fp)), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("persisting known-bad fingerprint: %w", err)
	}

	idx.mu.Lock()
	idx.filter.Load().Add([]byte(fp))
	idx.mu.Unlock()
	idx.entries.Add(1)
	return nil
}

// Contains reports whether a fingerprint is confirmed known-malicious.
func (idx *KnownBadIndex) Contains(fp types.Fingerprint) (bool, error) {
	idx.totalLookups.Add(1)

	if !idx.filter.Load().Test([]byte(fp)) {
		idx.bloomRejections.Add(1)
		return false, nil
	}
	idx.bloomHits.Add(1)

	var found bool
	err := idx.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(knownBadPrefix + string(fp)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("confirming known-bad fingerprint: %w", err)
	}

	if found {
		idx.confirmed.Add(1)
	}
	return found, nil
}

// Rebuild swaps in a fresh filter populated from the database. Used on
// startup and after bulk ingestion.
func (idx *KnownBadIndex) Rebuild() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fresh := bloom.NewWithEstimates(idx.cfg.ExpectedItems, idx.cfg.FalsePositiveRate)
	var count int64

	err := idx.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(knownBadPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			fresh.Add(key[len(knownBadPrefix):])
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}

	idx.filter.Store(fresh)
	idx.entries.Store(count)
	return nil
}

// Stats returns a snapshot of index counters.
func (idx *KnownBadIndex) Stats() IndexStats {
	return IndexStats{
		Entries:         idx.entries.Load(),
		TotalLookups:    idx.totalLookups.Load(),
		BloomRejections: idx.bloomRejections.Load(),
		BloomHits:       idx.bloomHits.Load(),
		Confirmed:       idx.confirmed.Load(),
	}
}
