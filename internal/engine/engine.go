// ABOUTME: Persistence engine: one BadgerDB backing verdicts, index, and jobs
// ABOUTME: Second-level verdict cache plus known-malicious fingerprint lookup

package engine

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes partitioning the shared database.
const (
	verdictPrefix  = "verdict:"
	knownBadPrefix = "mal:"
	jobPrefix      = "job:"
)

// Config holds configuration for the persistence engine.
type Config struct {
	// Dir is the BadgerDB directory; ignored when InMemory is set.
	Dir string

	// InMemory runs the database without files (tests, ephemeral hosts).
	InMemory bool

	// SyncWrites forces fsync on every write.
	SyncWrites bool

	// VerdictTTL expires stored verdicts; zero keeps them forever.
	VerdictTTL time.Duration

	// Index configures the known-malicious bloom filter.
	Index IndexConfig

	// RebuildIndexOnStart repopulates the bloom filter from stored
	// known-bad fingerprints so restarts keep their fast-path.
	RebuildIndexOnStart bool

	// Logger receives BadgerDB's internal logging; nil silences it.
	Logger badger.Logger
}

// Engine owns the database and exposes its three views: the persistent
// verdict store (second-level cache behind the in-memory LRU), the
// known-malicious fingerprint index, and the job store.
type Engine struct {
	db *badger.DB

	Verdicts *VerdictStore
	Index    *KnownBadIndex
	Jobs     *JobStore
}

// New opens the database and builds the views.
func New(cfg Config) (*Engine, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	if cfg.SyncWrites {
		opts = opts.WithSyncWrites(true)
	}
	opts = opts.WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	e := &Engine{
		db:       db,
		Verdicts: &VerdictStore{db: db, ttl: cfg.VerdictTTL},
		Index:    newKnownBadIndex(db, cfg.Index),
		Jobs:     &JobStore{db: db},
	}

	if cfg.RebuildIndexOnStart {
		if err := e.Index.Rebuild(); err != nil {
			db.Close()
			return nil, fmt.Errorf("rebuilding known-bad index: %w", err)
		}
	}

	return e, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}
