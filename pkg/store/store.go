// Package store persists override rules in BadgerDB.
//
// Rules survive process restarts and can be exported to and imported from
// JSON for sharing between environments.
//
// Key Structure:
//   - Rules: 0x01 + rule UUID bytes -> JSON(Rule)
//
// Example:
//
//	s, err := store.Open(store.Options{DataDir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	rule := override.NewRule("asset name", "map the asset column",
//		override.ExactMatch, override.Pattern{Pattern: "Asset Name"}, "title", "alice")
//	if err := s.PutRule(rule); err != nil {
//		log.Fatal(err)
//	}
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/orneryd/colmap/pkg/override"
	"github.com/orneryd/colmap/pkg/xlog"
)

// Single-byte key prefixes.
const (
	prefixRule = byte(0x01) // rules: prefix + uuid -> Rule
)

// ErrRuleNotFound is returned when a rule ID is not in the store.
var ErrRuleNotFound = errors.New("rule not found")

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Options configures the rule store.
type Options struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing.
	// Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool
}

// Store is a persistent rule store backed by BadgerDB.
//
// Safe for concurrent use from multiple goroutines.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a rule store.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	// Rule sets are small; keep the footprint down.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a store that keeps everything in RAM.
//
// Useful for tests that need store semantics without disk I/O.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Close closes the underlying database. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func ruleKey(id uuid.UUID) []byte {
	return append([]byte{prefixRule}, id[:]...)
}

// PutRule stores a rule, overwriting any rule with the same ID.
func (s *Store) PutRule(rule override.Rule) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(ruleKey(rule.ID), data)
	})
}

// GetRule fetches a rule by ID. Returns ErrRuleNotFound if absent.
func (s *Store) GetRule(id uuid.UUID) (override.Rule, error) {
	var rule override.Rule
	if err := s.checkOpen(); err != nil {
		return rule, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ruleKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrRuleNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rule)
		})
	})
	return rule, err
}

// DeleteRule removes a rule. Returns ErrRuleNotFound if absent.
func (s *Store) DeleteRule(id uuid.UUID) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := ruleKey(id)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrRuleNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListRules returns every stored rule in key order.
func (s *Store) ListRules() ([]override.Rule, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rules []override.Rule
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixRule}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rule override.Rule
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rule)
			})
			if err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		return nil
	})
	return rules, err
}

// LoadInto replays every stored rule into the engine, skipping rules the
// engine's validator rejects. Returns how many rules were loaded.
func (s *Store) LoadInto(engine *override.Engine) (int, error) {
	rules, err := s.ListRules()
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, rule := range rules {
		if _, err := engine.AddRule(rule); err != nil {
			xlog.Warn("skipping stored rule", map[string]interface{}{
				"rule_id": rule.ID.String(),
				"name":    rule.Name,
				"error":   err.Error(),
			})
			continue
		}
		loaded++
	}
	return loaded, nil
}

// SaveAll stores every given rule, overwriting existing entries.
func (s *Store) SaveAll(rules []override.Rule) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, rule := range rules {
			data, err := json.Marshal(rule)
			if err != nil {
				return fmt.Errorf("failed to encode rule %s: %w", rule.ID, err)
			}
			if err := txn.Set(ruleKey(rule.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportJSON writes all rules as a JSON array.
func (s *Store) ExportJSON(w io.Writer) error {
	rules, err := s.ListRules()
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []override.Rule{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rules)
}

// ImportJSON reads a JSON array of rules and stores them all.
// Returns how many rules were imported.
func (s *Store) ImportJSON(r io.Reader) (int, error) {
	var rules []override.Rule
	if err := json.NewDecoder(r).Decode(&rules); err != nil {
		return 0, fmt.Errorf("failed to decode rules: %w", err)
	}
	if err := s.SaveAll(rules); err != nil {
		return 0, err
	}
	return len(rules), nil
}

// Len reports how many rules are stored.
func (s *Store) Len() (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixRule}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
