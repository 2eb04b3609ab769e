// SPDX-License-Identifier: MIT

// Package store persists telemetry samples and engine counters in an
// embedded Badger database.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vesselworks/spiritd/internal/sensors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

const (
	samplePrefix = "sample:"
	countersKey  = "counters"
)

// Counters are the monotonic figures the engine accumulates across restarts.
type Counters struct {
	Cycles             uint64  `json:"cycles"`
	PreventedIncidents uint64  `json:"prevented_incidents"`
	CostSavings        float64 `json:"cost_savings"`
}

// Store is a Badger-backed sample and counter store. Sample values are JSON
// under "sample:<big-endian seq>" so iteration order follows sequence order.
type Store struct {
	db        *badger.DB
	retention time.Duration
}

// Open opens (or creates) the store at path. retention > 0 sets a TTL on
// sample records so old telemetry ages out.
func Open(path string, retention time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db, retention: retention}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func sampleKey(seq uint64) []byte {
	key := make([]byte, len(samplePrefix)+8)
	copy(key, samplePrefix)
	binary.BigEndian.PutUint64(key[len(samplePrefix):], seq)
	return key
}

// PutSample persists one sample.
func (s *Store) PutSample(ctx context.Context, smp sensors.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(smp)
	if err != nil {
		return fmt.Errorf("marshal sample %d: %w", smp.Seq, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sampleKey(smp.Seq), buf)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
		}
		return txn.SetEntry(entry)
	})
}

// Sample fetches one sample by sequence number.
func (s *Store) Sample(ctx context.Context, seq uint64) (sensors.Sample, error) {
	var out sensors.Sample
	if err := ctx.Err(); err != nil {
		return out, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sampleKey(seq))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	return out, err
}

// RecentSamples returns up to limit samples ending at the highest stored
// sequence, newest first.
func (s *Store) RecentSamples(ctx context.Context, limit int) ([]sensors.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	out := make([]sensors.Sample, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(samplePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key.
		seek := sampleKey(^uint64(0))
		for it.Seek(seek); it.ValidForPrefix([]byte(samplePrefix)) && len(out) < limit; it.Next() {
			var smp sensors.Sample
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &smp)
			}); err != nil {
				return err
			}
			out = append(out, smp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Counters loads the persisted engine counters, returning zero values when
// none exist yet.
func (s *Store) Counters(ctx context.Context) (Counters, error) {
	var out Counters
	if err := ctx.Err(); err != nil {
		return out, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(countersKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	return out, err
}

// PutCounters persists the engine counters.
func (s *Store) PutCounters(ctx context.Context, c Counters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(countersKey), buf)
	})
}
