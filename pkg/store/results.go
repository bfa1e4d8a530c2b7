// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/microbench/pkg/microbench"
	"github.com/AleutianAI/microbench/pkg/report"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilRun is returned when Save is given a nil run.
	ErrNilRun = errors.New("run must not be nil")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")
)

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

// Run is one invocation of the run command and every row it produced.
type Run struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Config     microbench.Config `json:"config"`
	Records    []report.Record   `json:"records"`
}

// Summary is the listing form of a Run.
type Summary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cases      int       `json:"cases"`
	Accepted   int       `json:"accepted"`
}

// Summarize counts the accepted records of a run.
func (r *Run) Summarize() Summary {
	s := Summary{ID: r.ID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Cases: len(r.Records)}
	for _, rec := range r.Records {
		if rec.Outcome() == microbench.OutcomeAccepted {
			s.Accepted++
		}
	}
	return s
}

// ResultStore persists runs, ordered by start time.
//
// Description:
//
//	Each run is stored under run/<started_at big-endian nanos>/<id> so that
//	key order is chronological, with an id/<id> entry pointing back to it.
//
// Thread Safety: Safe for concurrent use.
type ResultStore struct {
	db *DB
}

// NewResultStore wraps an open database.
func NewResultStore(db *DB) (*ResultStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &ResultStore{db: db}, nil
}

func runKey(startedAt time.Time, id string) []byte {
	key := make([]byte, 0, len(runPrefix)+8+1+len(id))
	key = append(key, runPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(startedAt.UnixNano()))
	key = append(key, '/')
	return append(key, id...)
}

// Save writes a run, assigning an ID when it has none.
//
// Outputs:
//   - error: Non-nil if the run could not be encoded or written.
func (s *ResultStore) Save(ctx context.Context, run *Run) error {
	if ctx == nil {
		return ErrNilContext
	}
	if run == nil {
		return ErrNilRun
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	key := runKey(run.StartedAt, run.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+run.ID), key)
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run by ID.
func (s *ResultStore) Get(id string) (*Run, error) {
	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *ResultStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var runs []*Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration seeks from just past the prefix
		for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
			}
			runs = append(runs, &run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Latest returns the most recently started run.
func (s *ResultStore) Latest(ctx context.Context) (*Run, error) {
	runs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// Delete removes a run and its index entry.
func (s *ResultStore) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(idPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Recorder
// -----------------------------------------------------------------------------

// Recorder is a report.Reporter that collects rows and saves them as one
// run on Close.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	store  *ResultStore
	ctx    context.Context
	clock  clock.Clock
	mu     sync.Mutex
	run    Run
	closed bool
}

// NewRecorder starts a run. If clk is nil, the wall clock is used.
func (s *ResultStore) NewRecorder(ctx context.Context, cfg microbench.Config, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		store: s,
		ctx:   ctx,
		clock: clk,
		run: Run{
			ID:        uuid.NewString(),
			StartedAt: clk.Now().UTC(),
			Config:    cfg,
		},
	}
}

// ID returns the run ID assigned at creation.
func (r *Recorder) ID() string {
	return r.run.ID
}

// Report appends the row to the run.
func (r *Recorder) Report(row report.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return report.ErrReporterClosed
	}
	r.run.Records = append(r.run.Records, report.NewRecord(row))
	return nil
}

// Close saves the run. Runs with no rows are not saved.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if len(r.run.Records) == 0 {
		return nil
	}
	r.run.FinishedAt = r.clock.Now().UTC()
	return r.store.Save(r.ctx, &r.run)
}
