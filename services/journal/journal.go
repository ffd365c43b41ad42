// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal keeps an operator-facing record of resolution decisions.
//
// =============================================================================
// Decision Journal
// =============================================================================
//
// Every orchestrated resolution appends one entry: the query, the outcome,
// the no-match reason or matched metric, and the model that answered. The
// journal is write-only from the resolution path; nothing reads it back to
// influence a later decision. Operators read it with `metricpicker history`.
//
// Storage layout:
//
//	journal/decisions/v1/{unixNano:020d}/{uuid}  →  gob-encoded Entry
//	                                                 TTL: 30 days
//
// The zero-padded timestamp makes key order chronological, so the most
// recent entries are read with a reverse prefix scan.
package journal

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of a journal entry.
const DefaultTTL = 30 * 24 * time.Hour

// keyPrefix is versioned to allow future format changes without collision.
const keyPrefix = "journal/decisions/v1/"

// DefaultRecentLimit caps Recent when called with a non-positive limit.
const DefaultRecentLimit = 20

// Entry is one recorded resolution.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Query   string    `json:"query"`
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	Metric  string    `json:"metric,omitempty"`
	Model   string    `json:"model,omitempty"`
}

// Recorder appends entries. The orchestrator depends only on this.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// OpenDB opens a BadgerDB for the journal.
//
// Description:
//
//	An empty dir opens an in-memory database, which is what tests and
//	runs without METRICPICKER_JOURNAL_DIR use. Badger's own logging is
//	suppressed.
//
// Inputs:
//
//	dir - Database directory, or "" for in-memory.
//
// Outputs:
//
//	*dgbadger.DB - The open database. The caller closes it.
//	error        - Non-nil if the database cannot be opened.
func OpenDB(dir string) (*dgbadger.DB, error) {
	opts := dgbadger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open badger at %q: %w", dir, err)
	}
	return db, nil
}

// BadgerJournal implements Recorder on BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerJournal struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewBadgerJournal creates a journal on an open DB.
//
// # Inputs
//
//   - db: Open BadgerDB. The caller owns its lifecycle. Must not be nil.
//   - ttl: Entry lifetime. Zero uses DefaultTTL.
//   - logger: Logger. May be nil.
//
// # Outputs
//
//   - *BadgerJournal: Ready-to-use journal.
//   - error: Non-nil if db is nil.
func NewBadgerJournal(db *dgbadger.DB, ttl time.Duration, logger *slog.Logger) (*BadgerJournal, error) {
	if db == nil {
		return nil, errors.New("journal: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerJournal{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Record appends e, assigning ID and At when they are empty.
//
// # Outputs
//
//   - error: Non-nil on encode or storage failure, or if ctx is done.
//     Callers log and continue; a lost entry never affects a decision.
func (j *BadgerJournal) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = j.now()
	}
	e.At = e.At.UTC()

	raw, err := gobEncode(e)
	if err != nil {
		return fmt.Errorf("journal encode: %w", err)
	}
	err = j.db.Update(func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(entryKey(e), raw).WithTTL(j.ttl))
	})
	if err != nil {
		return fmt.Errorf("journal save: %w", err)
	}

	j.logger.Debug("journal: recorded",
		slog.String("id", e.ID),
		slog.String("outcome", e.Outcome),
	)
	return nil
}

// Recent returns up to limit entries, newest first.
//
// # Inputs
//
//   - ctx: Context for cancellation, checked between entries.
//   - limit: Maximum entries. Non-positive uses DefaultRecentLimit.
//
// # Outputs
//
//   - []Entry: Entries, newest first. Empty when the journal is empty.
//   - error: Non-nil on storage failure or cancellation. Undecodable
//     entries are skipped with a warning.
func (j *BadgerJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var entries []Entry
	err := j.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			e, err := gobDecode(raw)
			if err != nil {
				j.logger.Warn("journal: skipping undecodable entry",
					slog.String("key", string(item.Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal read: %w", err)
	}
	return entries, nil
}

func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, e.At.UnixNano(), e.ID))
}

func gobEncode(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(raw []byte) (Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
