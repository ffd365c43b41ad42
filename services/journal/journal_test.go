// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"context"
	"testing"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// newTestJournal creates a journal on an in-memory BadgerDB.
func newTestJournal(t *testing.T) *BadgerJournal {
	t.Helper()
	db, err := OpenDB("")
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	j, err := NewBadgerJournal(db, 0, nil)
	if err != nil {
		t.Fatalf("NewBadgerJournal: %v", err)
	}
	return j
}

func TestNewBadgerJournal_NilDB(t *testing.T) {
	if _, err := NewBadgerJournal(nil, 0, nil); err == nil {
		t.Error("expected error for nil DB")
	}
}

func TestBadgerJournal_RecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inputs := []Entry{
		{At: base, Query: "total revenue", Outcome: "matched", Metric: "total_revenue", Model: "m"},
		{At: base.Add(time.Minute), Query: "sales?", Outcome: "no_match", Reason: "explicit_rejection", Model: "m"},
		{At: base.Add(2 * time.Minute), Query: "cost", Outcome: "matched", Metric: "total_cost", Model: "m"},
	}
	for _, e := range inputs {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(got))
	}
	wantOrder := []string{"cost", "sales?", "total revenue"}
	for i, q := range wantOrder {
		if got[i].Query != q {
			t.Errorf("entry %d query = %q, want %q", i, got[i].Query, q)
		}
		if got[i].ID == "" {
			t.Errorf("entry %d has no ID", i)
		}
	}
	if got[1].Reason != "explicit_rejection" {
		t.Errorf("reason = %q, want explicit_rejection", got[1].Reason)
	}
	if !got[2].At.Equal(base) {
		t.Errorf("At = %v, want %v", got[2].At, base)
	}
}

func TestBadgerJournal_RecentLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		if err := j.Record(ctx, Entry{At: base.Add(time.Duration(i) * time.Second), Query: "q", Outcome: "no_match"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent(2) returned %d entries", len(got))
	}
}

func TestBadgerJournal_RecentEmpty(t *testing.T) {
	got, err := newTestJournal(t).Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent on empty journal = %v", got)
	}
}

func TestBadgerJournal_AssignsIDAndTime(t *testing.T) {
	j := newTestJournal(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	if err := j.Record(context.Background(), Entry{Query: "q", Outcome: "matched"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := j.Recent(context.Background(), 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent = %v, %v", got, err)
	}
	if !got[0].At.Equal(fixed) || got[0].ID == "" {
		t.Errorf("entry = %+v, want At=%v and an ID", got[0], fixed)
	}
}

func TestBadgerJournal_EntriesCarryTTL(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Record(context.Background(), Entry{Query: "q", Outcome: "matched"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	err := j.db.View(func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			t.Fatal("no journal key written")
		}
		expires := time.Unix(int64(it.Item().ExpiresAt()), 0)
		if until := time.Until(expires); until < DefaultTTL-time.Hour || until > DefaultTTL+time.Hour {
			t.Errorf("entry expires in %v, want about %v", until, DefaultTTL)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestBadgerJournal_CancelledContext(t *testing.T) {
	j := newTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := j.Record(ctx, Entry{Query: "q"}); err == nil {
		t.Error("Record with cancelled context should fail")
	}
}
