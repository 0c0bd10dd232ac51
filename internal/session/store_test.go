package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"scriptgen/internal/domain"
)

const testTTL = 5 * time.Minute

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "session.db"), testTTL, nil)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSession(start time.Time) domain.GenerationSession {
	return domain.GenerationSession{
		JobID:        "job-42",
		StartTime:    start,
		Mode:         domain.ModeModerate,
		FormSnapshot: json.RawMessage(`{"topic":"spring sale"}`),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	stores := map[string]Store{
		"bolt":   newTestBoltStore(t),
		"memory": NewMemoryStore(testTTL),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := testSession(time.Now())
			if err := store.Persist(ctx, want); err != nil {
				t.Fatalf("Persist: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got == nil {
				t.Fatalf("Load returned nil, want session")
			}
			if got.JobID != want.JobID || got.Mode != want.Mode {
				t.Fatalf("Load = %+v, want %+v", got, want)
			}
			if string(got.FormSnapshot) != string(want.FormSnapshot) {
				t.Fatalf("FormSnapshot = %s, want %s", got.FormSnapshot, want.FormSnapshot)
			}
		})
	}
}

func TestStoreLoadExpiredDiscards(t *testing.T) {
	stores := map[string]Store{
		"bolt":   newTestBoltStore(t),
		"memory": NewMemoryStore(testTTL),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stale := testSession(time.Now().Add(-testTTL - time.Second))
			if err := store.Persist(ctx, stale); err != nil {
				t.Fatalf("Persist: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != nil {
				t.Fatalf("expired session should be discarded, got %+v", got)
			}
			// The slot must actually be empty afterwards.
			got, err = store.Load(ctx)
			if err != nil || got != nil {
				t.Fatalf("slot not cleared after expiry: %+v, %v", got, err)
			}
		})
	}
}

func TestStoreClearIsIdempotent(t *testing.T) {
	stores := map[string]Store{
		"bolt":   newTestBoltStore(t),
		"memory": NewMemoryStore(testTTL),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear on empty slot: %v", err)
			}
			if err := store.Persist(ctx, testSession(time.Now())); err != nil {
				t.Fatalf("Persist: %v", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("second Clear: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil || got != nil {
				t.Fatalf("Load after Clear = %+v, %v", got, err)
			}
		})
	}
}

func TestBoltStoreCorruptRecordTreatedAsAbsent(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	if err := store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyCurrent, []byte("{not json"))
	}); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load must not surface corrupt data as an error: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt record should read as absence, got %+v", got)
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	store, err := NewBoltStore(path, testTTL, nil)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	want := testSession(time.Now())
	if err := store.Persist(ctx, want); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewBoltStore(path, testTTL, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if got == nil || got.JobID != want.JobID {
		t.Fatalf("Load after reopen = %+v, want job %q", got, want.JobID)
	}
}
