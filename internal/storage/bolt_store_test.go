package storage

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func openTestBolt(t *testing.T, opts Options) (*boltStore, *time.Time) {
	t.Helper()
	store, err := openBolt(filepath.Join(t.TempDir(), "nested", "observations.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	store.lastCleanup.Store(now.Unix())
	return store, &now
}

func TestBoltStoreMarksAndExpiresObservations(t *testing.T) {
	store, now := openTestBolt(t, Options{ObservationTTL: time.Minute, CleanupInterval: time.Hour})

	seen, err := store.SeenObservation("fp-1")
	if err != nil || seen {
		t.Fatalf("expected unseen observation, seen=%v err=%v", seen, err)
	}
	if err := store.MarkObservation("fp-1"); err != nil {
		t.Fatalf("MarkObservation: %v", err)
	}
	seen, err = store.SeenObservation("fp-1")
	if err != nil || !seen {
		t.Fatalf("expected observation marked as seen, got seen=%v err=%v", seen, err)
	}

	*now = now.Add(2 * time.Minute)
	seen, err = store.SeenObservation("fp-1")
	if err != nil {
		t.Fatalf("SeenObservation after expiry: %v", err)
	}
	if seen {
		t.Fatalf("expected entry to expire")
	}
}

func TestBoltStoreCleanupSweepsExpired(t *testing.T) {
	store, now := openTestBolt(t, Options{ObservationTTL: time.Minute, CleanupInterval: 5 * time.Minute})

	for _, fp := range []string{"a", "b"} {
		if err := store.MarkObservation(fp); err != nil {
			t.Fatalf("MarkObservation(%s): %v", fp, err)
		}
	}

	*now = now.Add(10 * time.Minute)
	if err := store.MarkObservation("c"); err != nil {
		t.Fatalf("MarkObservation(c): %v", err)
	}

	keys := boltKeys(t, store)
	if len(keys) != 1 || keys[0] != "c" {
		t.Fatalf("expected only the fresh fingerprint to survive cleanup, got %v", keys)
	}
}

func boltKeys(t *testing.T, store *boltStore) []string {
	t.Helper()
	var keys []string
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(observationBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	return keys
}

func TestDecodeExpiryRejectsGarbage(t *testing.T) {
	if _, ok := decodeExpiry([]byte("short")); ok {
		t.Fatalf("expected short value to be rejected")
	}
	if _, ok := decodeExpiry(make([]byte, expiryValueBytes)); ok {
		t.Fatalf("expected zero expiry to be rejected")
	}
	when := time.Unix(1_800_000_000, 0)
	got, ok := decodeExpiry(encodeExpiry(when))
	if !ok || !got.Equal(when) {
		t.Fatalf("expected %v, got %v ok=%v", when, got, ok)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkObservation("x"); err != nil {
		t.Fatalf("noop store MarkObservation: %v", err)
	}
	if seen, _ := store.SeenObservation("x"); seen {
		t.Fatalf("noop store never reports seen")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "x", Options{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
