package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/careercounsel/cardroom/internal/services/game/storage"
	"github.com/careercounsel/cardroom/internal/services/game/storage/integrity"
)

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	keyring, err := integrity.NewKeyring(
		map[string][]byte{"test-key-1": []byte("0123456789abcdef0123456789abcdef")},
		"test-key-1",
	)
	if err != nil {
		t.Fatalf("create test keyring: %v", err)
	}
	return keyring
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sqlite")
	store, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func seedSession(t *testing.T, store *Store, id, roomID string) storage.SessionRecord {
	t.Helper()
	record := storage.SessionRecord{
		ID:        id,
		RoomID:    roomID,
		RuleID:    "value_navigation",
		Status:    storage.SessionStatusWaiting,
		StateJSON: []byte(`{"version":1}`),
		Version:   1,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if err := store.CreateSession(context.Background(), record); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return record
}

// transition applies one placement on top of session and returns the new
// session record.
func transition(t *testing.T, store *Store, session storage.SessionRecord, cardID, zone string) (storage.SessionRecord, storage.ActionRecord) {
	t.Helper()
	next := session
	next.Version = session.Version + 1
	next.Status = storage.SessionStatusInProgress
	next.UpdatedAt = session.UpdatedAt.Add(time.Second)
	action := storage.ActionRecord{
		SessionID:   session.ID,
		PlayerID:    "p1",
		ActionType:  "place_card",
		CardID:      cardID,
		TargetZone:  zone,
		FromVersion: session.Version,
		ToVersion:   next.Version,
		CreatedAt:   next.UpdatedAt,
	}
	stored, err := store.ApplyTransition(context.Background(), session.Version, next, action)
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	return next, stored
}
