package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/careercounsel/cardroom/internal/platform/grpc/pagination"
	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

func TestApplyTransitionAppendsChainedActions(t *testing.T) {
	store := openTestStore(t, WithKeyring(testKeyring(t)))
	ctx := context.Background()
	session := seedSession(t, store, "sess-1", "room-1")

	session, first := transition(t, store, session, "c1", "like")
	session, second := transition(t, store, session, "c2", "dislike")

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected seq 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if first.PrevHash != "" {
		t.Fatal("expected empty prev hash for first action")
	}
	if second.PrevHash != first.ChainHash {
		t.Fatal("expected second action to link to first")
	}
	if first.SignatureKeyID != "test-key-1" || first.Signature == "" {
		t.Fatalf("expected signed action, got %+v", first)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Version != session.Version || got.Status != storage.SessionStatusInProgress {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.VerifyActionChain(ctx, "sess-1"); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestApplyTransitionConflictWritesNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := seedSession(t, store, "sess-1", "room-1")
	transition(t, store, session, "c1", "like")

	stale := session
	stale.Version = 2
	_, err := store.ApplyTransition(ctx, 1, stale, storage.ActionRecord{
		SessionID:   "sess-1",
		ActionType:  "place_card",
		CardID:      "c9",
		FromVersion: 1,
		ToVersion:   2,
	})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	page, err := store.ListActions(ctx, "sess-1", storage.ListActionsOptions{})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(page.Actions) != 1 || page.Actions[0].CardID != "c1" {
		t.Fatalf("expected only the first action, got %+v", page.Actions)
	}
}

func TestApplyTransitionRejectsMismatchedSession(t *testing.T) {
	store := openTestStore(t)
	session := seedSession(t, store, "sess-1", "room-1")

	_, err := store.ApplyTransition(context.Background(), 1, session, storage.ActionRecord{SessionID: "other", ActionType: "place_card"})
	if err == nil {
		t.Fatal("expected error for mismatched session")
	}
}

func TestListActionsPaging(t *testing.T) {
	store := openTestStore(t, WithPageSize(pagination.PageSizeConfig{Default: 2, Max: 3}))
	ctx := context.Background()
	session := seedSession(t, store, "sess-1", "room-1")
	for i := range 5 {
		session, _ = transition(t, store, session, fmt.Sprintf("c%d", i+1), "like")
	}

	page, err := store.ListActions(ctx, "sess-1", storage.ListActionsOptions{})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(page.Actions) != 2 || page.NextAfterSeq != 2 || page.TotalCount != 5 {
		t.Fatalf("unexpected first page: %d actions, next %d, total %d", len(page.Actions), page.NextAfterSeq, page.TotalCount)
	}

	page, err = store.ListActions(ctx, "sess-1", storage.ListActionsOptions{AfterSeq: 2, PageSize: 50})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(page.Actions) != 3 || page.NextAfterSeq != 0 {
		t.Fatalf("expected final page of 3, got %d (next %d)", len(page.Actions), page.NextAfterSeq)
	}
	if page.Actions[0].Seq != 3 || page.Actions[2].Seq != 5 {
		t.Fatalf("unexpected sequence range %d..%d", page.Actions[0].Seq, page.Actions[2].Seq)
	}
}

func TestListActionsFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := seedSession(t, store, "sess-1", "room-1")
	session, _ = transition(t, store, session, "c1", "like")
	session, _ = transition(t, store, session, "c2", "dislike")
	transition(t, store, session, "c3", "like")

	page, err := store.ListActions(ctx, "sess-1", storage.ListActionsOptions{Filter: `target_zone = "like" AND to_version > 2`})
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(page.Actions) != 1 || page.Actions[0].CardID != "c3" {
		t.Fatalf("expected only c3, got %+v", page.Actions)
	}
	if page.TotalCount != 1 {
		t.Fatalf("expected total 1, got %d", page.TotalCount)
	}

	if _, err := store.ListActions(ctx, "sess-1", storage.ListActionsOptions{Filter: `bogus = "x"`}); err == nil {
		t.Fatal("expected error for invalid filter")
	}
	if _, err := store.ListActions(ctx, " ", storage.ListActionsOptions{}); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestVerifyActionChainDetectsTampering(t *testing.T) {
	store := openTestStore(t, WithKeyring(testKeyring(t)))
	ctx := context.Background()
	session := seedSession(t, store, "sess-1", "room-1")
	session, _ = transition(t, store, session, "c1", "like")
	transition(t, store, session, "c2", "like")

	if _, err := store.db.ExecContext(ctx, "UPDATE actions SET target_zone = 'dislike' WHERE seq = 1"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := store.VerifyActionChain(ctx, "sess-1"); err == nil {
		t.Fatal("expected tampered chain to fail verification")
	}
}

func TestVerifyActionChainEmptySession(t *testing.T) {
	store := openTestStore(t)
	seedSession(t, store, "sess-1", "room-1")
	if err := store.VerifyActionChain(context.Background(), "sess-1"); err != nil {
		t.Fatalf("verify empty chain: %v", err)
	}
}

func TestAppendActionAssignsSequence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedSession(t, store, "sess-1", "room-1")

	first, err := store.AppendAction(ctx, storage.ActionRecord{SessionID: "sess-1", ActionType: "place_card", FromVersion: 1, ToVersion: 2})
	if err != nil {
		t.Fatalf("append action: %v", err)
	}
	if first.Seq != 1 || first.ChainHash == "" || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected stored action %+v", first)
	}
	if _, err := store.AppendAction(ctx, storage.ActionRecord{SessionID: "sess-1", ActionType: "place_card", FromVersion: 1, ToVersion: 2}); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected conflict on duplicate to_version, got %v", err)
	}
	if _, err := store.AppendAction(ctx, storage.ActionRecord{SessionID: "sess-1"}); err == nil {
		t.Fatal("expected error for missing action type")
	}
}
