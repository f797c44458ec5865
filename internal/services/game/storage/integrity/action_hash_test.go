package integrity

import (
	"testing"
	"time"

	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

func sampleActions() []storage.ActionRecord {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []storage.ActionRecord{
		{Seq: 1, SessionID: "sess-1", PlayerID: "p1", ActionType: "place_card", CardID: "c1", TargetZone: "like", FromVersion: 1, ToVersion: 2, CreatedAt: at},
		{Seq: 2, SessionID: "sess-1", PlayerID: "p1", ActionType: "move_card", CardID: "c1", SourceZone: "like", TargetZone: "neutral", FromVersion: 2, ToVersion: 3, PayloadJSON: []byte(`{"position":0}`), CreatedAt: at.Add(time.Second)},
	}
}

func sealAll(t *testing.T, records []storage.ActionRecord, ring *Keyring) []storage.ActionRecord {
	t.Helper()
	sealed := make([]storage.ActionRecord, 0, len(records))
	prev := ""
	for _, record := range records {
		out, err := Seal(record, prev, ring)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		sealed = append(sealed, out)
		prev = out.ChainHash
	}
	return sealed
}

func TestActionHashIgnoresSeqAndHashes(t *testing.T) {
	record := sampleActions()[0]
	first, err := ActionHash(record)
	if err != nil {
		t.Fatalf("action hash: %v", err)
	}
	record.Seq = 99
	record.ChainHash = "x"
	second, err := ActionHash(record)
	if err != nil {
		t.Fatalf("action hash: %v", err)
	}
	if first != second {
		t.Fatal("expected hash to ignore sequence and chain fields")
	}
	record.CardID = "c2"
	third, _ := ActionHash(record)
	if third == first {
		t.Fatal("expected hash to change with card id")
	}
}

func TestChainHashDependsOnPredecessor(t *testing.T) {
	record := sampleActions()[0]
	a, err := ChainHash(record, "")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	b, err := ChainHash(record, "abc")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if a == b {
		t.Fatal("expected chain hash to depend on previous hash")
	}
}

func TestVerifyChainUnsigned(t *testing.T) {
	sealed := sealAll(t, sampleActions(), nil)
	if sealed[1].PrevHash != sealed[0].ChainHash {
		t.Fatal("expected second record to link to first")
	}
	if sealed[0].Signature != "" {
		t.Fatal("expected unsigned record without keyring")
	}
	if err := VerifyChain(sealed, nil); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestVerifyChainSigned(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	sealed := sealAll(t, sampleActions(), ring)
	if sealed[0].SignatureKeyID != "v1" || sealed[0].Signature == "" {
		t.Fatalf("expected signed record, got %+v", sealed[0])
	}
	if err := VerifyChain(sealed, ring); err != nil {
		t.Fatalf("verify chain: %v", err)
	}

	sealed[1].Signature = "forged"
	if err := VerifyChain(sealed, ring); err == nil {
		t.Fatal("expected forged signature to fail")
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	sealed := sealAll(t, sampleActions(), nil)
	sealed[0].TargetZone = "dislike"
	if err := VerifyChain(sealed, nil); err == nil {
		t.Fatal("expected tampered content to fail")
	}

	sealed = sealAll(t, sampleActions(), nil)
	if err := VerifyChain(sealed[1:], nil); err == nil {
		t.Fatal("expected missing predecessor to fail")
	}
}
