package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

type actionEnvelope struct {
	SessionID   string          `json:"session_id"`
	PlayerID    string          `json:"player_id"`
	ActionType  string          `json:"action_type"`
	CardID      string          `json:"card_id"`
	SourceZone  string          `json:"source_zone"`
	TargetZone  string          `json:"target_zone"`
	FromVersion int             `json:"from_version"`
	ToVersion   int             `json:"to_version"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   int64           `json:"created_at"`
}

// ActionHash computes the content hash of one action record. Sequence
// numbers and existing hash fields are excluded.
func ActionHash(record storage.ActionRecord) (string, error) {
	payload := json.RawMessage(record.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(actionEnvelope{
		SessionID:   record.SessionID,
		PlayerID:    record.PlayerID,
		ActionType:  record.ActionType,
		CardID:      record.CardID,
		SourceZone:  record.SourceZone,
		TargetZone:  record.TargetZone,
		FromVersion: record.FromVersion,
		ToVersion:   record.ToVersion,
		Payload:     payload,
		CreatedAt:   record.CreatedAt.UTC().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encode action envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChainHash links an action record to the chain hash of its predecessor.
// The first record of a session uses an empty prevHash.
func ChainHash(record storage.ActionRecord, prevHash string) (string, error) {
	contentHash, err := ActionHash(record)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prevHash + ":" + contentHash))
	return hex.EncodeToString(sum[:]), nil
}

// Seal fills the hash and signature fields of record given its predecessor's
// chain hash. A nil keyring leaves the record unsigned.
func Seal(record storage.ActionRecord, prevHash string, keyring *Keyring) (storage.ActionRecord, error) {
	chainHash, err := ChainHash(record, prevHash)
	if err != nil {
		return storage.ActionRecord{}, err
	}
	record.PrevHash = prevHash
	record.ChainHash = chainHash
	record.Signature, record.SignatureKeyID = "", ""
	if keyring != nil {
		sig, err := keyring.Sign(record.SessionID, chainHash)
		if err != nil {
			return storage.ActionRecord{}, err
		}
		record.Signature, record.SignatureKeyID = sig.Value, sig.KeyID
	}
	return record, nil
}

// VerifyChain checks that records, in sequence order, form an unbroken chain
// and, when keyring is set, that signed records carry valid signatures.
func VerifyChain(records []storage.ActionRecord, keyring *Keyring) error {
	prevHash := ""
	for _, record := range records {
		if record.PrevHash != prevHash {
			return fmt.Errorf("action %d: previous hash does not match chain", record.Seq)
		}
		expected, err := ChainHash(record, prevHash)
		if err != nil {
			return fmt.Errorf("action %d: %w", record.Seq, err)
		}
		if record.ChainHash != expected {
			return fmt.Errorf("action %d: chain hash mismatch", record.Seq)
		}
		if keyring != nil && record.Signature != "" {
			if err := keyring.Verify(record.SessionID, record.ChainHash, Signature{Value: record.Signature, KeyID: record.SignatureKeyID}); err != nil {
				return fmt.Errorf("action %d: %w", record.Seq, err)
			}
		}
		prevHash = record.ChainHash
	}
	return nil
}
