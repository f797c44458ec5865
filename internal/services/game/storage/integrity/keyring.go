package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"strings"
)

var (
	// ErrSignatureMismatch reports a signature that does not match its chain hash.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrUnknownKey reports a signature made with a key the keyring lacks.
	ErrUnknownKey = errors.New("signature key id is unknown")
)

// Signature is an HMAC-SHA256 over a chain hash, hex encoded, and the id of
// the root key it was made with.
type Signature struct {
	Value string
	KeyID string
}

// Keyring holds root HMAC keys by id. Each session signs with a key derived
// from the root key and the session id.
type Keyring struct {
	keys        map[string][]byte
	activeKeyID string
}

// NewKeyring builds a keyring that signs with activeKeyID and verifies with
// any key in keys.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id %q is not configured", activeKeyID)
	}
	return &Keyring{keys: maps.Clone(keys), activeKeyID: activeKeyID}, nil
}

// ActiveKeyID returns the id new signatures are made with.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// Sign signs a session's chain hash with the active key.
func (k *Keyring) Sign(sessionID, chainHash string) (Signature, error) {
	if k == nil {
		return Signature{}, fmt.Errorf("hmac keyring is not configured")
	}
	sum, err := k.mac(k.activeKeyID, sessionID, chainHash)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Value: hex.EncodeToString(sum), KeyID: k.activeKeyID}, nil
}

// Verify checks sig against a session's chain hash. Signatures made with a
// retired key still verify while the key stays in the keyring.
func (k *Keyring) Verify(sessionID, chainHash string, sig Signature) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	if strings.TrimSpace(sig.KeyID) == "" {
		return fmt.Errorf("signature key id is required")
	}
	want, err := k.mac(strings.TrimSpace(sig.KeyID), sessionID, chainHash)
	if err != nil {
		return err
	}
	got, err := hex.DecodeString(sig.Value)
	if err != nil || !hmac.Equal(got, want) {
		return ErrSignatureMismatch
	}
	return nil
}

func (k *Keyring) mac(keyID, sessionID, chainHash string) ([]byte, error) {
	root, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	key, err := hkdf.Key(sha256.New, root, nil, "session:"+sessionID, sha256.Size)
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(chainHash))
	return h.Sum(nil), nil
}
