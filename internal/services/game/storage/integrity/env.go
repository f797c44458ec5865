package integrity

import (
	"fmt"
	"strings"

	"github.com/careercounsel/cardroom/internal/platform/config"
)

const defaultKeyID = "v1"

// Config holds the HMAC key material for signing action chains. Keys takes
// "id=value" pairs separated by commas and wins over Key.
type Config struct {
	Keys  string `env:"CARDROOM_GAME_ACTION_HMAC_KEYS"`
	Key   string `env:"CARDROOM_GAME_ACTION_HMAC_KEY"`
	KeyID string `env:"CARDROOM_GAME_ACTION_HMAC_KEY_ID" envDefault:"v1"`
}

// Configured reports whether any key material is present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Keys) != "" || strings.TrimSpace(c.Key) != ""
}

// KeyringFromEnv loads the keyring from the environment. It returns nil and
// no error when signing is not configured.
func KeyringFromEnv() (*Keyring, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		return nil, nil
	}
	return cfg.Keyring()
}

// Keyring builds the keyring described by c.
func (c Config) Keyring() (*Keyring, error) {
	keyID := strings.TrimSpace(c.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec := strings.TrimSpace(c.Keys)
	if keySpec == "" {
		raw := strings.TrimSpace(c.Key)
		if raw == "" {
			return nil, fmt.Errorf("action hmac key is required")
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id, value = strings.TrimSpace(id), strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid action hmac keys entry %q", entry)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
