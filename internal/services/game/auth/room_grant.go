package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/careercounsel/cardroom/internal/platform/config"
	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/platform/id"
)

const (
	// EnvRoomGrantIssuer names the expected grant issuer.
	EnvRoomGrantIssuer = "CARDROOM_ROOM_GRANT_ISSUER"
	// EnvRoomGrantAudience names the expected grant audience.
	EnvRoomGrantAudience = "CARDROOM_ROOM_GRANT_AUDIENCE"
	// EnvRoomGrantPublicKey holds the base64 Ed25519 verification key.
	EnvRoomGrantPublicKey = "CARDROOM_ROOM_GRANT_PUBLIC_KEY"
)

// Role is the player's part in a counseling room.
type Role string

const (
	RoleCounselor Role = "counselor"
	RoleVisitor   Role = "visitor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCounselor || r == RoleVisitor
}

// roomGrantEnv holds raw env values before post-parse validation.
type roomGrantEnv struct {
	Issuer    string `env:"CARDROOM_ROOM_GRANT_ISSUER"`
	Audience  string `env:"CARDROOM_ROOM_GRANT_AUDIENCE"`
	PublicKey string `env:"CARDROOM_ROOM_GRANT_PUBLIC_KEY"`
}

// VerifierConfig defines how room grants are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// SignerConfig defines how room grants are issued.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// RoomGrantExpectation defines the room a grant must be scoped to.
type RoomGrantExpectation struct {
	RoomID string
}

// RoomGrantClaims captures validated room grant claims.
type RoomGrantClaims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	RoomID    string
	PlayerID  string
	Role      Role
}

// roomGrantClaims is the internal claims type used for JWT parsing.
type roomGrantClaims struct {
	jwt.RegisteredClaims
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
}

// LoadVerifierConfigFromEnv reads room grant verification configuration. The
// boolean is false when none of the variables are set, which disables grant
// checks.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, bool, error) {
	var raw roomGrantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return VerifierConfig{}, false, fmt.Errorf("parse room grant env: %w", err)
	}
	return raw.verifierConfig(now)
}

func (raw roomGrantEnv) verifierConfig(now func() time.Time) (VerifierConfig, bool, error) {
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return VerifierConfig{}, false, nil
	}
	if issuer == "" {
		return VerifierConfig{}, false, fmt.Errorf("%s is required", EnvRoomGrantIssuer)
	}
	if audience == "" {
		return VerifierConfig{}, false, fmt.Errorf("%s is required", EnvRoomGrantAudience)
	}
	if publicKey == "" {
		return VerifierConfig{}, false, fmt.Errorf("%s is required", EnvRoomGrantPublicKey)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, false, fmt.Errorf("decode room grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, false, fmt.Errorf("room grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, true, nil
}

// IssueRoomGrant signs a grant for playerID in roomID.
func IssueRoomGrant(cfg SignerConfig, roomID, playerID string, role Role) (string, error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("room grant signer is not configured")
	}
	roomID = strings.TrimSpace(roomID)
	playerID = strings.TrimSpace(playerID)
	if roomID == "" || playerID == "" {
		return "", errors.New("room id and player id are required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("room grant role %q is invalid", role)
	}
	if cfg.TTL <= 0 {
		return "", errors.New("room grant ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	jti, err := id.NewID()
	if err != nil {
		return "", err
	}

	now := cfg.Now().UTC()
	claims := roomGrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
		RoomID:   roomID,
		PlayerID: playerID,
		Role:     string(role),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign room grant: %w", err)
	}
	return token, nil
}

// ValidateRoomGrant verifies a room grant token and validates expected claims.
func ValidateRoomGrant(grant string, expected RoomGrantExpectation, cfg VerifierConfig) (RoomGrantClaims, error) {
	claims, err := ParseRoomGrant(grant, cfg)
	if err != nil {
		return RoomGrantClaims{}, err
	}
	if err := claims.CheckRoom(expected.RoomID); err != nil {
		return RoomGrantClaims{}, err
	}
	return claims, nil
}

// ParseRoomGrant verifies a room grant's signature and registered claims
// without binding it to a room. Callers that resolve the room from stored
// state use it to authenticate before the lookup, then call CheckRoom.
func ParseRoomGrant(grant string, cfg VerifierConfig) (RoomGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantRequired, "room grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return RoomGrantClaims{}, errors.New("room grant verifier is not configured")
	}

	var parsed roomGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return RoomGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return RoomGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeRoomGrantMismatch,
			"room grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !slices.Contains(parsed.Audience, cfg.Audience) {
		return RoomGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeRoomGrantMismatch,
			"room grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantExpired, "room grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant not active yet")
	}

	if strings.TrimSpace(parsed.RoomID) == "" {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant room_id is required")
	}
	if strings.TrimSpace(parsed.PlayerID) == "" {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant player_id is required")
	}
	role := Role(parsed.Role)
	if !role.Valid() {
		return RoomGrantClaims{}, apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant role is invalid")
	}

	claims := RoomGrantClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		RoomID:    parsed.RoomID,
		PlayerID:  parsed.PlayerID,
		Role:      role,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// CheckRoom fails with a mismatch unless the grant is scoped to roomID.
func (c RoomGrantClaims) CheckRoom(roomID string) error {
	if c.RoomID == "" || c.RoomID != roomID {
		return apperrors.WithMetadata(
			apperrors.CodeRoomGrantMismatch,
			"room grant room mismatch",
			map[string]string{"Field": "room_id"},
		)
	}
	return nil
}

// RequireRole fails with ROOM_ROLE_FORBIDDEN unless the grant carries role.
func (c RoomGrantClaims) RequireRole(role Role) error {
	if c.Role != role {
		return apperrors.WithMetadata(
			apperrors.CodeRoomRoleForbidden,
			fmt.Sprintf("%s role required", role),
			map[string]string{"Role": string(role)},
		)
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeRoomGrantInvalid, "room grant is invalid")
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
