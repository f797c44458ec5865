package storage

import (
	"context"
	"time"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrActiveSessionExists indicates a second open session for one room.
var ErrActiveSessionExists = apperrors.New(apperrors.CodeActiveSessionExists, "active session already exists for room")

// ErrVersionConflict indicates the stored board moved past the expected version.
var ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "session version changed")

// SessionStatus is the application-owned lifecycle of a session.
type SessionStatus string

const (
	// SessionStatusWaiting means no action has been accepted yet.
	SessionStatusWaiting SessionStatus = "waiting"
	// SessionStatusInProgress means at least one action was accepted.
	SessionStatusInProgress SessionStatus = "in_progress"
	// SessionStatusCompleted means the board is closed to further actions.
	SessionStatusCompleted SessionStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusWaiting, SessionStatusInProgress, SessionStatusCompleted:
		return true
	default:
		return false
	}
}

// SessionRecord is the persisted session with its latest board.
type SessionRecord struct {
	ID          string
	RoomID      string
	RuleID      string
	Status      SessionStatus
	StateJSON   []byte
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ActionRecord is one accepted action in a session's history. The hash fields
// link each record to its predecessor.
type ActionRecord struct {
	Seq            int64
	SessionID      string
	PlayerID       string
	ActionType     string
	CardID         string
	SourceZone     string
	TargetZone     string
	FromVersion    int
	ToVersion      int
	PayloadJSON    []byte
	CreatedAt      time.Time
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string
}

// ListActionsOptions selects a page of history.
type ListActionsOptions struct {
	// Filter is an AIP-160 expression over the action fields.
	Filter string
	// PageSize is clamped to the store's bounds.
	PageSize int
	// AfterSeq returns records with a larger sequence number.
	AfterSeq int64
}

// ActionPage is one page of history in ascending sequence order.
type ActionPage struct {
	Actions []ActionRecord
	// TotalCount counts every record matching the filter.
	TotalCount int
	// NextAfterSeq is the AfterSeq for the next page; 0 when there is none.
	NextAfterSeq int64
}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	// GetActiveSessionByRoom returns the room's session that is not completed.
	GetActiveSessionByRoom(ctx context.Context, roomID string) (SessionRecord, error)
	// UpdateSessionState writes record only when the stored version equals
	// expectedVersion; otherwise it returns ErrVersionConflict.
	UpdateSessionState(ctx context.Context, id string, expectedVersion int, record SessionRecord) error
	// UpdateSessionStatus sets the status only when the stored version equals
	// expectedVersion and the session is not completed; otherwise it returns
	// ErrVersionConflict.
	UpdateSessionStatus(ctx context.Context, id string, expectedVersion int, status SessionStatus, at time.Time) error
}

// ActionStore persists the action history.
type ActionStore interface {
	AppendAction(ctx context.Context, record ActionRecord) (ActionRecord, error)
	ListActions(ctx context.Context, sessionID string, opts ListActionsOptions) (ActionPage, error)
}

// Store combines session and action persistence.
type Store interface {
	SessionStore
	ActionStore
	// ApplyTransition performs UpdateSessionState and AppendAction atomically.
	ApplyTransition(ctx context.Context, expectedVersion int, session SessionRecord, action ActionRecord) (ActionRecord, error)
	// VerifyActionChain checks the hash chain of one session's history.
	VerifyActionChain(ctx context.Context, sessionID string) error
	Close() error
}
