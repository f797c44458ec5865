package sessions

import (
	"context"

	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

// Update types announced to room subscribers.
const (
	UpdateSessionCreated   = "session.created"
	UpdateStateUpdated     = "state.updated"
	UpdateSessionCompleted = "session.completed"
)

// ActionSummary describes the action behind a state update.
type ActionSummary struct {
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	PlayerID   string `json:"player_id,omitempty"`
	CardID     string `json:"card_id,omitempty"`
	SourceZone string `json:"source_zone,omitempty"`
	TargetZone string `json:"target_zone,omitempty"`
}

// Update is a change announced to everyone in a room.
type Update struct {
	Type      string                `json:"type"`
	SessionID string                `json:"session_id"`
	RoomID    string                `json:"room_id"`
	Version   int                   `json:"version"`
	Status    storage.SessionStatus `json:"status"`
	Action    *ActionSummary        `json:"action,omitempty"`
	State     map[string]any        `json:"state"`
}

// Publisher fans updates out to a room. Publish is called inline after a
// commit, so implementations queue or drop rather than wait on subscribers.
type Publisher interface {
	Publish(ctx context.Context, roomID string, update Update)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, Update) {}
