package engine

import (
	"strings"

	"github.com/careercounsel/cardroom/internal/services/game/domain/state"
)

// ActionType identifies what an action does to the board.
type ActionType string

const (
	// ActionPlaceCard puts a card from the deck into a zone.
	ActionPlaceCard ActionType = "PLACE_CARD"
	// ActionFlip turns a card face up or down. Not supported by any rule.
	ActionFlip ActionType = "FLIP"
	// ActionMove takes a placed card to another zone or position.
	ActionMove ActionType = "MOVE"
	// ActionArrange reorders the cards of one zone.
	ActionArrange ActionType = "ARRANGE"
	// ActionAnnotate attaches a note to a card. Not supported by any rule.
	ActionAnnotate ActionType = "ANNOTATE"
)

// ActionTypes lists every declared action type.
func ActionTypes() []ActionType {
	return []ActionType{ActionPlaceCard, ActionFlip, ActionMove, ActionArrange, ActionAnnotate}
}

// ParseActionType normalizes a transport value to an ActionType.
func ParseActionType(value string) (ActionType, bool) {
	candidate := ActionType(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range ActionTypes() {
		if candidate == known {
			return known, true
		}
	}
	return candidate, false
}

// Action is one requested mutation of the board.
type Action struct {
	Type       ActionType
	PlayerID   string
	CardID     string
	TargetZone string
	// SourceZone is the zone a MOVE takes the card from.
	SourceZone string
	// Position is the insertion index in the target zone; nil appends.
	Position *int
	// Order is the full new card order for ARRANGE.
	Order []string
	Data  map[string]any
}

func (a Action) index() int {
	if a.Position == nil {
		return -1
	}
	return *a.Position
}

// Result is the outcome of one ExecuteAction call. A failed result carries
// the rejection and a zero State.
type Result struct {
	Success   bool
	State     state.GameState
	Rejection *Rejection
}

// Error returns the rejection message, or "" on success.
func (r Result) Error() string {
	if r.Rejection == nil {
		return ""
	}
	return r.Rejection.Message
}

func accept(next state.GameState) Result {
	return Result{Success: true, State: next}
}

func reject(rejection Rejection) Result {
	return Result{Rejection: &rejection}
}
