package engine

import (
	"fmt"
	"strconv"

	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
	"github.com/careercounsel/cardroom/internal/services/game/domain/state"
)

// Engine validates and applies actions for one rule configuration.
type Engine struct {
	cfg rules.Configuration
}

// New returns an engine bound to cfg.
func New(cfg rules.Configuration) Engine {
	return Engine{cfg: cfg}
}

// Configuration returns the rule the engine enforces.
func (e Engine) Configuration() rules.Configuration {
	return e.cfg
}

// InitializeGame returns the empty board for the engine's rule.
func (e Engine) InitializeGame(roomID string) state.GameState {
	return InitializeGame(e.cfg, roomID)
}

// InitializeGame returns an empty board with every zone of cfg's layout, at
// version 1, with the deck seeded from the rule.
func InitializeGame(cfg rules.Configuration, roomID string) state.GameState {
	return state.NewFromZones(roomID, cfg.ID(), cfg.ZoneIDs(), cfg.DeckSize())
}

// ValidateAction reports whether action may be applied to st.
func (e Engine) ValidateAction(action Action, st state.GameState) bool {
	return e.Check(action, st) == nil
}

// Check returns the reason action cannot be applied to st, or nil.
func (e Engine) Check(action Action, st state.GameState) *Rejection {
	if st.RuleID() != e.cfg.ID() {
		return &Rejection{
			Code:    RejectionRuleMismatch,
			Message: fmt.Sprintf("board rule %q does not match configuration %q", st.RuleID(), e.cfg.ID()),
		}
	}

	switch action.Type {
	case ActionPlaceCard:
		return e.checkPlace(action, st)
	case ActionMove:
		return e.checkMove(action, st)
	case ActionArrange:
		return e.checkArrange(action, st)
	case ActionFlip, ActionAnnotate:
		return &Rejection{
			Code:     RejectionUnsupported,
			Message:  fmt.Sprintf("action %s is not supported", action.Type),
			Metadata: map[string]string{MetaType: string(action.Type)},
		}
	default:
		return &Rejection{
			Code:     RejectionTypeUnknown,
			Message:  fmt.Sprintf("unknown action type %q", action.Type),
			Metadata: map[string]string{MetaType: string(action.Type)},
		}
	}
}

func (e Engine) checkPlace(action Action, st state.GameState) *Rejection {
	if action.CardID == "" {
		return &Rejection{Code: RejectionCardRequired, Message: "card id is required"}
	}
	if action.TargetZone == "" {
		return &Rejection{Code: RejectionZoneRequired, Message: "target zone is required"}
	}
	zone, ok := st.Zone(action.TargetZone)
	if !ok {
		return zoneRejection(RejectionZoneNotFound, action.TargetZone, "zone %s does not exist", action.TargetZone)
	}
	if limit, bounded := e.cfg.ZoneLimit(action.TargetZone); bounded && zone.Len() >= limit {
		return zoneFull(action.TargetZone, limit)
	}
	if zone.Contains(action.CardID) {
		return cardInZone(RejectionDuplicateCard, action.CardID, action.TargetZone, "card %s is already in zone %s")
	}
	if total, bounded := e.cfg.TotalLimit(); bounded && st.TotalCards() >= total {
		return &Rejection{
			Code:     RejectionTotalLimitReached,
			Message:  fmt.Sprintf("board already holds %d cards", total),
			Metadata: map[string]string{MetaLimit: strconv.Itoa(total)},
		}
	}
	if !e.cfg.AllowsDuplicates() {
		if placed, found := st.ZoneOf(action.CardID); found {
			return cardInZone(RejectionCardAlreadyPlaced, action.CardID, placed, "card %s is already placed in zone %s")
		}
	}
	return nil
}

func (e Engine) checkMove(action Action, st state.GameState) *Rejection {
	if action.CardID == "" {
		return &Rejection{Code: RejectionCardRequired, Message: "card id is required"}
	}
	if action.SourceZone == "" || action.TargetZone == "" {
		return &Rejection{Code: RejectionZoneRequired, Message: "source and target zones are required"}
	}
	source, ok := st.Zone(action.SourceZone)
	if !ok {
		return zoneRejection(RejectionZoneNotFound, action.SourceZone, "zone %s does not exist", action.SourceZone)
	}
	target, ok := st.Zone(action.TargetZone)
	if !ok {
		return zoneRejection(RejectionZoneNotFound, action.TargetZone, "zone %s does not exist", action.TargetZone)
	}
	if !source.Contains(action.CardID) {
		return cardInZone(RejectionCardNotInZone, action.CardID, action.SourceZone, "card %s is not in zone %s")
	}
	if action.SourceZone == action.TargetZone {
		return nil
	}
	if limit, bounded := e.cfg.ZoneLimit(action.TargetZone); bounded && target.Len() >= limit {
		return zoneFull(action.TargetZone, limit)
	}
	if target.Contains(action.CardID) {
		return cardInZone(RejectionDuplicateCard, action.CardID, action.TargetZone, "card %s is already in zone %s")
	}
	return nil
}

func (e Engine) checkArrange(action Action, st state.GameState) *Rejection {
	if action.TargetZone == "" {
		return &Rejection{Code: RejectionZoneRequired, Message: "target zone is required"}
	}
	zone, ok := st.Zone(action.TargetZone)
	if !ok {
		return zoneRejection(RejectionZoneNotFound, action.TargetZone, "zone %s does not exist", action.TargetZone)
	}
	if !zone.IsPermutation(action.Order) {
		return zoneRejection(RejectionArrangementInvalid, action.TargetZone, "order must list exactly the cards of zone %s", action.TargetZone)
	}
	return nil
}

// ExecuteAction validates action and, when valid, returns the next state.
// Failures are reported in the result; nothing panics past this call.
func (e Engine) ExecuteAction(action Action, st state.GameState) (result Result) {
	if rejection := e.Check(action, st); rejection != nil {
		return reject(*rejection)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = reject(Rejection{Code: RejectionTransitionFailed, Message: fmt.Sprint(recovered)})
		}
	}()

	next, err := e.apply(action, st)
	if err != nil {
		return reject(Rejection{Code: RejectionTransitionFailed, Message: err.Error()})
	}
	return accept(next)
}

func (e Engine) apply(action Action, st state.GameState) (state.GameState, error) {
	switch action.Type {
	case ActionPlaceCard:
		return st.PlaceCardAt(action.CardID, action.TargetZone, action.index())
	case ActionMove:
		return st.MoveCard(action.CardID, action.SourceZone, action.TargetZone, action.index())
	case ActionArrange:
		return st.ArrangeZone(action.TargetZone, action.Order)
	default:
		return state.GameState{}, fmt.Errorf("no transition for action %s", action.Type)
	}
}

// ExecuteActionWithConfig applies action under cfg instead of the engine's own
// configuration and returns a *RejectionError on failure. The receiver is
// not modified.
func (e Engine) ExecuteActionWithConfig(action Action, st state.GameState, cfg rules.Configuration) (state.GameState, error) {
	result := New(cfg).ExecuteAction(action, st)
	if !result.Success {
		return state.GameState{}, &RejectionError{Rejection: *result.Rejection}
	}
	return result.State, nil
}

// Unsatisfied lists the zones still below their minimum card count. An empty
// result means the board may be completed.
func (e Engine) Unsatisfied(st state.GameState) []Rejection {
	var out []Rejection
	for _, zoneID := range e.cfg.ZoneIDs() {
		minimum, bounded := e.cfg.ZoneMinimum(zoneID)
		if !bounded || st.ZoneCardCount(zoneID) >= minimum {
			continue
		}
		out = append(out, Rejection{
			Code:    RejectionZoneBelowMinimum,
			Message: fmt.Sprintf("zone %s needs at least %d cards", zoneID, minimum),
			Metadata: map[string]string{
				MetaZone:    zoneID,
				MetaMinimum: strconv.Itoa(minimum),
			},
		})
	}
	return out
}
