package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
)

type wireZone struct {
	ZoneID string   `json:"zone_id"`
	Cards  []string `json:"cards"`
}

type wireState struct {
	RoomID        string              `json:"room_id"`
	RuleID        string              `json:"rule_id"`
	Zones         map[string]wireZone `json:"zones"`
	Version       int                 `json:"version"`
	DeckRemaining int                 `json:"deck_remaining"`
	TurnCount     int                 `json:"turn_count"`
	CurrentPlayer *string             `json:"current_player"`
}

// MarshalJSON encodes the state in its persisted wire form.
func (s GameState) MarshalJSON() ([]byte, error) {
	zones := make(map[string]wireZone, len(s.zones))
	for zoneID, zone := range s.zones {
		zones[zoneID] = wireZone{ZoneID: zoneID, Cards: zone.Cards()}
	}
	return json.Marshal(wireState{
		RoomID:        s.roomID,
		RuleID:        s.ruleID,
		Zones:         zones,
		Version:       s.version,
		DeckRemaining: s.deckRemaining,
		TurnCount:     s.turnCount,
		CurrentPlayer: s.currentPlayer,
	})
}

// UnmarshalJSON decodes the persisted wire form.
func (s *GameState) UnmarshalJSON(data []byte) error {
	var wire wireState
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode game state: %w", err)
	}
	decoded, err := fromWire(wire)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// ToMap returns the state as plain JSON-compatible values: strings, ints,
// []any, map[string]any, and nil.
func (s GameState) ToMap() map[string]any {
	zones := make(map[string]any, len(s.zones))
	for zoneID, zone := range s.zones {
		cards := make([]any, len(zone.cards))
		for i, cardID := range zone.cards {
			cards[i] = cardID
		}
		zones[zoneID] = map[string]any{"zone_id": zoneID, "cards": cards}
	}
	var currentPlayer any
	if s.currentPlayer != nil {
		currentPlayer = *s.currentPlayer
	}
	return map[string]any{
		"room_id":        s.roomID,
		"rule_id":        s.ruleID,
		"zones":          zones,
		"version":        s.version,
		"deck_remaining": s.deckRemaining,
		"turn_count":     s.turnCount,
		"current_player": currentPlayer,
	}
}

// FromMap rebuilds a state from ToMap output or any equivalent decoded JSON.
func FromMap(values map[string]any) (GameState, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return GameState{}, fmt.Errorf("encode game state map: %w", err)
	}
	var out GameState
	if err := json.Unmarshal(data, &out); err != nil {
		return GameState{}, err
	}
	return out, nil
}

func fromWire(wire wireState) (GameState, error) {
	if wire.Version < InitialVersion {
		return GameState{}, fmt.Errorf("decode game state: version %d: %w", wire.Version, ErrVersionInvalid)
	}
	zones := make(map[string]ZoneOccupancy, len(wire.Zones))
	for key, zone := range wire.Zones {
		if key == "" {
			return GameState{}, fmt.Errorf("decode game state: zone key is blank")
		}
		if zone.ZoneID != "" && zone.ZoneID != key {
			return GameState{}, fmt.Errorf("decode game state: zone %q carries zone_id %q", key, zone.ZoneID)
		}
		cards := make([]string, len(zone.Cards))
		copy(cards, zone.Cards)
		zones[key] = ZoneOccupancy{zoneID: key, cards: cards}
	}
	return GameState{
		roomID:        wire.RoomID,
		ruleID:        wire.RuleID,
		zones:         zones,
		zoneOrder:     zoneOrder(wire.RuleID, zones),
		version:       wire.Version,
		deckRemaining: wire.DeckRemaining,
		turnCount:     wire.TurnCount,
		currentPlayer: copyString(wire.CurrentPlayer),
	}, nil
}

// zoneOrder restores display order: the rule's declared order for known
// zones, then any remaining zones sorted by id.
func zoneOrder(ruleID string, zones map[string]ZoneOccupancy) []string {
	order := make([]string, 0, len(zones))
	seen := make(map[string]bool, len(zones))
	if cfg, ok := rules.Default().Lookup(ruleID); ok {
		for _, zoneID := range cfg.ZoneIDs() {
			if _, present := zones[zoneID]; present {
				order = append(order, zoneID)
				seen[zoneID] = true
			}
		}
	}
	var rest []string
	for zoneID := range zones {
		if !seen[zoneID] {
			rest = append(rest, zoneID)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
