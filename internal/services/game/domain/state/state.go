package state

import (
	"errors"
	"fmt"
	"slices"

	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
)

var (
	// ErrZoneNotFound indicates a zone absent from the board.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrCardRequired indicates a blank card id.
	ErrCardRequired = errors.New("card id is required")
	// ErrCardNotInZone indicates a card missing from its expected zone.
	ErrCardNotInZone = errors.New("card is not in zone")
	// ErrArrangementMismatch indicates a new order that is not a permutation of the zone.
	ErrArrangementMismatch = errors.New("arrangement must list exactly the cards of the zone")
	// ErrRuleUnknown indicates a rule slug with no registered configuration.
	ErrRuleUnknown = errors.New("rule is not registered")
	// ErrVersionInvalid indicates a decoded version below 1.
	ErrVersionInvalid = errors.New("version must be at least 1")
)

// InitialVersion is the version of a freshly created board.
const InitialVersion = 1

// ZoneOccupancy is the ordered list of cards in one zone.
type ZoneOccupancy struct {
	zoneID string
	cards  []string
}

// ZoneID returns the zone this occupancy belongs to.
func (z ZoneOccupancy) ZoneID() string { return z.zoneID }

// Cards returns a copy of the card ids in placement order.
func (z ZoneOccupancy) Cards() []string {
	return append(make([]string, 0, len(z.cards)), z.cards...)
}

// Len returns the number of cards in the zone.
func (z ZoneOccupancy) Len() int { return len(z.cards) }

// IsPermutation reports whether order lists exactly the zone's cards.
func (z ZoneOccupancy) IsPermutation(order []string) bool {
	return samePermutation(z.cards, order)
}

// Contains reports whether cardID is in the zone.
func (z ZoneOccupancy) Contains(cardID string) bool { return slices.Contains(z.cards, cardID) }

// GameState is one snapshot of a board.
type GameState struct {
	roomID        string
	ruleID        string
	zones         map[string]ZoneOccupancy
	zoneOrder     []string
	version       int
	deckRemaining int
	turnCount     int
	currentPlayer *string
}

// CreateInitial builds the empty board for a registered rule at version 1.
func CreateInitial(roomID, ruleID string) (GameState, error) {
	cfg, ok := rules.Default().Lookup(ruleID)
	if !ok {
		return GameState{}, fmt.Errorf("%s: %w", ruleID, ErrRuleUnknown)
	}
	return NewFromZones(roomID, cfg.ID(), cfg.ZoneIDs(), cfg.DeckSize()), nil
}

// NewFromZones builds an empty board with the given zones at version 1.
// Duplicate zone ids collapse to one zone.
func NewFromZones(roomID, ruleID string, zoneIDs []string, deckRemaining int) GameState {
	zones := make(map[string]ZoneOccupancy, len(zoneIDs))
	order := make([]string, 0, len(zoneIDs))
	for _, zoneID := range zoneIDs {
		if _, exists := zones[zoneID]; exists {
			continue
		}
		zones[zoneID] = ZoneOccupancy{zoneID: zoneID}
		order = append(order, zoneID)
	}
	return GameState{
		roomID:        roomID,
		ruleID:        ruleID,
		zones:         zones,
		zoneOrder:     order,
		version:       InitialVersion,
		deckRemaining: deckRemaining,
	}
}

// RoomID returns the room the board belongs to.
func (s GameState) RoomID() string { return s.roomID }

// RuleID returns the rule slug the board was created under.
func (s GameState) RuleID() string { return s.ruleID }

// Version returns the number of accepted actions plus one.
func (s GameState) Version() int { return s.version }

// DeckRemaining returns the bookkeeping count of undealt cards.
func (s GameState) DeckRemaining() int { return s.deckRemaining }

// TurnCount returns the bookkeeping turn counter.
func (s GameState) TurnCount() int { return s.turnCount }

// CurrentPlayer returns the player whose turn it is, if any.
func (s GameState) CurrentPlayer() (string, bool) {
	if s.currentPlayer == nil {
		return "", false
	}
	return *s.currentPlayer, true
}

// ZoneIDs returns the board's zones in display order.
func (s GameState) ZoneIDs() []string { return slices.Clone(s.zoneOrder) }

// HasZone reports whether zoneID is on the board.
func (s GameState) HasZone(zoneID string) bool {
	_, ok := s.zones[zoneID]
	return ok
}

// Zone returns the occupancy of one zone.
func (s GameState) Zone(zoneID string) (ZoneOccupancy, bool) {
	zone, ok := s.zones[zoneID]
	return zone, ok
}

// Zones returns a copy of every zone's cards keyed by zone id.
func (s GameState) Zones() map[string][]string {
	out := make(map[string][]string, len(s.zones))
	for zoneID, zone := range s.zones {
		out[zoneID] = zone.Cards()
	}
	return out
}

// ZoneCardCount returns the number of cards in a zone, 0 when the zone is absent.
func (s GameState) ZoneCardCount(zoneID string) int {
	return s.zones[zoneID].Len()
}

// TotalCards returns the number of cards placed across every zone.
func (s GameState) TotalCards() int {
	total := 0
	for _, zone := range s.zones {
		total += zone.Len()
	}
	return total
}

// ZoneOf returns the first zone, in display order, holding cardID.
func (s GameState) ZoneOf(cardID string) (string, bool) {
	for _, zoneID := range s.zoneOrder {
		if s.zones[zoneID].Contains(cardID) {
			return zoneID, true
		}
	}
	return "", false
}

// PlaceCard returns a new state with cardID appended to zoneID.
func (s GameState) PlaceCard(cardID, zoneID string) (GameState, error) {
	return s.PlaceCardAt(cardID, zoneID, -1)
}

// PlaceCardAt returns a new state with cardID inserted into zoneID at index.
// A negative or out-of-range index appends.
func (s GameState) PlaceCardAt(cardID, zoneID string, index int) (GameState, error) {
	if cardID == "" {
		return GameState{}, ErrCardRequired
	}
	zone, ok := s.zones[zoneID]
	if !ok {
		return GameState{}, fmt.Errorf("%s: %w", zoneID, ErrZoneNotFound)
	}
	return s.next(map[string]ZoneOccupancy{
		zoneID: {zoneID: zoneID, cards: insertAt(zone.cards, cardID, index)},
	}), nil
}

// MoveCard returns a new state with cardID taken out of fromZone and inserted
// into toZone at index. Moving within one zone repositions the card.
func (s GameState) MoveCard(cardID, fromZone, toZone string, index int) (GameState, error) {
	if cardID == "" {
		return GameState{}, ErrCardRequired
	}
	source, ok := s.zones[fromZone]
	if !ok {
		return GameState{}, fmt.Errorf("%s: %w", fromZone, ErrZoneNotFound)
	}
	target, ok := s.zones[toZone]
	if !ok {
		return GameState{}, fmt.Errorf("%s: %w", toZone, ErrZoneNotFound)
	}
	at := slices.Index(source.cards, cardID)
	if at < 0 {
		return GameState{}, fmt.Errorf("%s in %s: %w", cardID, fromZone, ErrCardNotInZone)
	}

	remaining := slices.Delete(slices.Clone(source.cards), at, at+1)
	if fromZone == toZone {
		return s.next(map[string]ZoneOccupancy{
			fromZone: {zoneID: fromZone, cards: insertAt(remaining, cardID, index)},
		}), nil
	}
	return s.next(map[string]ZoneOccupancy{
		fromZone: {zoneID: fromZone, cards: remaining},
		toZone:   {zoneID: toZone, cards: insertAt(target.cards, cardID, index)},
	}), nil
}

// ArrangeZone returns a new state with zoneID's cards in the given order.
// The order must be a permutation of the zone's current cards.
func (s GameState) ArrangeZone(zoneID string, order []string) (GameState, error) {
	zone, ok := s.zones[zoneID]
	if !ok {
		return GameState{}, fmt.Errorf("%s: %w", zoneID, ErrZoneNotFound)
	}
	if !zone.IsPermutation(order) {
		return GameState{}, fmt.Errorf("%s: %w", zoneID, ErrArrangementMismatch)
	}
	return s.next(map[string]ZoneOccupancy{
		zoneID: {zoneID: zoneID, cards: slices.Clone(order)},
	}), nil
}

// WithTurn returns a copy with updated turn bookkeeping. The version is
// unchanged because no card moved.
func (s GameState) WithTurn(turnCount int, currentPlayer *string) GameState {
	out := s
	out.turnCount = turnCount
	out.currentPlayer = copyString(currentPlayer)
	return out
}

// next builds the successor state. Zones not in changed are shared with s.
func (s GameState) next(changed map[string]ZoneOccupancy) GameState {
	zones := make(map[string]ZoneOccupancy, len(s.zones))
	for zoneID, zone := range s.zones {
		zones[zoneID] = zone
	}
	for zoneID, zone := range changed {
		zones[zoneID] = zone
	}
	out := s
	out.zones = zones
	out.version = s.version + 1
	return out
}

func insertAt(cards []string, cardID string, index int) []string {
	out := make([]string, 0, len(cards)+1)
	if index < 0 || index > len(cards) {
		index = len(cards)
	}
	out = append(out, cards[:index]...)
	out = append(out, cardID)
	return append(out, cards[index:]...)
}

func samePermutation(current, order []string) bool {
	if len(current) != len(order) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, cardID := range current {
		counts[cardID]++
	}
	for _, cardID := range order {
		if counts[cardID] == 0 {
			return false
		}
		counts[cardID]--
	}
	return true
}

func copyString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
