package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrZoneIDRequired indicates a zone declared without an id.
	ErrZoneIDRequired = errors.New("zone id is required")
	// ErrZoneDuplicate indicates two zones share an id.
	ErrZoneDuplicate = errors.New("zone id is declared twice")
	// ErrConstraintZoneUnknown indicates a constraint keyed by an undeclared zone.
	ErrConstraintZoneUnknown = errors.New("constraint names an undeclared zone")
	// ErrConstraintConflict indicates contradictory limits for one zone.
	ErrConstraintConflict = errors.New("constraint conflicts with zone limits")
)

// Position places a zone on the board grid. It is presentation-only.
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// DropZoneSpec is one placement target.
type DropZoneSpec struct {
	ID          string
	Name        string
	Position    Position
	MaxCards    *int
	MinCards    *int
	ShowCounter bool
}

// DeckArea describes where the undealt deck is drawn. The engine never reads it.
type DeckArea struct {
	Position Position
	Label    string
}

// LayoutSpec is the ordered zone list of a board.
type LayoutSpec struct {
	Zones    []DropZoneSpec
	DeckArea DeckArea
}

// ConstraintSpec holds limits that span or supplement individual zones.
type ConstraintSpec struct {
	MaxPerZone map[string]int
	MinPerZone map[string]int
	// TotalLimit caps the cards placed across all zones combined.
	TotalLimit *int
	// UniquePositions allows a card in at most one zone of the board.
	UniquePositions bool
	// AllowDuplicates lets one card sit in several zones at once. It cannot
	// be combined with UniquePositions. None of the built-in rules set it.
	AllowDuplicates bool
}

// Configuration is the static declaration of one rule. The zero value is not
// usable; build one with New or a factory.
type Configuration struct {
	id          string
	name        string
	version     string
	layout      LayoutSpec
	constraints ConstraintSpec
	deckSize    int
}

// New validates the layout and constraints and returns a configuration that
// owns private copies of them.
func New(id, name, version string, layout LayoutSpec, constraints ConstraintSpec, deckSize int) (Configuration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Configuration{}, errors.New("rule id is required")
	}
	if deckSize < 0 {
		return Configuration{}, fmt.Errorf("rule %s: deck size must not be negative", id)
	}

	declared := make(map[string]DropZoneSpec, len(layout.Zones))
	for _, zone := range layout.Zones {
		if strings.TrimSpace(zone.ID) == "" {
			return Configuration{}, fmt.Errorf("rule %s: %w", id, ErrZoneIDRequired)
		}
		if _, exists := declared[zone.ID]; exists {
			return Configuration{}, fmt.Errorf("rule %s zone %s: %w", id, zone.ID, ErrZoneDuplicate)
		}
		if zone.MaxCards != nil && zone.MinCards != nil && *zone.MinCards > *zone.MaxCards {
			return Configuration{}, fmt.Errorf("rule %s zone %s: min %d above max %d: %w", id, zone.ID, *zone.MinCards, *zone.MaxCards, ErrConstraintConflict)
		}
		declared[zone.ID] = zone
	}

	for zoneID, limit := range constraints.MaxPerZone {
		zone, ok := declared[zoneID]
		if !ok {
			return Configuration{}, fmt.Errorf("rule %s max_per_zone %s: %w", id, zoneID, ErrConstraintZoneUnknown)
		}
		if zone.MaxCards != nil && *zone.MaxCards != limit {
			return Configuration{}, fmt.Errorf("rule %s zone %s: max_per_zone %d disagrees with max_cards %d: %w", id, zoneID, limit, *zone.MaxCards, ErrConstraintConflict)
		}
	}
	bounds := Configuration{layout: layout, constraints: constraints}
	for zoneID, minimum := range constraints.MinPerZone {
		if _, ok := declared[zoneID]; !ok {
			return Configuration{}, fmt.Errorf("rule %s min_per_zone %s: %w", id, zoneID, ErrConstraintZoneUnknown)
		}
		if limit, ok := bounds.ZoneLimit(zoneID); ok && minimum > limit {
			return Configuration{}, fmt.Errorf("rule %s zone %s: min_per_zone %d above limit %d: %w", id, zoneID, minimum, limit, ErrConstraintConflict)
		}
	}
	if constraints.TotalLimit != nil && *constraints.TotalLimit < 0 {
		return Configuration{}, fmt.Errorf("rule %s: total limit must not be negative", id)
	}
	if constraints.UniquePositions && constraints.AllowDuplicates {
		return Configuration{}, fmt.Errorf("rule %s: unique positions with duplicates allowed: %w", id, ErrConstraintConflict)
	}

	return Configuration{
		id:          id,
		name:        name,
		version:     version,
		layout:      copyLayout(layout),
		constraints: copyConstraints(constraints),
		deckSize:    deckSize,
	}, nil
}

// ID returns the rule slug.
func (c Configuration) ID() string { return c.id }

// Name returns the display name.
func (c Configuration) Name() string { return c.name }

// Version returns the configuration version label.
func (c Configuration) Version() string { return c.version }

// DeckSize returns the number of cards a fresh board starts with in the deck.
func (c Configuration) DeckSize() int { return c.deckSize }

// Layout returns a copy of the layout.
func (c Configuration) Layout() LayoutSpec { return copyLayout(c.layout) }

// Constraints returns a copy of the constraints.
func (c Configuration) Constraints() ConstraintSpec { return copyConstraints(c.constraints) }

// TotalLimit returns the cross-zone card cap, if any.
func (c Configuration) TotalLimit() (int, bool) {
	if c.constraints.TotalLimit == nil {
		return 0, false
	}
	return *c.constraints.TotalLimit, true
}

// UniquePositions reports whether the rule declares that a card may occupy
// only one zone of the board.
func (c Configuration) UniquePositions() bool { return c.constraints.UniquePositions }

// AllowsDuplicates reports whether a card may be placed in more than one
// zone. It is false unless the constraints opt in.
func (c Configuration) AllowsDuplicates() bool {
	return c.constraints.AllowDuplicates && !c.constraints.UniquePositions
}

// Zone looks a zone up by id. A missing zone is reported with false, not an error.
func (c Configuration) Zone(zoneID string) (DropZoneSpec, bool) {
	for _, zone := range c.layout.Zones {
		if zone.ID == zoneID {
			return copyZone(zone), true
		}
	}
	return DropZoneSpec{}, false
}

// ZoneIDs returns zone ids in declared order.
func (c Configuration) ZoneIDs() []string {
	ids := make([]string, 0, len(c.layout.Zones))
	for _, zone := range c.layout.Zones {
		ids = append(ids, zone.ID)
	}
	return ids
}

// ZoneLimit returns the effective capacity of a zone: the smaller of its own
// MaxCards and the MaxPerZone constraint. False means unbounded.
func (c Configuration) ZoneLimit(zoneID string) (int, bool) {
	limit, bounded := 0, false
	for _, zone := range c.layout.Zones {
		if zone.ID == zoneID && zone.MaxCards != nil {
			limit, bounded = *zone.MaxCards, true
			break
		}
	}
	if perZone, ok := c.constraints.MaxPerZone[zoneID]; ok {
		if !bounded || perZone < limit {
			limit = perZone
		}
		bounded = true
	}
	return limit, bounded
}

// ZoneMinimum returns the number of cards a zone needs before a session can
// complete: the larger of MinCards and the MinPerZone constraint.
func (c Configuration) ZoneMinimum(zoneID string) (int, bool) {
	minimum, bounded := 0, false
	for _, zone := range c.layout.Zones {
		if zone.ID == zoneID && zone.MinCards != nil {
			minimum, bounded = *zone.MinCards, true
			break
		}
	}
	if perZone, ok := c.constraints.MinPerZone[zoneID]; ok {
		if !bounded || perZone > minimum {
			minimum = perZone
		}
		bounded = true
	}
	return minimum, bounded
}

// Export returns the configuration as plain JSON-compatible values.
func (c Configuration) Export() map[string]any {
	zones := make([]any, 0, len(c.layout.Zones))
	for _, zone := range c.layout.Zones {
		entry := map[string]any{
			"id":           zone.ID,
			"name":         zone.Name,
			"position":     map[string]any{"row": zone.Position.Row, "column": zone.Position.Column},
			"show_counter": zone.ShowCounter,
			"max_cards":    nil,
			"min_cards":    nil,
		}
		if zone.MaxCards != nil {
			entry["max_cards"] = *zone.MaxCards
		}
		if zone.MinCards != nil {
			entry["min_cards"] = *zone.MinCards
		}
		zones = append(zones, entry)
	}

	var totalLimit any
	if c.constraints.TotalLimit != nil {
		totalLimit = *c.constraints.TotalLimit
	}
	return map[string]any{
		"id":        c.id,
		"name":      c.name,
		"version":   c.version,
		"deck_size": c.deckSize,
		"layout": map[string]any{
			"zones": zones,
			"deck_area": map[string]any{
				"position": map[string]any{"row": c.layout.DeckArea.Position.Row, "column": c.layout.DeckArea.Position.Column},
				"label":    c.layout.DeckArea.Label,
			},
		},
		"constraints": map[string]any{
			"max_per_zone":     exportCounts(c.constraints.MaxPerZone),
			"min_per_zone":     exportCounts(c.constraints.MinPerZone),
			"total_limit":      totalLimit,
			"unique_positions": c.constraints.UniquePositions,
			"allow_duplicates": c.constraints.AllowDuplicates,
		},
	}
}

func exportCounts(source map[string]int) map[string]any {
	out := make(map[string]any, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func copyLayout(layout LayoutSpec) LayoutSpec {
	zones := make([]DropZoneSpec, len(layout.Zones))
	for i, zone := range layout.Zones {
		zones[i] = copyZone(zone)
	}
	return LayoutSpec{Zones: zones, DeckArea: layout.DeckArea}
}

func copyZone(zone DropZoneSpec) DropZoneSpec {
	zone.MaxCards = copyInt(zone.MaxCards)
	zone.MinCards = copyInt(zone.MinCards)
	return zone
}

func copyConstraints(constraints ConstraintSpec) ConstraintSpec {
	return ConstraintSpec{
		MaxPerZone:      copyCounts(constraints.MaxPerZone),
		MinPerZone:      copyCounts(constraints.MinPerZone),
		TotalLimit:      copyInt(constraints.TotalLimit),
		UniquePositions: constraints.UniquePositions,
		AllowDuplicates: constraints.AllowDuplicates,
	}
}

func copyCounts(source map[string]int) map[string]int {
	out := make(map[string]int, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// Int returns a pointer to value, for optional limits.
func Int(value int) *int {
	return &value
}
