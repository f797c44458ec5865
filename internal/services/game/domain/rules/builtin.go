package rules

import "fmt"

// Built-in rule slugs.
const (
	SlugSkillAssessment   = "skill_assessment"
	SlugValueNavigation   = "value_navigation"
	SlugCareerPersonality = "career_personality"
)

const (
	standardDeckSize    = 52
	personalityDeckSize = 100
	builtinVersion      = "1.0"
)

// SkillAssessment sorts skill cards into strengths and growth areas, five each.
func SkillAssessment() Configuration {
	return must(New(SlugSkillAssessment, "Skill assessment", builtinVersion,
		LayoutSpec{
			Zones: []DropZoneSpec{
				{ID: "advantage", Name: "Strengths", Position: Position{Row: 0, Column: 0}, MaxCards: Int(5), ShowCounter: true},
				{ID: "disadvantage", Name: "Growth areas", Position: Position{Row: 0, Column: 1}, MaxCards: Int(5), ShowCounter: true},
			},
			DeckArea: DeckArea{Position: Position{Row: 1, Column: 0}, Label: "Skill cards"},
		},
		ConstraintSpec{
			MaxPerZone: map[string]int{"advantage": 5, "disadvantage": 5},
			TotalLimit: Int(10),
		},
		standardDeckSize,
	))
}

// ValueNavigation ranks nine value cards on a 3x3 grid, one card per rank.
func ValueNavigation() Configuration {
	zones := make([]DropZoneSpec, 0, 9)
	maxPerZone := make(map[string]int, 9)
	for rank := 1; rank <= 9; rank++ {
		id := fmt.Sprintf("rank_%d", rank)
		zones = append(zones, DropZoneSpec{
			ID:       id,
			Name:     fmt.Sprintf("Rank %d", rank),
			Position: Position{Row: (rank - 1) / 3, Column: (rank - 1) % 3},
			MaxCards: Int(1),
		})
		maxPerZone[id] = 1
	}
	return must(New(SlugValueNavigation, "Value navigation", builtinVersion,
		LayoutSpec{
			Zones:    zones,
			DeckArea: DeckArea{Position: Position{Row: 3, Column: 0}, Label: "Value cards"},
		},
		ConstraintSpec{
			MaxPerZone:      maxPerZone,
			TotalLimit:      Int(9),
			UniquePositions: true,
		},
		standardDeckSize,
	))
}

// CareerPersonality sorts occupation cards by sentiment. The neutral column
// is unbounded; like and dislike need at least one card each.
func CareerPersonality() Configuration {
	return must(New(SlugCareerPersonality, "Career personality", builtinVersion,
		LayoutSpec{
			Zones: []DropZoneSpec{
				{ID: "like", Name: "Like", Position: Position{Row: 0, Column: 0}, MaxCards: Int(20), MinCards: Int(1), ShowCounter: true},
				{ID: "neutral", Name: "Neutral", Position: Position{Row: 0, Column: 1}},
				{ID: "dislike", Name: "Dislike", Position: Position{Row: 0, Column: 2}, MaxCards: Int(20), MinCards: Int(1), ShowCounter: true},
			},
			DeckArea: DeckArea{Position: Position{Row: 1, Column: 1}, Label: "Occupation cards"},
		},
		ConstraintSpec{
			MaxPerZone: map[string]int{"like": 20, "dislike": 20},
			MinPerZone: map[string]int{"like": 1, "dislike": 1},
		},
		personalityDeckSize,
	))
}

func must(cfg Configuration, err error) Configuration {
	if err != nil {
		panic(err)
	}
	return cfg
}
