package engine

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
	"github.com/careercounsel/cardroom/internal/services/game/domain/state"
)

func place(cardID, zoneID string) Action {
	return Action{Type: ActionPlaceCard, PlayerID: "player-1", CardID: cardID, TargetZone: zoneID}
}

func mustExecute(t *testing.T, eng Engine, st state.GameState, action Action) state.GameState {
	t.Helper()
	result := eng.ExecuteAction(action, st)
	if !result.Success {
		t.Fatalf("execute %+v: %s", action, result.Error())
	}
	return result.State
}

func TestHappyPathPlacement(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st, err := state.CreateInitial("room-1", rules.SlugSkillAssessment)
	if err != nil {
		t.Fatalf("create initial: %v", err)
	}

	result := eng.ExecuteAction(place("card-1", "advantage"), st)
	if !result.Success {
		t.Fatalf("expected success, got %s", result.Error())
	}
	if result.State.Version() != 2 {
		t.Fatalf("version = %d, want 2", result.State.Version())
	}
	zone, _ := result.State.Zone("advantage")
	if cards := zone.Cards(); !reflect.DeepEqual(cards, []string{"card-1"}) {
		t.Fatalf("advantage = %v", cards)
	}
}

func TestRejectionLeavesStateUntouched(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st, _ := state.CreateInitial("room-1", rules.SlugSkillAssessment)

	result := eng.ExecuteAction(place("card-1", "nonexistent"), st)
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Rejection.Code != RejectionZoneNotFound {
		t.Fatalf("code = %s", result.Rejection.Code)
	}
	if result.Error() == "" {
		t.Fatal("expected message")
	}
	if st.Version() != 1 || st.ZoneCardCount("advantage") != 0 {
		t.Fatalf("state changed: version %d", st.Version())
	}
}

func TestExecuteActionIsImmutable(t *testing.T) {
	eng := New(rules.CareerPersonality())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("nurse", "like"))
	before := st.ToMap()

	next := mustExecute(t, eng, st, place("chef", "like"))
	if next.Version() != st.Version()+1 {
		t.Fatalf("version = %d, want %d", next.Version(), st.Version()+1)
	}
	if !reflect.DeepEqual(st.ToMap(), before) {
		t.Fatalf("receiver changed:\n got %v\nwant %v", st.ToMap(), before)
	}
}

func TestSkillAssessmentCapacity(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := eng.InitializeGame("room-1")
	for i := 1; i <= 5; i++ {
		result := eng.ExecuteAction(place(fmt.Sprintf("card-%d", i), "advantage"), st)
		if !result.Success {
			t.Fatalf("placement %d failed: %s", i, result.Error())
		}
		st = result.State
	}
	if st.Version() != 6 {
		t.Fatalf("version = %d, want 6", st.Version())
	}

	sixth := place("card-6", "advantage")
	if eng.ValidateAction(sixth, st) {
		t.Fatal("expected sixth placement to fail validation")
	}
	result := eng.ExecuteAction(sixth, st)
	if result.Success || result.Rejection.Code != RejectionZoneFull {
		t.Fatalf("result = %+v", result)
	}
	if result.Rejection.Metadata[MetaLimit] != "5" || result.Rejection.Metadata[MetaZone] != "advantage" {
		t.Fatalf("metadata = %v", result.Rejection.Metadata)
	}
}

func TestTotalLimitIsConsulted(t *testing.T) {
	cfg, err := rules.New("tight", "Tight", "1",
		rules.LayoutSpec{Zones: []rules.DropZoneSpec{{ID: "a", MaxCards: rules.Int(5)}, {ID: "b", MaxCards: rules.Int(5)}}},
		rules.ConstraintSpec{TotalLimit: rules.Int(3)},
		10,
	)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	eng := New(cfg)
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("c1", "a"))
	st = mustExecute(t, eng, st, place("c2", "a"))
	st = mustExecute(t, eng, st, place("c3", "b"))

	result := eng.ExecuteAction(place("c4", "b"), st)
	if result.Success || result.Rejection.Code != RejectionTotalLimitReached {
		t.Fatalf("result = %+v", result)
	}
}

func TestSkillAssessmentEleventhCardRejected(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := eng.InitializeGame("room-1")
	for i := 0; i < 10; i++ {
		zoneID := "advantage"
		if i >= 5 {
			zoneID = "disadvantage"
		}
		st = mustExecute(t, eng, st, place(fmt.Sprintf("card-%d", i), zoneID))
	}
	if eng.ValidateAction(place("card-10", "advantage"), st) || eng.ValidateAction(place("card-10", "disadvantage"), st) {
		t.Fatal("expected eleventh placement to fail")
	}
}

func TestValueNavigationUniqueness(t *testing.T) {
	eng := New(rules.ValueNavigation())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("honesty", "rank_1"))

	same := eng.ExecuteAction(place("honesty", "rank_1"), st)
	if same.Success {
		t.Fatal("expected same-zone placement to fail")
	}

	cross := eng.ExecuteAction(place("honesty", "rank_2"), st)
	if cross.Success || cross.Rejection.Code != RejectionCardAlreadyPlaced {
		t.Fatalf("cross-zone result = %+v", cross)
	}
	if cross.Rejection.Metadata[MetaZone] != "rank_1" {
		t.Fatalf("expected rejection to name occupied zone, got %v", cross.Rejection.Metadata)
	}
}

func TestCrossZoneDuplicateRejectedForEveryBuiltin(t *testing.T) {
	tests := []struct {
		cfg         rules.Configuration
		first, next string
		sameCode    string
	}{
		{rules.SkillAssessment(), "advantage", "disadvantage", RejectionDuplicateCard},
		{rules.CareerPersonality(), "like", "dislike", RejectionDuplicateCard},
		// rank zones hold one card, so capacity is checked first
		{rules.ValueNavigation(), "rank_1", "rank_2", RejectionZoneFull},
	}
	for _, tc := range tests {
		t.Run(tc.cfg.ID(), func(t *testing.T) {
			eng := New(tc.cfg)
			st := mustExecute(t, eng, eng.InitializeGame("room-1"), place("card-1", tc.first))

			same := eng.ExecuteAction(place("card-1", tc.first), st)
			if same.Success || same.Rejection.Code != tc.sameCode {
				t.Fatalf("same-zone result = %+v", same)
			}
			cross := eng.ExecuteAction(place("card-1", tc.next), st)
			if cross.Success || cross.Rejection.Code != RejectionCardAlreadyPlaced {
				t.Fatalf("cross-zone result = %+v", cross)
			}
			if cross.Rejection.Metadata[MetaZone] != tc.first {
				t.Fatalf("expected rejection to name %s, got %v", tc.first, cross.Rejection.Metadata)
			}
		})
	}
}

func TestAllowDuplicatesOptIn(t *testing.T) {
	cfg, err := rules.New("duplicates", "Duplicates", "1.0",
		rules.LayoutSpec{Zones: []rules.DropZoneSpec{{ID: "left"}, {ID: "right"}}},
		rules.ConstraintSpec{AllowDuplicates: true}, 10)
	if err != nil {
		t.Fatalf("new configuration: %v", err)
	}
	eng := New(cfg)
	st := mustExecute(t, eng, eng.InitializeGame("room-1"), place("card-1", "left"))
	st = mustExecute(t, eng, st, place("card-1", "right"))
	if st.ZoneCardCount("left") != 1 || st.ZoneCardCount("right") != 1 {
		t.Fatalf("expected card in both zones, got %v", st.Zones())
	}
	if result := eng.ExecuteAction(place("card-1", "right"), st); result.Success || result.Rejection.Code != RejectionDuplicateCard {
		t.Fatalf("same-zone duplicate = %+v", result)
	}
}

func TestPlaceCardRequiredFields(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := eng.InitializeGame("room-1")
	tests := []struct {
		action Action
		code   string
	}{
		{place("", "advantage"), RejectionCardRequired},
		{place("card-1", ""), RejectionZoneRequired},
	}
	for _, tc := range tests {
		rejection := eng.Check(tc.action, st)
		if rejection == nil || rejection.Code != tc.code {
			t.Fatalf("check %+v = %+v, want %s", tc.action, rejection, tc.code)
		}
	}
}

func TestPlaceCardAtPosition(t *testing.T) {
	eng := New(rules.CareerPersonality())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("b", "neutral"))
	first := 0
	action := place("a", "neutral")
	action.Position = &first
	st = mustExecute(t, eng, st, action)

	zone, _ := st.Zone("neutral")
	if cards := zone.Cards(); !reflect.DeepEqual(cards, []string{"a", "b"}) {
		t.Fatalf("neutral = %v", cards)
	}
}

func TestUnsupportedActionsFailClosed(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := eng.InitializeGame("room-1")
	for _, actionType := range []ActionType{ActionFlip, ActionAnnotate} {
		result := eng.ExecuteAction(Action{Type: actionType, CardID: "card-1"}, st)
		if result.Success || result.Rejection.Code != RejectionUnsupported {
			t.Fatalf("%s result = %+v", actionType, result)
		}
	}
	result := eng.ExecuteAction(Action{Type: "SHUFFLE"}, st)
	if result.Success || result.Rejection.Code != RejectionTypeUnknown {
		t.Fatalf("unknown type result = %+v", result)
	}
}

func TestMoveAction(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("card-1", "advantage"))

	move := Action{Type: ActionMove, CardID: "card-1", SourceZone: "advantage", TargetZone: "disadvantage"}
	next := mustExecute(t, eng, st, move)
	if zoneID, _ := next.ZoneOf("card-1"); zoneID != "disadvantage" {
		t.Fatalf("card-1 in %q", zoneID)
	}
	if next.TotalCards() != 1 {
		t.Fatalf("total = %d", next.TotalCards())
	}

	missing := move
	missing.CardID = "card-9"
	if rejection := eng.Check(missing, st); rejection == nil || rejection.Code != RejectionCardNotInZone {
		t.Fatalf("missing card rejection = %+v", rejection)
	}
	noSource := move
	noSource.SourceZone = ""
	if rejection := eng.Check(noSource, st); rejection == nil || rejection.Code != RejectionZoneRequired {
		t.Fatalf("missing source rejection = %+v", rejection)
	}
}

func TestMoveIntoFullZoneRejected(t *testing.T) {
	eng := New(rules.ValueNavigation())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("honesty", "rank_1"))
	st = mustExecute(t, eng, st, place("family", "rank_2"))

	move := Action{Type: ActionMove, CardID: "honesty", SourceZone: "rank_1", TargetZone: "rank_2"}
	if rejection := eng.Check(move, st); rejection == nil || rejection.Code != RejectionZoneFull {
		t.Fatalf("rejection = %+v", rejection)
	}
	move.TargetZone = "rank_3"
	if !eng.ValidateAction(move, st) {
		t.Fatal("expected move into empty rank to pass")
	}
}

func TestArrangeAction(t *testing.T) {
	eng := New(rules.CareerPersonality())
	st := eng.InitializeGame("room-1")
	st = mustExecute(t, eng, st, place("nurse", "like"))
	st = mustExecute(t, eng, st, place("chef", "like"))

	arrange := Action{Type: ActionArrange, TargetZone: "like", Order: []string{"chef", "nurse"}}
	next := mustExecute(t, eng, st, arrange)
	zone, _ := next.Zone("like")
	if cards := zone.Cards(); !reflect.DeepEqual(cards, []string{"chef", "nurse"}) {
		t.Fatalf("like = %v", cards)
	}

	arrange.Order = []string{"chef"}
	if rejection := eng.Check(arrange, st); rejection == nil || rejection.Code != RejectionArrangementInvalid {
		t.Fatalf("rejection = %+v", rejection)
	}
}

func TestRuleMismatchRejected(t *testing.T) {
	st, _ := state.CreateInitial("room-1", rules.SlugValueNavigation)
	result := New(rules.SkillAssessment()).ExecuteAction(place("card-1", "rank_1"), st)
	if result.Success || result.Rejection.Code != RejectionRuleMismatch {
		t.Fatalf("result = %+v", result)
	}
}

func TestInitializationPathsAgree(t *testing.T) {
	for _, slug := range rules.Default().Slugs() {
		cfg, _ := rules.Default().Lookup(slug)
		fromEngine := New(cfg).InitializeGame("room-1")
		fromState, err := state.CreateInitial("room-1", slug)
		if err != nil {
			t.Fatalf("create initial %s: %v", slug, err)
		}
		if !reflect.DeepEqual(fromEngine.ToMap(), fromState.ToMap()) {
			t.Fatalf("%s: engine %v != state %v", slug, fromEngine.ToMap(), fromState.ToMap())
		}
		if !reflect.DeepEqual(fromEngine.ZoneIDs(), cfg.ZoneIDs()) {
			t.Fatalf("%s zones = %v", slug, fromEngine.ZoneIDs())
		}
	}
}

func TestInitializeGameDeckSeed(t *testing.T) {
	if got := InitializeGame(rules.CareerPersonality(), "r").DeckRemaining(); got != 100 {
		t.Fatalf("career_personality deck = %d", got)
	}
	if got := InitializeGame(rules.ValueNavigation(), "r").DeckRemaining(); got != 52 {
		t.Fatalf("value_navigation deck = %d", got)
	}
}

func TestExecuteActionWithConfig(t *testing.T) {
	eng := New(rules.SkillAssessment())
	st := New(rules.CareerPersonality()).InitializeGame("room-1")

	next, err := eng.ExecuteActionWithConfig(place("nurse", "like"), st, rules.CareerPersonality())
	if err != nil {
		t.Fatalf("execute with config: %v", err)
	}
	if next.Version() != 2 {
		t.Fatalf("version = %d", next.Version())
	}
	if eng.Configuration().ID() != rules.SlugSkillAssessment {
		t.Fatal("receiver configuration changed")
	}

	_, err = eng.ExecuteActionWithConfig(place("nurse", "nowhere"), st, rules.CareerPersonality())
	var rejectionErr *RejectionError
	if !errors.As(err, &rejectionErr) || rejectionErr.Rejection.Code != RejectionZoneNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestUnsatisfiedMinimums(t *testing.T) {
	eng := New(rules.CareerPersonality())
	st := eng.InitializeGame("room-1")
	if got := eng.Unsatisfied(st); len(got) != 2 {
		t.Fatalf("unsatisfied = %+v", got)
	}
	st = mustExecute(t, eng, st, place("nurse", "like"))
	got := eng.Unsatisfied(st)
	if len(got) != 1 || got[0].Metadata[MetaZone] != "dislike" || got[0].Code != RejectionZoneBelowMinimum {
		t.Fatalf("unsatisfied = %+v", got)
	}
	st = mustExecute(t, eng, st, place("pilot", "dislike"))
	if got := eng.Unsatisfied(st); len(got) != 0 {
		t.Fatalf("unsatisfied = %+v", got)
	}
	if got := New(rules.SkillAssessment()).Unsatisfied(New(rules.SkillAssessment()).InitializeGame("r")); len(got) != 0 {
		t.Fatalf("skill assessment has no minimums, got %+v", got)
	}
}

func TestParseActionType(t *testing.T) {
	if got, ok := ParseActionType(" place_card "); !ok || got != ActionPlaceCard {
		t.Fatalf("parse = %q, %v", got, ok)
	}
	if _, ok := ParseActionType("shuffle"); ok {
		t.Fatal("expected unknown type")
	}
}
