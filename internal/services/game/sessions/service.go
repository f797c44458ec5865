package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/platform/id"
	"github.com/careercounsel/cardroom/internal/services/game/domain/engine"
	"github.com/careercounsel/cardroom/internal/services/game/domain/rules"
	"github.com/careercounsel/cardroom/internal/services/game/domain/state"
	"github.com/careercounsel/cardroom/internal/services/game/storage"
	"github.com/careercounsel/cardroom/internal/services/game/storage/cursor"
)

const tracerName = "github.com/careercounsel/cardroom/internal/services/game/sessions"

// Session is a stored session with its decoded board and rule.
type Session struct {
	Record storage.SessionRecord
	State  state.GameState
	Rule   rules.Configuration
}

// CreateSessionInput opens a board for a room.
type CreateSessionInput struct {
	RoomID   string
	RuleSlug string
}

// ApplyActionInput applies one action to a session. ExpectedVersion of 0
// applies against whatever version is current.
type ApplyActionInput struct {
	SessionID       string
	ExpectedVersion int
	Action          engine.Action
}

// ApplyActionResult is the session after an accepted action.
type ApplyActionResult struct {
	Session Session
	Action  storage.ActionRecord
}

// ListActionsInput selects a page of a session's history.
type ListActionsInput struct {
	SessionID string
	Filter    string
	PageSize  int
	PageToken string
}

// ActionsPage is one page of history.
type ActionsPage struct {
	Actions       []storage.ActionRecord
	TotalCount    int
	NextPageToken string
}

// Service runs the session lifecycle.
type Service struct {
	store     storage.Store
	registry  *rules.Registry
	publisher Publisher
	now       func() time.Time
	newID     func() (string, error)
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where accepted changes are announced.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService builds a Service. A nil registry uses rules.Default().
func NewService(store storage.Store, registry *rules.Registry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if registry == nil {
		registry = rules.Default()
	}
	s := &Service{
		store:     store,
		registry:  registry,
		publisher: nopPublisher{},
		now:       time.Now,
		newID:     id.NewID,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Rules returns the registry sessions are created from.
func (s *Service) Rules() *rules.Registry {
	return s.registry
}

// CreateSession opens a waiting session for a room under the named rule.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (Session, error) {
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		return Session{}, apperrors.New(apperrors.CodeRoomIDRequired, "room id is required")
	}
	slug := strings.TrimSpace(in.RuleSlug)
	cfg, ok := s.registry.Lookup(slug)
	if !ok {
		return Session{}, apperrors.WithMetadata(apperrors.CodeRuleUnknown, fmt.Sprintf("unknown rule %q", slug), map[string]string{"Rule": slug})
	}

	sessionID, err := s.newID()
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	board := engine.InitializeGame(cfg, roomID)
	stateJSON, err := json.Marshal(board)
	if err != nil {
		return Session{}, fmt.Errorf("encode board: %w", err)
	}

	now := s.now().UTC()
	record := storage.SessionRecord{
		ID:        sessionID,
		RoomID:    roomID,
		RuleID:    cfg.ID(),
		Status:    storage.SessionStatusWaiting,
		StateJSON: stateJSON,
		Version:   board.Version(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, record); err != nil {
		return Session{}, err
	}

	session := Session{Record: record, State: board, Rule: cfg}
	s.publisher.Publish(ctx, roomID, updateFor(UpdateSessionCreated, session, nil))
	return session, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, apperrors.New(apperrors.CodeSessionIDRequired, "session id is required")
	}
	record, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	return s.decode(record)
}

// GetActiveSession loads the room's open session.
func (s *Service) GetActiveSession(ctx context.Context, roomID string) (Session, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return Session{}, apperrors.New(apperrors.CodeRoomIDRequired, "room id is required")
	}
	record, err := s.store.GetActiveSessionByRoom(ctx, roomID)
	if err != nil {
		return Session{}, err
	}
	return s.decode(record)
}

// ApplyAction runs in.Action through the engine and, when accepted, stores
// the next board together with its history entry. A stale ExpectedVersion
// or a concurrent writer yields CodeVersionConflict; nothing is retried.
func (s *Service) ApplyAction(ctx context.Context, in ApplyActionInput) (result ApplyActionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "sessions.ApplyAction", trace.WithAttributes(
		attribute.String("cardroom.session_id", in.SessionID),
		attribute.String("cardroom.action_type", string(in.Action.Type)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	session, err := s.GetSession(ctx, in.SessionID)
	if err != nil {
		return ApplyActionResult{}, err
	}
	span.SetAttributes(
		attribute.String("cardroom.rule_id", session.Rule.ID()),
		attribute.Int("cardroom.version", session.Record.Version),
	)

	if session.Record.Status == storage.SessionStatusCompleted {
		return ApplyActionResult{}, apperrors.New(apperrors.CodeSessionCompleted, "session is completed")
	}
	if in.ExpectedVersion != 0 && in.ExpectedVersion != session.Record.Version {
		return ApplyActionResult{}, versionConflict(in.ExpectedVersion, session.Record.Version)
	}

	outcome := engine.New(session.Rule).ExecuteAction(in.Action, session.State)
	if !outcome.Success {
		return ApplyActionResult{}, rejectionError(*outcome.Rejection)
	}

	next := outcome.State
	var actor *string
	if playerID := strings.TrimSpace(in.Action.PlayerID); playerID != "" {
		actor = &playerID
	} else if current, ok := session.State.CurrentPlayer(); ok {
		actor = &current
	}
	next = next.WithTurn(session.State.TurnCount()+1, actor)

	stateJSON, err := json.Marshal(next)
	if err != nil {
		return ApplyActionResult{}, fmt.Errorf("encode board: %w", err)
	}
	payloadJSON, err := actionPayload(in.Action)
	if err != nil {
		return ApplyActionResult{}, err
	}

	now := s.now().UTC()
	record := session.Record
	record.StateJSON = stateJSON
	record.Version = next.Version()
	record.Status = storage.SessionStatusInProgress
	record.UpdatedAt = now

	stored, err := s.store.ApplyTransition(ctx, session.Record.Version, record, storage.ActionRecord{
		SessionID:   record.ID,
		PlayerID:    strings.TrimSpace(in.Action.PlayerID),
		ActionType:  string(in.Action.Type),
		CardID:      in.Action.CardID,
		SourceZone:  in.Action.SourceZone,
		TargetZone:  in.Action.TargetZone,
		FromVersion: session.Record.Version,
		ToVersion:   record.Version,
		PayloadJSON: payloadJSON,
		CreatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return ApplyActionResult{}, versionConflict(session.Record.Version, 0)
		}
		return ApplyActionResult{}, err
	}

	updated := Session{Record: record, State: next, Rule: session.Rule}
	s.publisher.Publish(ctx, record.RoomID, updateFor(UpdateStateUpdated, updated, &ActionSummary{
		Seq:        stored.Seq,
		Type:       stored.ActionType,
		PlayerID:   stored.PlayerID,
		CardID:     stored.CardID,
		SourceZone: stored.SourceZone,
		TargetZone: stored.TargetZone,
	}))
	return ApplyActionResult{Session: updated, Action: stored}, nil
}

// CompleteSession closes a session once every zone minimum is met.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) (Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if session.Record.Status == storage.SessionStatusCompleted {
		return Session{}, apperrors.New(apperrors.CodeSessionCompleted, "session is completed")
	}

	if unmet := engine.New(session.Rule).Unsatisfied(session.State); len(unmet) > 0 {
		zones := make([]string, 0, len(unmet))
		for _, rejection := range unmet {
			zones = append(zones, fmt.Sprintf("%s>=%s", rejection.Metadata[engine.MetaZone], rejection.Metadata[engine.MetaMinimum]))
		}
		detail := strings.Join(zones, ", ")
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeSessionIncomplete,
			"session has zones below their minimum: "+detail,
			map[string]string{"Detail": detail, apperrors.MetaZone: unmet[0].Metadata[engine.MetaZone]},
		)
	}

	now := s.now().UTC()
	if err := s.store.UpdateSessionStatus(ctx, session.Record.ID, session.Record.Version, storage.SessionStatusCompleted, now); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return Session{}, versionConflict(session.Record.Version, 0)
		}
		return Session{}, err
	}
	session.Record.Status = storage.SessionStatusCompleted
	session.Record.UpdatedAt = now
	session.Record.CompletedAt = &now

	s.publisher.Publish(ctx, session.Record.RoomID, updateFor(UpdateSessionCompleted, session, nil))
	return session, nil
}

// ListActions returns a page of history. Page tokens are bound to the
// session and filter they were issued for.
func (s *Service) ListActions(ctx context.Context, in ListActionsInput) (ActionsPage, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return ActionsPage{}, apperrors.New(apperrors.CodeSessionIDRequired, "session id is required")
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return ActionsPage{}, err
	}

	var afterSeq int64
	if token := strings.TrimSpace(in.PageToken); token != "" {
		c, err := cursor.Decode(token)
		if err == nil {
			err = cursor.Validate(c, sessionID, in.Filter)
		}
		if err != nil {
			return ActionsPage{}, apperrors.Wrap(apperrors.CodeFilterInvalid, "invalid page token", err)
		}
		afterSeq = c.Seq
	}

	page, err := s.store.ListActions(ctx, sessionID, storage.ListActionsOptions{
		Filter:   in.Filter,
		PageSize: in.PageSize,
		AfterSeq: afterSeq,
	})
	if err != nil {
		return ActionsPage{}, err
	}

	out := ActionsPage{Actions: page.Actions, TotalCount: page.TotalCount}
	if page.NextAfterSeq > 0 {
		token, err := cursor.Encode(cursor.New(page.NextAfterSeq, sessionID, in.Filter))
		if err != nil {
			return ActionsPage{}, err
		}
		out.NextPageToken = token
	}
	return out, nil
}

// VerifyHistory checks the integrity chain of a session's history.
func (s *Service) VerifyHistory(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return apperrors.New(apperrors.CodeSessionIDRequired, "session id is required")
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	return s.store.VerifyActionChain(ctx, sessionID)
}

func (s *Service) decode(record storage.SessionRecord) (Session, error) {
	cfg, ok := s.registry.Lookup(record.RuleID)
	if !ok {
		return Session{}, apperrors.WithMetadata(apperrors.CodeRuleUnknown, fmt.Sprintf("unknown rule %q", record.RuleID), map[string]string{"Rule": record.RuleID})
	}
	var board state.GameState
	if err := json.Unmarshal(record.StateJSON, &board); err != nil {
		return Session{}, fmt.Errorf("decode board for session %s: %w", record.ID, err)
	}
	return Session{Record: record, State: board, Rule: cfg}, nil
}

func updateFor(kind string, session Session, action *ActionSummary) Update {
	return Update{
		Type:      kind,
		SessionID: session.Record.ID,
		RoomID:    session.Record.RoomID,
		Version:   session.Record.Version,
		Status:    session.Record.Status,
		Action:    action,
		State:     session.State.ToMap(),
	}
}

// rejectionError carries the engine's code as the Reason so clients can
// localize the specific cause.
func rejectionError(rejection engine.Rejection) error {
	return apperrors.Rejected(rejection.Code, rejection.Message, rejection.Metadata)
}

func versionConflict(expected, current int) error {
	message := fmt.Sprintf("session is not at version %d", expected)
	if current > 0 {
		message = fmt.Sprintf("session is at version %d, not %d", current, expected)
	}
	return apperrors.WithMetadata(apperrors.CodeVersionConflict, message, map[string]string{"Expected": strconv.Itoa(expected)})
}

type actionPayloadJSON struct {
	Position *int           `json:"position,omitempty"`
	Order    []string       `json:"order,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func actionPayload(action engine.Action) ([]byte, error) {
	if action.Position == nil && len(action.Order) == 0 && len(action.Data) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(actionPayloadJSON{Position: action.Position, Order: action.Order, Data: action.Data})
	if err != nil {
		return nil, fmt.Errorf("encode action payload: %w", err)
	}
	return payload, nil
}
