package game

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/platform/requestctx"
	"github.com/careercounsel/cardroom/internal/services/game/api/grpc/metadata"
	"github.com/careercounsel/cardroom/internal/services/game/api/view"
	"github.com/careercounsel/cardroom/internal/services/game/auth"
	"github.com/careercounsel/cardroom/internal/services/game/domain/engine"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
)

// Service implements GameServiceServer on top of sessions.Service.
type Service struct {
	sessions *sessions.Service
	grants   *auth.VerifierConfig
}

var _ GameServiceServer = (*Service)(nil)

// Option configures the gRPC game service.
type Option func(*Service)

// WithRoomGrants requires a room grant in the authorization metadata of
// every session call. Nil leaves grant checks disabled.
func WithRoomGrants(grants *auth.VerifierConfig) Option {
	return func(s *Service) {
		s.grants = grants
	}
}

// NewService builds the gRPC game service.
func NewService(svc *sessions.Service, opts ...Option) *Service {
	s := &Service{sessions: svc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens a session. Request: {room_id, rule}.
func (s *Service) CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	roomID := strings.TrimSpace(stringField(in, "room_id"))
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	ctx, err = s.scope(ctx, claims, roomID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	if err := s.requireCounselor(claims); err != nil {
		return nil, handleError(ctx, err)
	}
	session, err := s.sessions.CreateSession(ctx, sessions.CreateSessionInput{
		RoomID:   roomID,
		RuleSlug: stringField(in, "rule"),
	})
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(view.Session(session))
}

// GetSession loads a session. Request: {session_id}.
func (s *Service) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, session, _, err := s.loadAuthorized(ctx, stringField(in, "session_id"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(view.Session(session))
}

// ApplyAction applies one action. Request: {session_id, expected_version,
// type, player_id, card_id, source_zone, target_zone, position, order, data}.
func (s *Service) ApplyAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	expected, err := intField(in, "expected_version")
	if err != nil {
		return nil, handleError(ctx, err)
	}
	action, err := actionFromStruct(in)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	ctx, session, claims, err := s.loadAuthorized(ctx, stringField(in, "session_id"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	if s.grants != nil {
		action.PlayerID = claims.PlayerID
	}
	result, err := s.sessions.ApplyAction(ctx, sessions.ApplyActionInput{
		SessionID:       session.Record.ID,
		ExpectedVersion: expected,
		Action:          action,
	})
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(map[string]any{
		"session": view.Session(result.Session),
		"action":  view.Action(result.Action),
	})
}

// CompleteSession closes a session. Request: {session_id}.
func (s *Service) CompleteSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, session, claims, err := s.loadAuthorized(ctx, stringField(in, "session_id"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	if err := s.requireCounselor(claims); err != nil {
		return nil, handleError(ctx, err)
	}
	completed, err := s.sessions.CompleteSession(ctx, session.Record.ID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(view.Session(completed))
}

// ListActions pages history. Request: {session_id, filter, page_size,
// page_token}.
func (s *Service) ListActions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pageSize, err := intField(in, "page_size")
	if err != nil {
		return nil, handleError(ctx, err)
	}
	ctx, session, _, err := s.loadAuthorized(ctx, stringField(in, "session_id"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	page, err := s.sessions.ListActions(ctx, sessions.ListActionsInput{
		SessionID: session.Record.ID,
		Filter:    stringField(in, "filter"),
		PageSize:  pageSize,
		PageToken: stringField(in, "page_token"),
	})
	if err != nil {
		return nil, handleError(ctx, err)
	}
	actions := make([]any, 0, len(page.Actions))
	for _, action := range page.Actions {
		actions = append(actions, view.Action(action))
	}
	return toStruct(map[string]any{
		"actions":         actions,
		"total_count":     page.TotalCount,
		"next_page_token": page.NextPageToken,
	})
}

// ListRules lists registered rules with labels in the caller's locale.
func (s *Service) ListRules(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	locale := metadata.LocaleFromContext(ctx)
	registry := s.sessions.Rules()
	out := make([]any, 0)
	for _, slug := range registry.Slugs() {
		cfg, ok := registry.Lookup(slug)
		if !ok {
			continue
		}
		out = append(out, view.Rule(slug, cfg, locale))
	}
	return toStruct(map[string]any{"rules": out})
}

// authenticate verifies the grant in the authorization metadata. It returns
// zero claims when grants are disabled.
func (s *Service) authenticate(ctx context.Context) (auth.RoomGrantClaims, error) {
	if s.grants == nil {
		return auth.RoomGrantClaims{}, nil
	}
	token, _ := auth.BearerToken(metadata.AuthorizationFromContext(ctx))
	return auth.ParseRoomGrant(token, *s.grants)
}

// scope checks claims against roomID and puts the grant's player on ctx.
func (s *Service) scope(ctx context.Context, claims auth.RoomGrantClaims, roomID string) (context.Context, error) {
	if s.grants == nil {
		return ctx, nil
	}
	if err := claims.CheckRoom(roomID); err != nil {
		return ctx, err
	}
	return requestctx.WithPlayerID(ctx, claims.PlayerID), nil
}

// loadAuthorized authenticates before loading the session, then scopes the
// grant to the session's room.
func (s *Service) loadAuthorized(ctx context.Context, sessionID string) (context.Context, sessions.Session, auth.RoomGrantClaims, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return ctx, sessions.Session{}, auth.RoomGrantClaims{}, err
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return ctx, sessions.Session{}, auth.RoomGrantClaims{}, err
	}
	ctx, err = s.scope(ctx, claims, session.Record.RoomID)
	if err != nil {
		return ctx, sessions.Session{}, auth.RoomGrantClaims{}, err
	}
	return ctx, session, claims, nil
}

func (s *Service) requireCounselor(claims auth.RoomGrantClaims) error {
	if s.grants == nil {
		return nil
	}
	return claims.RequireRole(auth.RoleCounselor)
}

func handleError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, metadata.LocaleFromContext(ctx))
}

func toStruct(values map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func intField(in *structpb.Struct, name string) (int, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	if _, isNumber := value.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, invalidField(name)
	}
	number := value.GetNumberValue()
	if number != math.Trunc(number) || number < 0 || number > math.MaxInt32 {
		return 0, invalidField(name)
	}
	return int(number), nil
}

func actionFromStruct(in *structpb.Struct) (engine.Action, error) {
	rawType := stringField(in, "type")
	if rawType == "" {
		return engine.Action{}, invalidField("type")
	}
	actionType, _ := engine.ParseActionType(rawType)
	action := engine.Action{
		Type:       actionType,
		PlayerID:   stringField(in, "player_id"),
		CardID:     stringField(in, "card_id"),
		SourceZone: stringField(in, "source_zone"),
		TargetZone: stringField(in, "target_zone"),
	}
	if _, ok := in.GetFields()["position"]; ok {
		position, err := intField(in, "position")
		if err != nil {
			return engine.Action{}, err
		}
		action.Position = &position
	}
	if order := in.GetFields()["order"].GetListValue(); order != nil {
		for _, value := range order.GetValues() {
			cardID, ok := value.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return engine.Action{}, invalidField("order")
			}
			action.Order = append(action.Order, cardID.StringValue)
		}
	}
	if data := in.GetFields()["data"].GetStructValue(); data != nil {
		action.Data = data.AsMap()
	}
	return action, nil
}

func invalidField(name string) error {
	return apperrors.WithMetadata(apperrors.CodeActionInvalid, fmt.Sprintf("invalid field %s", name), map[string]string{"Field": name})
}
