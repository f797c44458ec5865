package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/platform/requestctx"
	"github.com/careercounsel/cardroom/internal/services/game/api/view"
	"github.com/careercounsel/cardroom/internal/services/game/auth"
	"github.com/careercounsel/cardroom/internal/services/game/domain/engine"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
)

const maxBodyBytes = 1 << 20

func (h *handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	locale := requestctx.LocaleFromContext(r.Context())
	registry := h.service.Rules()
	out := make([]map[string]any, 0)
	for _, slug := range registry.Slugs() {
		cfg, ok := registry.Lookup(slug)
		if !ok {
			continue
		}
		out = append(out, view.Rule(slug, cfg, locale))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	cfg, ok := h.service.Rules().Lookup(slug)
	if !ok {
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeRuleUnknown, "unknown rule", map[string]string{"Rule": slug}))
		return
	}
	writeJSON(w, http.StatusOK, view.Rule(slug, cfg, requestctx.LocaleFromContext(r.Context())))
}

type createSessionRequest struct {
	RoomID string `json:"room_id"`
	Rule   string `json:"rule"`
}

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, claims, err := h.authorize(r, strings.TrimSpace(req.RoomID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireCounselor(h.grants, claims); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.service.CreateSession(ctx, sessions.CreateSessionInput{RoomID: req.RoomID, RuleSlug: req.Rule})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view.Session(session))
}

func (h *handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view.Session(session.Session))
}

func (h *handler) handleGetRoomSession(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	ctx, _, err := h.authorize(r, roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.service.GetActiveSession(ctx, roomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Session(session))
}

type actionRequest struct {
	ExpectedVersion int            `json:"expected_version"`
	Type            string         `json:"type"`
	PlayerID        string         `json:"player_id"`
	CardID          string         `json:"card_id"`
	SourceZone      string         `json:"source_zone"`
	TargetZone      string         `json:"target_zone"`
	Position        *int           `json:"position"`
	Order           []string       `json:"order"`
	Data            map[string]any `json:"data"`
}

func (h *handler) handleApplyAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeActionInvalid, "action type is required", map[string]string{"Field": "type"}))
		return
	}
	if req.ExpectedVersion < 0 {
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeActionInvalid, "expected_version must not be negative", map[string]string{"Field": "expected_version"}))
		return
	}

	session, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	playerID := req.PlayerID
	if h.grants != nil {
		playerID = requestctx.PlayerIDFromContext(session.ctx)
	}

	actionType, _ := engine.ParseActionType(req.Type)
	result, err := h.service.ApplyAction(session.ctx, sessions.ApplyActionInput{
		SessionID:       session.Record.ID,
		ExpectedVersion: req.ExpectedVersion,
		Action: engine.Action{
			Type:       actionType,
			PlayerID:   playerID,
			CardID:     req.CardID,
			SourceZone: req.SourceZone,
			TargetZone: req.TargetZone,
			Position:   req.Position,
			Order:      req.Order,
			Data:       req.Data,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": view.Session(result.Session),
		"action":  view.Action(result.Action),
	})
}

func (h *handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	if err := requireCounselor(h.grants, session.claims); err != nil {
		writeError(w, r, err)
		return
	}
	completed, err := h.service.CompleteSession(session.ctx, session.Record.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Session(completed))
}

func (h *handler) handleListActions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, apperrors.WithMetadata(apperrors.CodeActionInvalid, "page_size must be a non-negative integer", map[string]string{"Field": "page_size"}))
			return
		}
		pageSize = parsed
	}

	page, err := h.service.ListActions(session.ctx, sessions.ListActionsInput{
		SessionID: session.Record.ID,
		Filter:    query.Get("filter"),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	actions := make([]map[string]any, 0, len(page.Actions))
	for _, action := range page.Actions {
		actions = append(actions, view.Action(action))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actions":         actions,
		"total_count":     page.TotalCount,
		"next_page_token": page.NextPageToken,
	})
}

func (h *handler) handleVerifyHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	if err := h.service.VerifyHistory(session.ctx, session.Record.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": session.Record.ID, "verified": true})
}

// authorizedSession is a loaded session whose room grant checked out.
type authorizedSession struct {
	sessions.Session
	ctx    context.Context
	claims auth.RoomGrantClaims
}

// loadAuthorized checks the grant, loads the {id} session and then scopes
// the grant to its room. Unauthenticated callers never reach the lookup.
func (h *handler) loadAuthorized(w http.ResponseWriter, r *http.Request) (authorizedSession, bool) {
	claims, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, err)
		return authorizedSession{}, false
	}
	session, err := h.service.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return authorizedSession{}, false
	}
	ctx, claims, err := h.scope(r.Context(), claims, session.Record.RoomID)
	if err != nil {
		writeError(w, r, err)
		return authorizedSession{}, false
	}
	return authorizedSession{Session: session, ctx: ctx, claims: claims}, true
}

func requireCounselor(grants *auth.VerifierConfig, claims auth.RoomGrantClaims) error {
	if grants == nil {
		return nil
	}
	return claims.RequireRole(auth.RoleCounselor)
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.WithMetadata(apperrors.CodeActionInvalid, "request body is required", map[string]string{"Field": "body"})
		}
		return apperrors.WrapWithMetadata(apperrors.CodeActionInvalid, "request body is invalid", map[string]string{"Field": "body"}, err)
	}
	return nil
}
