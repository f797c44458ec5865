package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/careercounsel/cardroom/internal/platform/i18n"
	"github.com/careercounsel/cardroom/internal/platform/requestctx"
	"github.com/careercounsel/cardroom/internal/services/game/auth"
	"github.com/careercounsel/cardroom/internal/services/game/broadcast"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
)

var requestIDCounter atomic.Uint64

// Options configures the handler.
type Options struct {
	Service *sessions.Service
	// Hub, when set, is mounted at /ws.
	Hub *broadcast.Hub
	// Grants enables room grant checks. Nil disables them.
	Grants *auth.VerifierConfig
}

type handler struct {
	service *sessions.Service
	grants  *auth.VerifierConfig
}

// NewHandler builds the API handler.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Service == nil {
		return nil, errors.New("sessions service is required")
	}
	h := &handler{service: opts.Service, grants: opts.Grants}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", h.handleUp)
	mux.HandleFunc("GET /v1/rules", h.handleListRules)
	mux.HandleFunc("GET /v1/rules/{slug}", h.handleGetRule)
	mux.HandleFunc("POST /v1/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("GET /v1/rooms/{room}/session", h.handleGetRoomSession)
	mux.HandleFunc("POST /v1/sessions/{id}/actions", h.handleApplyAction)
	mux.HandleFunc("GET /v1/sessions/{id}/actions", h.handleListActions)
	mux.HandleFunc("POST /v1/sessions/{id}/complete", h.handleCompleteSession)
	mux.HandleFunc("GET /v1/sessions/{id}/verify", h.handleVerifyHistory)
	if opts.Hub != nil {
		mux.Handle("/ws", opts.Hub.Handler(broadcast.HandlerOptions{
			Authenticate: h.authenticateSocket,
			Snapshot:     h.snapshot,
		}))
	}

	return chain(mux, requestID, recoverPanic, withLocale), nil
}

type middleware func(http.Handler) http.Handler

func chain(handler http.Handler, middleware ...middleware) http.Handler {
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = fmt.Sprintf("game-%d-%d", time.Now().UnixNano(), requestIDCounter.Add(1))
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), id)))
	})
}

func withLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := i18n.ResolveRequest(r)
		w.Header().Set("Content-Language", locale)
		next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), locale)))
	})
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Printf(
					"panic recovered method=%s path=%s request_id=%s panic=%v stack=%s",
					r.Method,
					r.URL.Path,
					requestctx.RequestIDFromContext(r.Context()),
					recovered,
					strings.TrimSpace(string(debug.Stack())),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) handleUp(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// authorize validates the request's bearer grant for roomID and returns the
// request context carrying the grant's player. It is a no-op when grants
// are disabled.
func (h *handler) authorize(r *http.Request, roomID string) (context.Context, auth.RoomGrantClaims, error) {
	claims, err := h.authenticate(r)
	if err != nil {
		return nil, auth.RoomGrantClaims{}, err
	}
	return h.scope(r.Context(), claims, roomID)
}

// authenticate verifies the bearer grant without binding it to a room.
func (h *handler) authenticate(r *http.Request) (auth.RoomGrantClaims, error) {
	if h.grants == nil {
		return auth.RoomGrantClaims{}, nil
	}
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	return auth.ParseRoomGrant(token, *h.grants)
}

// scope checks claims against roomID and puts the grant's player on ctx.
func (h *handler) scope(ctx context.Context, claims auth.RoomGrantClaims, roomID string) (context.Context, auth.RoomGrantClaims, error) {
	if h.grants == nil {
		return ctx, claims, nil
	}
	if err := claims.CheckRoom(roomID); err != nil {
		return nil, auth.RoomGrantClaims{}, err
	}
	return requestctx.WithPlayerID(ctx, claims.PlayerID), claims, nil
}

func (h *handler) authenticateSocket(r *http.Request, roomID string) (string, error) {
	if h.grants == nil {
		return "", nil
	}
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		// Browsers cannot set headers on websocket upgrades.
		token = r.URL.Query().Get("grant")
	}
	claims, err := auth.ValidateRoomGrant(token, auth.RoomGrantExpectation{RoomID: roomID}, *h.grants)
	if err != nil {
		return "", err
	}
	return claims.PlayerID, nil
}

func (h *handler) snapshot(ctx context.Context, roomID string) (sessions.Update, bool) {
	session, err := h.service.GetActiveSession(ctx, roomID)
	if err != nil {
		return sessions.Update{}, false
	}
	return sessions.Update{
		Type:      sessions.UpdateStateUpdated,
		SessionID: session.Record.ID,
		RoomID:    session.Record.RoomID,
		Version:   session.Record.Version,
		Status:    session.Record.Status,
		State:     session.State.ToMap(),
	}, true
}
