package httpapi

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/careercounsel/cardroom/internal/services/game/auth"
	"github.com/careercounsel/cardroom/internal/services/game/broadcast"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
	storagesqlite "github.com/careercounsel/cardroom/internal/services/game/storage/sqlite"
)

type testAPI struct {
	server *httptest.Server
	signer auth.SignerConfig
}

func newTestAPI(t *testing.T, withGrants bool) *testAPI {
	t.Helper()
	store, err := storagesqlite.Open(filepath.Join(t.TempDir(), "game.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hub := broadcast.NewHub()
	counter := 0
	svc, err := sessions.NewService(store, nil,
		sessions.WithPublisher(hub),
		sessions.WithIDGenerator(func() (string, error) {
			counter++
			return fmt.Sprintf("sess-%d", counter), nil
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	api := &testAPI{}
	opts := Options{Service: svc, Hub: hub}
	if withGrants {
		public, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		opts.Grants = &auth.VerifierConfig{Issuer: "cardroom-test", Audience: "game", Key: public}
		api.signer = auth.SignerConfig{Issuer: "cardroom-test", Audience: "game", Key: private, TTL: time.Hour}
	}
	handler, err := NewHandler(opts)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	api.server = httptest.NewServer(handler)
	t.Cleanup(api.server.Close)
	return api
}

func (a *testAPI) grant(t *testing.T, roomID, playerID string, role auth.Role) string {
	t.Helper()
	token, err := auth.IssueRoomGrant(a.signer, roomID, playerID, role)
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	return token
}

type call struct {
	method string
	path   string
	body   any
	token  string
	lang   string
}

func (a *testAPI) do(t *testing.T, c call) (int, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if raw, ok := c.body.(string); ok {
			body.WriteString(raw)
		} else if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(c.method, a.server.URL+c.path, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if resp.ContentLength != 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s response: %v", c.method, c.path, err)
		}
	}
	return resp.StatusCode, out
}

func errorOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	return envelope
}

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Options{}); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestUp(t *testing.T) {
	api := newTestAPI(t, false)
	status, _ := api.do(t, call{method: http.MethodGet, path: "/up"})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestListRulesLocalized(t *testing.T) {
	api := newTestAPI(t, false)

	status, body := api.do(t, call{method: http.MethodGet, path: "/v1/rules", lang: "zh-TW"})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	list, _ := body["rules"].([]any)
	if len(list) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(list))
	}
	names := map[string]string{}
	for _, raw := range list {
		rule := raw.(map[string]any)
		names[rule["slug"].(string)] = rule["display_name"].(string)
	}
	if names["career_personality"] != "職業性格" {
		t.Fatalf("expected localized name, got %q", names["career_personality"])
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/rules/value_navigation"})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	zones := body["layout"].(map[string]any)["zones"].([]any)
	third := zones[2].(map[string]any)
	if third["id"] != "rank_3" || third["label"] != "Rank 3" {
		t.Fatalf("unexpected zone %v", third)
	}
}

func TestUnknownRuleIsBadRequest(t *testing.T) {
	api := newTestAPI(t, false)

	status, body := api.do(t, call{method: http.MethodGet, path: "/v1/rules/nope"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if errorOf(t, body)["code"] != "RULE_UNKNOWN" {
		t.Fatalf("unexpected error %v", body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"room_id": "room-1", "rule": "nope"}})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
	if msg := errorOf(t, body)["message"]; msg != `Unknown rule "nope"` {
		t.Fatalf("message = %v", msg)
	}
}

func TestSessionLifecycle(t *testing.T) {
	api := newTestAPI(t, false)

	status, body := api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"room_id": "room-1", "rule": "career_personality"}})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d body %v", status, body)
	}
	if body["id"] != "sess-1" || body["status"] != "waiting" {
		t.Fatalf("unexpected session %v", body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"room_id": "room-1", "rule": "career_personality"}})
	if status != http.StatusConflict || errorOf(t, body)["code"] != "ACTIVE_SESSION_EXISTS" {
		t.Fatalf("expected active session conflict, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{
		"expected_version": 1, "type": "place_card", "player_id": "visitor-1", "card_id": "c1", "target_zone": "like",
	}})
	if status != http.StatusOK {
		t.Fatalf("apply status = %d body %v", status, body)
	}
	session := body["session"].(map[string]any)
	if session["version"] != float64(2) || session["status"] != "in_progress" {
		t.Fatalf("unexpected session %v", session)
	}
	if action := body["action"].(map[string]any); action["seq"] != float64(1) || action["player_id"] != "visitor-1" {
		t.Fatalf("unexpected action %v", action)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/rooms/room-1/session"})
	if status != http.StatusOK || body["id"] != "sess-1" {
		t.Fatalf("room session = %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/complete"})
	if status != http.StatusConflict || errorOf(t, body)["code"] != "SESSION_INCOMPLETE" {
		t.Fatalf("expected incomplete, got %d %v", status, body)
	}

	status, _ = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{
		"type": "PLACE_CARD", "card_id": "c2", "target_zone": "dislike",
	}})
	if status != http.StatusOK {
		t.Fatalf("second apply status = %d", status)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1/actions?page_size=1"})
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if body["total_count"] != float64(2) || len(body["actions"].([]any)) != 1 || body["next_page_token"] == "" {
		t.Fatalf("unexpected page %v", body)
	}
	token := body["next_page_token"].(string)
	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1/actions?page_size=1&page_token=" + token})
	if status != http.StatusOK {
		t.Fatalf("second page status = %d", status)
	}
	if actions := body["actions"].([]any); len(actions) != 1 || actions[0].(map[string]any)["card_id"] != "c2" {
		t.Fatalf("unexpected second page %v", body)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1/actions?filter=" + "target_zone%20%3D%20%22like%22"})
	if status != http.StatusOK || body["total_count"] != float64(1) {
		t.Fatalf("filtered list = %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1/verify"})
	if status != http.StatusOK || body["verified"] != true {
		t.Fatalf("verify = %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/complete"})
	if status != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("complete = %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/rooms/room-1/session"})
	if status != http.StatusNotFound {
		t.Fatalf("expected no open session after completion, got %d %v", status, body)
	}
}

func TestApplyActionErrors(t *testing.T) {
	api := newTestAPI(t, false)
	if status, _ := api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"room_id": "room-1", "rule": "career_personality"}}); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}

	status, body := api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{
		"type": "PLACE_CARD", "card_id": "c1", "target_zone": "nowhere",
	}})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body %v", status, body)
	}
	envelope := errorOf(t, body)
	if envelope["code"] != "ACTION_REJECTED" || envelope["reason"] != "ACTION_ZONE_NOT_FOUND" {
		t.Fatalf("unexpected error %v", envelope)
	}
	if envelope["message"] != `Zone "nowhere" does not exist` {
		t.Fatalf("message = %v", envelope["message"])
	}

	if status, _ := api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{
		"expected_version": 1, "type": "PLACE_CARD", "card_id": "c1", "target_zone": "like",
	}}); status != http.StatusOK {
		t.Fatalf("apply status = %d", status)
	}
	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{
		"expected_version": 1, "type": "PLACE_CARD", "card_id": "c2", "target_zone": "like",
	}})
	if status != http.StatusConflict || errorOf(t, body)["code"] != "VERSION_CONFLICT" {
		t.Fatalf("expected version conflict, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: `{"type":`})
	if status != http.StatusBadRequest || errorOf(t, body)["code"] != "ACTION_INVALID" {
		t.Fatalf("expected invalid body, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", body: map[string]any{"card_id": "c3"}})
	if status != http.StatusBadRequest || errorOf(t, body)["message"] != "The action request is invalid: type" {
		t.Fatalf("expected missing type, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/missing/actions", body: map[string]any{"type": "PLACE_CARD"}})
	if status != http.StatusNotFound {
		t.Fatalf("expected not found, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1/actions?page_token=garbage"})
	if status != http.StatusBadRequest || errorOf(t, body)["code"] != "FILTER_INVALID" {
		t.Fatalf("expected invalid token, got %d %v", status, body)
	}
}

func TestErrorsLocalized(t *testing.T) {
	api := newTestAPI(t, false)

	status, body := api.do(t, call{method: http.MethodGet, path: "/v1/sessions/missing", lang: "zh-TW"})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	envelope := errorOf(t, body)
	if envelope["code"] != "NOT_FOUND" {
		t.Fatalf("code = %v", envelope["code"])
	}
	if msg, _ := envelope["message"].(string); msg == "" || msg == "The requested resource was not found" {
		t.Fatalf("expected zh-TW message, got %q", msg)
	}
}

func TestRoomGrants(t *testing.T) {
	api := newTestAPI(t, true)
	counselor := api.grant(t, "room-1", "counselor-1", auth.RoleCounselor)
	visitor := api.grant(t, "room-1", "visitor-1", auth.RoleVisitor)
	outsider := api.grant(t, "room-2", "visitor-2", auth.RoleVisitor)
	create := map[string]string{"room_id": "room-1", "rule": "career_personality"}

	status, body := api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: create})
	if status != http.StatusUnauthorized || errorOf(t, body)["code"] != "ROOM_GRANT_REQUIRED" {
		t.Fatalf("expected grant required, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: create, token: visitor})
	if status != http.StatusForbidden || errorOf(t, body)["code"] != "ROOM_ROLE_FORBIDDEN" {
		t.Fatalf("expected role forbidden, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: create, token: counselor})
	if status != http.StatusCreated {
		t.Fatalf("counselor create = %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodGet, path: "/v1/sessions/sess-1", token: outsider})
	if status != http.StatusForbidden || errorOf(t, body)["code"] != "ROOM_GRANT_MISMATCH" {
		t.Fatalf("expected mismatch, got %d %v", status, body)
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/actions", token: visitor, body: map[string]any{
		"type": "PLACE_CARD", "player_id": "someone-else", "card_id": "c1", "target_zone": "like",
	}})
	if status != http.StatusOK {
		t.Fatalf("visitor apply = %d %v", status, body)
	}
	if action := body["action"].(map[string]any); action["player_id"] != "visitor-1" {
		t.Fatalf("expected grant player, got %v", action["player_id"])
	}

	status, body = api.do(t, call{method: http.MethodPost, path: "/v1/sessions/sess-1/complete", token: visitor})
	if status != http.StatusForbidden || errorOf(t, body)["code"] != "ROOM_ROLE_FORBIDDEN" {
		t.Fatalf("expected visitor completion to be forbidden, got %d %v", status, body)
	}
}

func TestGrantCheckedBeforeSessionLookup(t *testing.T) {
	api := newTestAPI(t, true)
	counselor := api.grant(t, "room-1", "counselor-1", auth.RoleCounselor)
	create := map[string]string{"room_id": "room-1", "rule": "skill_assessment"}
	if status, body := api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: create, token: counselor}); status != http.StatusCreated {
		t.Fatalf("create = %d %v", status, body)
	}

	for _, path := range []string{"/v1/sessions/sess-1", "/v1/sessions/no-such-session"} {
		status, body := api.do(t, call{method: http.MethodGet, path: path})
		if status != http.StatusUnauthorized || errorOf(t, body)["code"] != "ROOM_GRANT_REQUIRED" {
			t.Fatalf("GET %s without grant = %d %v", path, status, body)
		}
		status, body = api.do(t, call{method: http.MethodGet, path: path, token: "not-a-jwt"})
		if status != http.StatusUnauthorized || errorOf(t, body)["code"] != "ROOM_GRANT_INVALID" {
			t.Fatalf("GET %s with bad grant = %d %v", path, status, body)
		}
	}

	status, body := api.do(t, call{method: http.MethodGet, path: "/v1/sessions/no-such-session", token: counselor})
	if status != http.StatusNotFound {
		t.Fatalf("authenticated lookup of unknown session = %d %v", status, body)
	}
}

func TestWebsocketJoinCarriesOpenSession(t *testing.T) {
	api := newTestAPI(t, false)
	if status, _ := api.do(t, call{method: http.MethodPost, path: "/v1/sessions", body: map[string]string{"room_id": "room-1", "rule": "skill_assessment"}}); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}

	wsURL := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/ws?room=room-1"
	conn, err := websocket.Dial(wsURL, "", api.server.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	var frame broadcast.Frame
	if err := json.NewDecoder(conn).Decode(&frame); err != nil {
		t.Fatalf("decode joined frame: %v", err)
	}
	var joined struct {
		Session sessions.Update `json:"session"`
	}
	if err := json.Unmarshal(frame.Payload, &joined); err != nil {
		t.Fatalf("decode joined payload: %v", err)
	}
	if frame.Type != broadcast.FrameRoomJoined || joined.Session.SessionID != "sess-1" {
		t.Fatalf("unexpected joined frame %s %+v", frame.Type, joined.Session)
	}
}
