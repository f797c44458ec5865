package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/careercounsel/cardroom/internal/services/game/sessions"
	"golang.org/x/net/websocket"
)

const (
	maxFramesPerSecond     = 20
	maxDecodeErrorsPerConn = 3
)

// Authenticator resolves the player behind a websocket request for roomID.
type Authenticator func(r *http.Request, roomID string) (playerID string, err error)

// Snapshotter returns the room's open session to send on join.
type Snapshotter func(ctx context.Context, roomID string) (sessions.Update, bool)

// HandlerOptions configures the websocket endpoint.
type HandlerOptions struct {
	Authenticate Authenticator
	Snapshot     Snapshotter
}

type playerKey struct{}

// Handler serves GET /ws?room=<id>.
func (h *Hub) Handler(opts HandlerOptions) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.serveConn(conn, opts)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomID := strings.TrimSpace(r.URL.Query().Get("room"))
		if roomID == "" {
			http.Error(w, "room is required", http.StatusBadRequest)
			return
		}
		if opts.Authenticate != nil {
			playerID, err := opts.Authenticate(r, roomID)
			if err != nil {
				log.Printf("broadcast: websocket unauthorized room=%q remote=%s err=%v", roomID, r.RemoteAddr, err)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), playerKey{}, playerID))
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *Hub) serveConn(conn *websocket.Conn, opts HandlerOptions) {
	defer func() {
		_ = conn.Close()
	}()

	request := conn.Request()
	ctx := request.Context()
	roomID := strings.TrimSpace(request.URL.Query().Get("room"))
	playerID, _ := ctx.Value(playerKey{}).(string)

	// Updates published from here on wait in the peer queue until
	// room.joined is written, so the client never sees them before the
	// snapshot.
	p := newPeer(conn, playerID)
	r, count := h.join(roomID, p)
	defer h.leave(r, p)
	defer p.stop()

	joined := joinedPayload{RoomID: roomID, PlayerID: playerID, Subscribers: count}
	var floor sessions.Update
	if opts.Snapshot != nil {
		if update, ok := opts.Snapshot(ctx, roomID); ok {
			joined.Session = update
			floor = update
		}
	}
	if err := p.writeFrame(Frame{Type: FrameRoomJoined, Payload: mustJSON(joined)}); err != nil {
		return
	}
	go p.writePump(floor)

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeError(p, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			// The decoder cannot resynchronize after a syntax error.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeError(p, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case FramePing:
			_ = p.writeFrame(Frame{Type: FramePong, RequestID: frame.RequestID, Payload: mustJSON(map[string]string{"room_id": roomID})})
		default:
			_ = writeError(p, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func writeError(p *peer, requestID, code, message string) error {
	return p.writeFrame(Frame{
		Type:      FrameRoomError,
		RequestID: requestID,
		Payload:   mustJSON(errorEnvelope{Error: errorBody{Code: code, Message: message}}),
	})
}
