package broadcast

import (
	"encoding/json"
	"log"
)

// Frame types.
const (
	FrameRoomJoined       = "room.joined"
	FrameStateUpdated     = "state.updated"
	FrameSessionCreated   = "session.created"
	FrameSessionCompleted = "session.completed"
	FrameRoomError        = "room.error"
	FramePing             = "room.ping"
	FramePong             = "room.pong"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type joinedPayload struct {
	RoomID      string `json:"room_id"`
	PlayerID    string `json:"player_id,omitempty"`
	Subscribers int    `json:"subscribers"`
	Session     any    `json:"session,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("broadcast: marshal frame payload: %v", err)
		return nil
	}
	return b
}
