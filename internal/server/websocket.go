package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/session"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// binaryMessage is the msgpack envelope sent to clients that connect with
// ?encoding=msgpack. Field names match the JSON envelope.
type binaryMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

type statePayload struct {
	State        any                 `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  session.Info        `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var binary bool
	switch enc := r.URL.Query().Get("encoding"); enc {
	case "", "json":
	case "msgpack":
		binary = true
	default:
		http.Error(w, "unsupported encoding: "+enc, http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.String("code", code), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, binary, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || join.PlayerID == "" {
		sendWSError(ctx, conn, binary, "invalid join payload")
		return
	}

	playerID := join.PlayerID
	send := make(chan []byte, 64)

	// Try to reconnect existing player, or add new one
	if !sess.ConnectPlayer(playerID, send, binary) {
		if err := sess.AddPlayer(playerID); err != nil {
			sendWSError(ctx, conn, binary, err.Error())
			return
		}
		sess.ConnectPlayer(playerID, send, binary)
		if err := s.manager.SaveSessionPlayers(sess); err != nil {
			s.log.Error("save roster", zap.String("code", code), zap.Error(err))
		}
	}
	log := s.log.With(zap.String("code", code), zap.String("player", playerID))
	log.Debug("player connected", zap.Bool("msgpack", binary))

	// Notify all players about the roster change
	s.broadcastState(sess)

	frame := websocket.MessageText
	if binary {
		frame = websocket.MessageBinary
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-send:
				if !ok {
					return
				}
				if err := conn.Write(ctx, frame, msg); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(send, binary, "error", errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(sess, playerID, send, binary, msg)
	}

	// Player disconnected; keep the seat for a reconnect.
	log.Debug("player disconnected")
}

func (s *Server) handleMessage(sess *session.Session, playerID string, send chan []byte, binary bool, msg WSMessage) {
	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil {
			sendWSMsg(send, binary, "error", errorPayload{Message: "invalid action payload"})
			return
		}
		sess.Lock()
		if sess.Match == nil {
			sess.Unlock()
			sendWSMsg(send, binary, "error", errorPayload{Message: "game not started"})
			return
		}
		if err := sess.Match.ApplyAction(playerID, ap.Action); err != nil {
			sess.Unlock()
			sendWSMsg(send, binary, "error", errorPayload{Message: err.Error()})
			return
		}
		// Realtime actions wait for the next tick, which broadcasts.
		if _, realtime := sess.Match.(game.Ticking); realtime {
			sess.Unlock()
			return
		}
		over := sess.Match.IsOver()
		if over {
			sess.Status = session.StatusFinished
		}
		sess.Unlock()

		if over {
			if err := s.manager.Complete(sess); err != nil {
				s.log.Error("complete match", zap.String("code", sess.Code), zap.Error(err))
			}
		} else if err := s.manager.SaveMatchState(sess); err != nil {
			s.log.Error("save match state", zap.String("code", sess.Code), zap.Error(err))
		}
		s.broadcastState(sess)

	case "start":
		if sess.Info().HostID != playerID {
			sendWSMsg(send, binary, "error", errorPayload{Message: "only the host can start"})
			return
		}
		if err := s.start(sess); err != nil {
			sendWSMsg(send, binary, "error", errorPayload{Message: err.Error()})
		}

	default:
		sendWSMsg(send, binary, "error", errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

// broadcastState sends every player its own view of the session.
func (s *Server) broadcastState(sess *session.Session) {
	sess.RLock()
	info := sess.InfoLocked()
	match := sess.Match
	status := sess.Status
	payloads := make(map[string]statePayload, len(info.Players))
	for _, pid := range info.Players {
		sp := statePayload{SessionInfo: info}
		if match != nil && status != session.StatusWaiting {
			sp.State = match.State(pid)
			sp.ValidActions = match.ValidActions(pid)
			if match.IsOver() {
				sp.Results = match.Results()
			}
		}
		payloads[pid] = sp
	}
	sess.RUnlock()

	for _, p := range sess.Connections() {
		sp, ok := payloads[p.ID]
		if !ok {
			continue
		}
		sendWSMsg(p.Send, p.Binary, "state", sp)
	}
}

// encodeMessage builds one frame in the encoding the client asked for.
func encodeMessage(binary bool, msgType string, payload any) ([]byte, error) {
	if binary {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(binaryMessage{Type: msgType, Payload: payload}); err != nil {
			return nil, fmt.Errorf("msgpack encode %s: %w", msgType, err)
		}
		return buf.Bytes(), nil
	}
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("json encode %s: %w", msgType, err)
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: p})
}

func sendWSMsg(send chan []byte, binary bool, msgType string, payload any) {
	msg, err := encodeMessage(binary, msgType, payload)
	if err != nil {
		return
	}
	select {
	case send <- msg:
	default:
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, binary bool, message string) {
	msg, err := encodeMessage(binary, "error", errorPayload{Message: message})
	if err != nil {
		return
	}
	frame := websocket.MessageText
	if binary {
		frame = websocket.MessageBinary
	}
	conn.Write(ctx, frame, msg)
}
