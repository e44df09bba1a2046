package session

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Player represents a connected player.
type Player struct {
	ID   string
	Send chan []byte // outbound messages
	// Binary is set for connections that asked for msgpack frames.
	Binary bool
}

// Session is one game session with connected players.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Status   Status
	HostID   string
	Players  map[string]*Player
	// Settings is the game-specific JSON given at creation.
	Settings json.RawMessage
	// MatchID identifies the current match once started.
	MatchID string
	Match   game.Match
	order   []string
	ticking bool
	game    game.Game
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, g game.Game) *Session {
	return &Session{
		Code:     code,
		GameType: gameType,
		Status:   StatusWaiting,
		Players:  make(map[string]*Player),
		game:     g,
	}
}

// AddPlayer adds a player to the session. Returns error if full or already playing.
func (s *Session) AddPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not accepting players")
	}
	info := s.game.Info()
	if len(s.Players) >= info.MaxPlayers {
		return fmt.Errorf("session is full")
	}
	if _, exists := s.Players[playerID]; exists {
		return fmt.Errorf("player %s already in session", playerID)
	}
	s.addPlayerLocked(playerID)
	return nil
}

func (s *Session) addPlayerLocked(playerID string) {
	s.Players[playerID] = &Player{
		ID:   playerID,
		Send: make(chan []byte, 64),
	}
	s.order = append(s.order, playerID)
	if s.HostID == "" {
		s.HostID = playerID
	}
}

// RemovePlayer removes a player from the session.
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Players[playerID]; ok {
		close(p.Send)
		delete(s.Players, playerID)
		s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == playerID })
	}
}

// ConnectPlayer replaces the Send channel for a reconnecting player.
func (s *Session) ConnectPlayer(playerID string, send chan []byte, binary bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	p.Send = send
	p.Binary = binary
	return true
}

// PlayerIDs returns the player IDs in join order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Start transitions the session from waiting to playing. Seats follow join
// order and the match seed is taken from the new match ID.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not in waiting state")
	}
	info := s.game.Info()
	if len(s.Players) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.Players))
	}

	id := uuid.New()
	match, err := s.game.NewMatch(game.MatchConfig{
		PlayerIDs: slices.Clone(s.order),
		Settings:  s.Settings,
		Seed:      binary.BigEndian.Uint64(id[:8]),
	})
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	s.Match = match
	s.MatchID = id.String()
	s.Status = StatusPlaying
	return nil
}

// Tick advances a realtime match by one step. ticked is false when the
// session has nothing to advance; over reports that this step ended the
// match.
func (s *Session) Tick() (ticked, over bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Match.(game.Ticking)
	if !ok || s.Status != StatusPlaying {
		return false, false
	}
	m.Tick()
	if m.IsOver() {
		s.Status = StatusFinished
		return true, true
	}
	return true, false
}

// Realtime reports whether the session's game advances on a clock.
func (s *Session) Realtime() bool {
	return s.game.Info().Realtime
}

// Finish marks the session as finished.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFinished
}

// Connections returns a copy of every player in join order.
func (s *Session) Connections() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.Players[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// GetPlayer returns a player's send channel, or nil if not found.
func (s *Session) GetPlayer(playerID string) *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Players[playerID]
}

// Info returns session info for the API.
type Info struct {
	Code     string   `json:"code"`
	GameType string   `json:"gameType"`
	Status   Status   `json:"status"`
	Players  []string `json:"players"`
	HostID   string   `json:"hostId"`
	MatchID  string   `json:"matchId,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	return Info{
		Code:     s.Code,
		GameType: s.GameType,
		Status:   s.Status,
		Players:  append([]string{}, s.order...),
		HostID:   s.HostID,
		MatchID:  s.MatchID,
	}
}

// Lock/RLock/Unlock/RUnlock expose the mutex for the server's websocket handler.
func (s *Session) Lock()    { s.mu.Lock() }
func (s *Session) Unlock()  { s.mu.Unlock() }
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
