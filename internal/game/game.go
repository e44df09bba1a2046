package game

import "encoding/json"

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
	// Realtime games advance on a clock; their matches implement Ticking.
	Realtime bool `json:"realtime"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	// PlayerIDs in join order; the index is the player's seat.
	PlayerIDs []string
	// Settings is game-specific JSON supplied when the session was created.
	Settings json.RawMessage
	Seed     uint64
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
}

// Match is one in-progress game session.
type Match interface {
	State(playerID string) any
	ValidActions(playerID string) []Action
	// ApplyAction records a player's action. Realtime matches only queue it
	// for the next tick.
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
	// MarshalJSON / UnmarshalJSON support for persistence
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(data []byte) error
}

// Ticking is implemented by matches of realtime games. Tick advances the
// match by one step; the caller serializes it with every other call.
type Ticking interface {
	Match
	Tick()
}
