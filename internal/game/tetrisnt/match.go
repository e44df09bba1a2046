package tetrisnt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
)

// Name is the registry name of the game type.
const Name = "tetrisnt"

// Game implements game.Game.
type Game struct {
	Logger *zap.Logger
}

func (g Game) Info() game.GameInfo {
	return game.GameInfo{
		Name:       Name,
		MinPlayers: 1,
		MaxPlayers: MaxPlayers,
		Realtime:   true,
	}
}

func (g Game) NewMatch(config game.MatchConfig) (game.Match, error) {
	cfg, err := ParseConfig(len(config.PlayerIDs), config.Settings, config.Seed)
	if err != nil {
		return nil, err
	}
	log := g.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sim, err := NewSimulation(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Match{
		players: slices.Clone(config.PlayerIDs),
		sim:     sim,
		intents: make(map[PlayerID]Movement, len(config.PlayerIDs)),
		log:     log,
	}, nil
}

// Match implements game.Ticking for tetrisnt. Movements received between
// ticks are buffered, one per player; the latest wins.
type Match struct {
	players []string
	sim     *Simulation
	intents map[PlayerID]Movement
	log     *zap.Logger
}

type movePayload struct {
	Movement Movement `json:"movement"`
}

type stateView struct {
	Snapshot
	You   int      `json:"you"` // seat of the viewer, -1 for spectators
	Names []string `json:"names"`
}

// Simulation exposes the underlying simulation.
func (m *Match) Simulation() *Simulation { return m.sim }

func (m *Match) seat(playerID string) (PlayerID, bool) {
	i := slices.Index(m.players, playerID)
	if i < 0 {
		return 0, false
	}
	return PlayerID(i), true
}

func (m *Match) State(playerID string) any {
	you := -1
	if id, ok := m.seat(playerID); ok {
		you = int(id)
	}
	return stateView{
		Snapshot: m.sim.Snapshot(),
		You:      you,
		Names:    m.players,
	}
}

func (m *Match) ValidActions(playerID string) []game.Action {
	if m.sim.Over() {
		return nil
	}
	if _, ok := m.seat(playerID); !ok {
		return nil
	}
	actions := make([]game.Action, 0, len(Movements))
	for _, mv := range Movements {
		payload, _ := json.Marshal(movePayload{Movement: mv})
		actions = append(actions, game.Action{Type: "move", Payload: payload})
	}
	return actions
}

func (m *Match) ApplyAction(playerID string, action game.Action) error {
	if m.sim.Over() {
		return fmt.Errorf("game is over")
	}
	id, ok := m.seat(playerID)
	if !ok {
		return fmt.Errorf("player %s is not in this match", playerID)
	}
	if action.Type != "move" {
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
	var move movePayload
	if err := json.Unmarshal(action.Payload, &move); err != nil {
		return fmt.Errorf("invalid move payload: %w", err)
	}
	m.intents[id] = move.Movement
	return nil
}

// Tick runs one simulation step with the buffered movements.
func (m *Match) Tick() {
	res := m.sim.Tick(m.intents)
	clear(m.intents)
	if res.LinesCleared > 0 {
		m.log.Debug("lines cleared",
			zap.Uint8("lines", res.LinesCleared),
			zap.Uint32("points", res.Score),
			zap.Uint64("tick", m.sim.Ticks()))
	}
}

func (m *Match) IsOver() bool {
	return m.sim.Over()
}

// Results ranks players by the score credited to them; equal scores share
// a rank.
func (m *Match) Results() []game.PlayerResult {
	if !m.sim.Over() {
		return nil
	}
	results := make([]game.PlayerResult, 0, len(m.players))
	for i, pid := range m.players {
		st, _ := m.sim.Player(PlayerID(i))
		results = append(results, game.PlayerResult{PlayerID: pid, Score: int(st.Score)})
	}
	slices.SortStableFunc(results, func(a, b game.PlayerResult) int { return cmp.Compare(b.Score, a.Score) })
	for i := range results {
		if i > 0 && results[i].Score == results[i-1].Score {
			results[i].Rank = results[i-1].Rank
		} else {
			results[i].Rank = i + 1
		}
	}
	return results
}

type matchState struct {
	Players    []string    `json:"players"`
	Simulation *Simulation `json:"simulation"`
}

func (m *Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchState{Players: m.players, Simulation: m.sim})
}

// UnmarshalJSON replaces the match with a saved one. Buffered movements are
// dropped.
func (m *Match) UnmarshalJSON(data []byte) error {
	if m.log == nil {
		m.log = zap.NewNop()
	}
	state := matchState{Simulation: &Simulation{log: m.log}}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode match: %w", err)
	}
	if state.Simulation == nil || state.Simulation.board == nil {
		return fmt.Errorf("decode match: missing simulation")
	}
	if len(state.Players) != int(state.Simulation.cfg.NumPlayers) {
		return fmt.Errorf("decode match: %d players for %d seats", len(state.Players), state.Simulation.cfg.NumPlayers)
	}
	m.players = state.Players
	m.sim = state.Simulation
	m.intents = make(map[PlayerID]Movement, len(state.Players))
	return nil
}
