package tetrisnt

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

// seedStream is the fixed PCG stream selector; the seed alone picks the game.
const seedStream = 0x9e3779b97f4a7c15

// Simulation is the single owner of a game in progress: the board, the
// running totals and the shape queue. Given the same Config and the same
// intents per tick, two simulations stay identical.
type Simulation struct {
	cfg   Config
	board *Board
	level uint8
	score uint64
	lines uint16
	ticks uint64
	over  bool
	pcg   *rand.PCG
	rng   *rand.Rand
	log   *zap.Logger
}

// TickResult summarizes one call to Tick.
type TickResult struct {
	LinesCleared uint8
	Score        uint32
	GameOver     bool
}

// NewSimulation starts a game with an empty board and one queued shape per
// player.
func NewSimulation(cfg Config, log *zap.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Simulation{
		cfg:   cfg,
		board: NewBoard(cfg, log),
		level: cfg.StartingLevel,
		log:   log,
	}
	s.seed(rand.NewPCG(cfg.Seed, seedStream))
	s.board.players.each(func(_ PlayerID, st *PlayerState) bool {
		st.Next = s.draw()
		return true
	})
	return s, nil
}

func (s *Simulation) seed(pcg *rand.PCG) {
	s.pcg = pcg
	s.rng = rand.New(pcg)
}

func (s *Simulation) draw() Shape {
	return Shapes[s.rng.IntN(len(Shapes))]
}

// Board exposes the grid for inspection.
func (s *Simulation) Board() *Board { return s.board }

func (s *Simulation) Config() Config { return s.cfg }
func (s *Simulation) Level() uint8   { return s.level }
func (s *Simulation) Score() uint64  { return s.score }
func (s *Simulation) Lines() uint16  { return s.lines }
func (s *Simulation) Ticks() uint64  { return s.ticks }
func (s *Simulation) Over() bool     { return s.over }

// Player returns a copy of the state of id.
func (s *Simulation) Player(id PlayerID) (PlayerState, bool) {
	st, ok := s.board.players.get(id)
	if !ok {
		return PlayerState{}, false
	}
	out := *st
	if st.Piece != nil {
		p := *st.Piece
		out.Piece = &p
	}
	return out, true
}

// Tick advances the game by one step. Players act in ascending ID order:
// a player with nothing falling spawns its queued shape, then its intent is
// applied, then gravity. Pending clears advance once after every player has
// acted. Intents for unknown players are ignored.
func (s *Simulation) Tick(intents map[PlayerID]Movement) TickResult {
	if s.over {
		return TickResult{GameOver: true}
	}
	s.ticks++
	gravity := GravityFrames(s.level)

	s.board.players.each(func(id PlayerID, st *PlayerState) bool {
		if st.Piece == nil {
			if !s.board.SpawnPiece(id, st.Next) {
				s.over = true
				s.log.Info("spawn blocked, game over",
					zap.Uint8("player", uint8(id)),
					zap.Uint64("tick", s.ticks),
					zap.Uint64("score", s.score))
				return false
			}
			st.Next = s.draw()
			st.Gravity = 0
		}

		m := intents[id]
		if m != MoveNone {
			s.board.AttemptPieceMovement(m, id)
			if m == MoveDown {
				st.Gravity = 0
			}
		}
		if st.Piece == nil {
			return true
		}
		st.Gravity++
		if st.Gravity >= gravity {
			st.Gravity = 0
			s.board.AttemptPieceMovement(MoveDown, id)
		}
		return true
	})
	if s.over {
		return TickResult{GameOver: true}
	}

	lines, points := s.board.AttemptClearLines(s.level)
	s.lines += uint16(lines)
	s.score += uint64(points)
	return TickResult{LinesCleared: lines, Score: points}
}

type simulationState struct {
	Config  Config        `json:"config"`
	Level   uint8         `json:"level"`
	Score   uint64        `json:"score"`
	Lines   uint16        `json:"lines"`
	Ticks   uint64        `json:"ticks"`
	Over    bool          `json:"over"`
	Grid    [][]Tile      `json:"grid"`
	Players []PlayerState `json:"players"`
	Pending []FullLine    `json:"pending"`
	RNG     []byte        `json:"rng"`
}

func (s *Simulation) MarshalJSON() ([]byte, error) {
	rng, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng: %w", err)
	}
	state := simulationState{
		Config:  s.cfg,
		Level:   s.level,
		Score:   s.score,
		Lines:   s.lines,
		Ticks:   s.ticks,
		Over:    s.over,
		Grid:    s.board.cells,
		Pending: s.board.pending,
		RNG:     rng,
	}
	s.board.players.each(func(_ PlayerID, st *PlayerState) bool {
		state.Players = append(state.Players, *st)
		return true
	})
	return json.Marshal(state)
}

// UnmarshalJSON restores a simulation saved by MarshalJSON. The logger of
// the receiver is kept.
func (s *Simulation) UnmarshalJSON(data []byte) error {
	var state simulationState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if err := state.Config.Validate(); err != nil {
		return fmt.Errorf("restore config: %w", err)
	}
	log := s.log
	if log == nil {
		log = zap.NewNop()
	}
	board := NewBoard(state.Config, log)
	if len(state.Grid) != board.Rows() {
		return fmt.Errorf("restore grid: %d rows, want %d", len(state.Grid), board.Rows())
	}
	for r, row := range state.Grid {
		if len(row) != int(board.width) {
			return fmt.Errorf("restore grid: row %d has %d cells, want %d", r, len(row), board.width)
		}
	}
	if len(state.Players) != int(state.Config.NumPlayers) {
		return fmt.Errorf("restore players: %d, want %d", len(state.Players), state.Config.NumPlayers)
	}
	board.cells = state.Grid
	board.pending = state.Pending
	for i, ps := range state.Players {
		st, _ := board.players.get(PlayerID(i))
		*st = ps
	}
	if err := board.checkRestored(); err != nil {
		return err
	}

	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(state.RNG); err != nil {
		return fmt.Errorf("restore rng: %w", err)
	}
	*s = Simulation{
		cfg:   state.Config,
		board: board,
		level: state.Level,
		score: state.Score,
		lines: state.Lines,
		ticks: state.Ticks,
		over:  state.Over,
		log:   log,
	}
	s.seed(pcg)
	return nil
}

// checkRestored rejects a restored board whose pieces or pending lines
// disagree with its grid.
func (b *Board) checkRestored() error {
	var err error
	b.players.each(func(id PlayerID, st *PlayerState) bool {
		if st.Piece == nil {
			return true
		}
		for _, c := range st.Piece.Positions {
			if !b.inBounds(c) {
				err = fmt.Errorf("restore piece: player %d cell (%d,%d) is off the board", id, c.Row, c.Col)
				return false
			}
			if t := b.cells[c.Row][c.Col]; !t.Active || t.Owner != id {
				err = fmt.Errorf("restore piece: player %d cell (%d,%d) is not its active tile", id, c.Row, c.Col)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	for i, l := range b.pending {
		if int(l.Row) >= b.Rows() {
			return fmt.Errorf("restore pending: row %d out of range", l.Row)
		}
		if !b.IsRowFull(l.Row) {
			return fmt.Errorf("restore pending: row %d is not full", l.Row)
		}
		if i > 0 && b.pending[i-1].Row >= l.Row {
			return fmt.Errorf("restore pending: row %d out of order", l.Row)
		}
		if _, ok := b.players.get(l.Owner); !ok {
			return fmt.Errorf("restore pending: row %d owner %d unknown", l.Row, l.Owner)
		}
	}
	return nil
}
