package tetrisnt

// Snapshot is the read-only view of a simulation handed to presentation.
// Grid includes the HeightBuffer hidden rows at the top.
type Snapshot struct {
	Tick    uint64       `json:"tick"`
	Width   uint8        `json:"width"`
	Height  uint8        `json:"height"`
	Buffer  uint8        `json:"buffer"`
	Grid    [][]Tile     `json:"grid"`
	Players []PlayerView `json:"players"`
	Pending []FullLine   `json:"pending"`
	Score   uint64       `json:"score"`
	Lines   uint16       `json:"lines"`
	Level   uint8        `json:"level"`
	Over    bool         `json:"over"`
}

// PlayerView is one player's part of a Snapshot.
type PlayerView struct {
	ID    PlayerID `json:"id"`
	Piece *Piece   `json:"piece,omitempty"`
	Next  Shape    `json:"next"`
	Score uint64   `json:"score"`
	Lines uint16   `json:"lines"`
}

// Snapshot copies the current state. The result shares nothing with s.
func (s *Simulation) Snapshot() Snapshot {
	b := s.board
	snap := Snapshot{
		Tick:    s.ticks,
		Width:   b.width,
		Height:  b.height,
		Buffer:  HeightBuffer,
		Grid:    make([][]Tile, len(b.cells)),
		Pending: b.Pending(),
		Score:   s.score,
		Lines:   s.lines,
		Level:   s.level,
		Over:    s.over,
	}
	for r, row := range b.cells {
		snap.Grid[r] = append([]Tile(nil), row...)
	}
	b.players.each(func(id PlayerID, st *PlayerState) bool {
		view := PlayerView{ID: id, Next: st.Next, Score: st.Score, Lines: st.Lines}
		if st.Piece != nil {
			p := *st.Piece
			view.Piece = &p
		}
		snap.Players = append(snap.Players, view)
		return true
	})
	return snap
}
