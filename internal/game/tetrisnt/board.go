package tetrisnt

import (
	"errors"
	"slices"

	"go.uber.org/zap"
)

// Board is the shared grid plus the falling piece of every player.
//
// Rows 0 and 1 are the hidden buffer; row HeightBuffer is the top visible
// row and the bottom row is Rows()-1.
type Board struct {
	width       uint8
	height      uint8
	lane        uint8
	cells       [][]Tile
	players     roster
	pending     []FullLine
	clearDelays [4]uint8
	log         *zap.Logger
}

// NewBoard returns an empty board sized by cfg. cfg must be valid.
func NewBoard(cfg Config, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Board{
		width:       uint8(cfg.Width()),
		height:      cfg.BoardHeight,
		lane:        cfg.BoardWidthPerPlayer,
		players:     newRoster(cfg.NumPlayers),
		clearDelays: cfg.ClearDelays,
		log:         log,
	}
	b.cells = make([][]Tile, b.Rows())
	for r := range b.cells {
		b.cells[r] = newRow(b.width)
	}
	return b
}

// Width is the number of columns.
func (b *Board) Width() uint8 { return b.width }

// Height is the number of visible rows.
func (b *Board) Height() uint8 { return b.height }

// Rows is the number of addressable rows, buffer included.
func (b *Board) Rows() int { return int(b.height) + HeightBuffer }

// Tile returns the cell at c. c must be in bounds.
func (b *Board) Tile(c Coord) Tile { return b.cells[c.Row][c.Col] }

// Piece returns a copy of the falling piece of id, or nil.
func (b *Board) Piece(id PlayerID) *Piece {
	st, ok := b.players.get(id)
	if !ok || st.Piece == nil {
		return nil
	}
	p := *st.Piece
	return &p
}

func (b *Board) inBounds(c Coord) bool {
	return int(c.Row) < b.Rows() && c.Col < b.width
}

// fits reports whether every candidate cell is on the board and either
// empty or already part of id's own falling piece.
func (b *Board) fits(cells [4]Coord, id PlayerID) bool {
	for _, c := range cells {
		if !b.inBounds(c) || !b.cells[c.Row][c.Col].enterableBy(id) {
			return false
		}
	}
	return true
}

// AttemptPieceMovement applies m to the falling piece of id if the result
// fits. A Down that is blocked while the piece rests on the floor or on
// locked cells locks the piece instead; causedLineClear then reports whether
// that lock completed any row.
func (b *Board) AttemptPieceMovement(m Movement, id PlayerID) (moved, causedLineClear bool) {
	st, ok := b.players.get(id)
	if !ok {
		b.log.Warn("movement for unknown player", zap.Uint8("player", uint8(id)))
		return false, false
	}
	if st.Piece == nil {
		return false, false
	}

	cells, err := st.Piece.Pos(m)
	if err == nil && b.fits(cells, id) {
		b.commit(id, st.Piece, cells, m)
		return true, false
	}
	if errors.Is(err, errNoPivot) {
		b.log.Warn("rotation without pivot",
			zap.Uint8("player", uint8(id)),
			zap.Stringer("shape", st.Piece.Shape))
	}

	if m == MoveDown && b.ShouldLock(id) {
		return false, b.lock(id, st)
	}
	return false, false
}

func (b *Board) commit(id PlayerID, p *Piece, cells [4]Coord, m Movement) {
	for _, c := range p.Positions {
		b.cells[c.Row][c.Col] = emptyTile
	}
	for _, c := range cells {
		b.cells[c.Row][c.Col] = Tile{Active: true, Owner: id}
	}
	p.Positions = cells
	if m.IsRotation() {
		p.Rotation = p.nextRotation(m)
	}
}

// ShouldLock reports whether the falling piece of id cannot descend because
// a cell sits on the floor or directly above a locked cell. Another
// player's falling piece does not count as support.
func (b *Board) ShouldLock(id PlayerID) bool {
	st, ok := b.players.get(id)
	if !ok || st.Piece == nil {
		return false
	}
	for _, c := range st.Piece.Positions {
		below := int(c.Row) + 1
		if below >= b.Rows() {
			return true
		}
		if b.cells[below][c.Col].Locked() {
			return true
		}
	}
	return false
}

// IsRowFull reports whether every cell of row is locked.
func (b *Board) IsRowFull(row uint8) bool {
	if int(row) >= b.Rows() {
		return false
	}
	for _, t := range b.cells[row] {
		if !t.Locked() {
			return false
		}
	}
	return true
}

// lock turns the falling piece of id into permanent cells and queues every
// row it completed. It reports whether any row became full.
func (b *Board) lock(id PlayerID, st *PlayerState) bool {
	if st.Piece == nil {
		b.log.Warn("lock without a falling piece", zap.Uint8("player", uint8(id)))
		return false
	}
	rows := make([]uint8, 0, 4)
	for _, c := range st.Piece.Positions {
		b.cells[c.Row][c.Col] = Tile{Owner: id}
		if !slices.Contains(rows, c.Row) {
			rows = append(rows, c.Row)
		}
	}
	st.Piece = nil

	full := rows[:0]
	for _, r := range rows {
		if b.IsRowFull(r) && !b.isPending(r) {
			full = append(full, r)
		}
	}
	if len(full) == 0 {
		return false
	}
	delay := b.clearDelays[min(len(full), len(b.clearDelays))-1]
	for _, r := range full {
		b.pending = append(b.pending, FullLine{Row: r, Owner: id, ClearDelay: delay})
	}
	slices.SortFunc(b.pending, compareRows)
	b.log.Debug("rows completed",
		zap.Uint8("player", uint8(id)),
		zap.Int("rows", len(full)),
		zap.Uint8("delay", delay))
	return true
}

// SpawnColumn is the column the spawn template of id is anchored to: the
// middle of the player's lane, pulled inward so a four-wide piece fits.
func (b *Board) SpawnColumn(id PlayerID) int {
	col := int(id)*int(b.lane) + (int(b.lane)-1)/2
	return max(1, min(col, int(b.width)-3))
}

// SpawnPiece places a new shape for id at its spawn position. It fails
// without touching the board when id already has a piece or any target
// cell is taken.
func (b *Board) SpawnPiece(id PlayerID, shape Shape) bool {
	if !shape.Valid() {
		b.log.Warn("spawn of invalid shape", zap.Uint8("player", uint8(id)), zap.Uint8("shape", uint8(shape)))
		return false
	}
	cells, ok := spawnCells(shape, HeightBuffer, b.SpawnColumn(id))
	if !ok {
		return false
	}
	return b.place(id, Piece{Shape: shape, Positions: cells})
}

func (b *Board) place(id PlayerID, p Piece) bool {
	st, ok := b.players.get(id)
	if !ok || st.Piece != nil {
		return false
	}
	if !b.fits(p.Positions, id) {
		return false
	}
	for _, c := range p.Positions {
		b.cells[c.Row][c.Col] = Tile{Active: true, Owner: id}
	}
	st.Piece = &p
	return true
}
