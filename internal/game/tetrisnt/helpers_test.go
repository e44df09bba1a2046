package tetrisnt

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(players, widthPerPlayer, height uint8) Config {
	cfg := DefaultConfig(players)
	cfg.BoardWidthPerPlayer = widthPerPlayer
	cfg.BoardHeight = height
	return cfg
}

func newTestBoard(t *testing.T, players, widthPerPlayer, height uint8) *Board {
	t.Helper()
	cfg := testConfig(players, widthPerPlayer, height)
	require.NoError(t, cfg.Validate())
	return NewBoard(cfg, zaptest.NewLogger(t))
}

// fillRow locks every cell of row for owner except the listed columns.
func fillRow(b *Board, row uint8, owner PlayerID, except ...uint8) {
	for c := range b.width {
		if slices.Contains(except, c) {
			continue
		}
		b.cells[row][c] = Tile{Owner: owner}
	}
}

// vertical returns a vertical I in col covering rows top..top+3.
func vertical(top, col uint8) Piece {
	return Piece{
		Shape:    I,
		Rotation: 1,
		Positions: [4]Coord{
			{Row: top, Col: col},
			{Row: top + 1, Col: col},
			{Row: top + 2, Col: col},
			{Row: top + 3, Col: col},
		},
	}
}

func cells(pairs ...uint8) [4]Coord {
	var out [4]Coord
	for i := range out {
		out[i] = Coord{Row: pairs[2*i], Col: pairs[2*i+1]}
	}
	return out
}

// requireInvariants checks the structural invariants of a board: tiles are
// never empty and active at once, every active tile belongs to the falling
// piece of its owner, every falling piece is on the board with exactly its
// four cells active, and every pending line is a full row.
func requireInvariants(t *testing.T, b *Board) {
	t.Helper()
	require.Len(t, b.cells, b.Rows())
	active := map[PlayerID]int{}
	for r, row := range b.cells {
		require.Len(t, row, int(b.width))
		for c, tile := range row {
			require.False(t, tile.Empty && tile.Active, "tile (%d,%d) empty and active", r, c)
			if tile.Empty {
				require.Equal(t, PlayerID(0), tile.Owner, "empty tile (%d,%d) has an owner", r, c)
			}
			if !tile.Active {
				continue
			}
			active[tile.Owner]++
			st, ok := b.players.get(tile.Owner)
			require.True(t, ok, "active tile (%d,%d) of unknown player %d", r, c, tile.Owner)
			require.NotNil(t, st.Piece, "active tile (%d,%d) of player %d without piece", r, c, tile.Owner)
			require.Contains(t, st.Piece.Positions, Coord{Row: uint8(r), Col: uint8(c)})
		}
	}
	b.players.each(func(id PlayerID, st *PlayerState) bool {
		if st.Piece == nil {
			require.Zero(t, active[id], "player %d has active tiles but no piece", id)
			return true
		}
		require.Equal(t, 4, active[id], "player %d active tile count", id)
		for _, c := range st.Piece.Positions {
			require.True(t, b.inBounds(c), "player %d cell %v out of bounds", id, c)
		}
		return true
	})
	for i, l := range b.pending {
		require.True(t, b.IsRowFull(l.Row), "pending row %d is not full", l.Row)
		if i > 0 {
			require.Less(t, b.pending[i-1].Row, l.Row, "pending lines out of order")
		}
	}
}
