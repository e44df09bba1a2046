package tetrisnt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClearWaitsForDelay(t *testing.T) {
	b := newTestBoard(t, 1, 4, 20)
	b.clearDelays = [4]uint8{3, 3, 3, 3}
	bottom := uint8(b.Rows() - 1)
	fillRow(b, bottom, 0, 0)
	require.True(t, b.place(0, vertical(bottom-3, 0)))
	_, cleared := b.AttemptPieceMovement(MoveDown, 0)
	require.True(t, cleared)

	for tick := 1; tick < 3; tick++ {
		lines, score := b.AttemptClearLines(0)
		assert.Zero(t, lines, "tick %d", tick)
		assert.Zero(t, score, "tick %d", tick)
		assert.True(t, b.IsRowFull(bottom), "row stays until its delay runs out")
	}
	lines, score := b.AttemptClearLines(0)
	assert.Equal(t, uint8(1), lines)
	assert.Equal(t, uint32(40), score)
	assert.Empty(t, b.Pending())
	assert.False(t, b.IsRowFull(bottom))

	// The three cells of the I above the cleared row drop by one.
	for r := bottom - 2; r <= bottom; r++ {
		assert.Equal(t, Tile{Owner: 0}, b.Tile(Coord{Row: r, Col: 0}), "row %d", r)
	}
	assert.Equal(t, emptyTile, b.Tile(Coord{Row: bottom - 3, Col: 0}))
	requireInvariants(t, b)
}

func TestZeroDelayClearsOnNextCall(t *testing.T) {
	b := newTestBoard(t, 1, 4, 20)
	b.clearDelays = [4]uint8{}
	bottom := uint8(b.Rows() - 1)
	fillRow(b, bottom, 0)
	b.pending = []FullLine{{Row: bottom}}

	lines, score := b.AttemptClearLines(2)
	assert.Equal(t, uint8(1), lines)
	assert.Equal(t, uint32(120), score)
}

func TestNothingPending(t *testing.T) {
	b := newTestBoard(t, 2, 5, 20)
	lines, score := b.AttemptClearLines(9)
	assert.Zero(t, lines)
	assert.Zero(t, score)
}

// A tetris by player A and a single by player B in the same tick score as
// two separate clears, each credited to its owner.
func TestScoringAttributionByOwner(t *testing.T) {
	const level = 2
	b := newTestBoard(t, 2, 5, 20)
	b.clearDelays = [4]uint8{4, 4, 4, 4}
	bottom := uint8(b.Rows() - 1)
	const a, bPlayer = PlayerID(0), PlayerID(1)

	for r := bottom - 3; r <= bottom; r++ {
		fillRow(b, r, bPlayer, 0)
	}
	fillRow(b, bottom-4, a, 9)

	require.True(t, b.place(a, vertical(bottom-3, 0)))
	_, cleared := b.AttemptPieceMovement(MoveDown, a)
	require.True(t, cleared)
	require.True(t, b.place(bPlayer, vertical(bottom-7, 9)))
	_, cleared = b.AttemptPieceMovement(MoveDown, bPlayer)
	require.True(t, cleared)
	require.Len(t, b.Pending(), 5)

	var lines uint8
	var score uint32
	for range 4 {
		lines, score = b.AttemptClearLines(level)
	}
	assert.Equal(t, uint8(5), lines)
	assert.Equal(t, uint32(1200*(level+1)+40*(level+1)), score)

	stA, _ := b.players.get(a)
	stB, _ := b.players.get(bPlayer)
	assert.Equal(t, uint64(1200*(level+1)), stA.Score)
	assert.Equal(t, uint16(4), stA.Lines)
	assert.Equal(t, uint64(40*(level+1)), stB.Score)
	assert.Equal(t, uint16(1), stB.Lines)
	for r := range b.Rows() {
		assert.False(t, b.IsRowFull(uint8(r)), "row %d", r)
	}
	// The three remaining cells of B's I drop five rows.
	for r := bottom - 2; r <= bottom; r++ {
		assert.Equal(t, Tile{Owner: bPlayer}, b.Tile(Coord{Row: r, Col: 9}), "row %d", r)
	}
	requireInvariants(t, b)
}

func TestScoringRunsSplitByOwner(t *testing.T) {
	b := newTestBoard(t, 2, 5, 20)
	bottom := uint8(b.Rows() - 1)
	owners := []PlayerID{0, 0, 1, 0}
	for i, owner := range owners {
		row := bottom - uint8(len(owners)-1-i)
		fillRow(b, row, owner)
		b.pending = append(b.pending, FullLine{Row: row, Owner: owner})
	}

	lines, score := b.AttemptClearLines(0)
	assert.Equal(t, uint8(4), lines)
	// Double by 0, single by 1, single by 0.
	assert.Equal(t, uint32(100+40+40), score)
	st0, _ := b.players.get(0)
	st1, _ := b.players.get(1)
	assert.Equal(t, uint64(140), st0.Score)
	assert.Equal(t, uint16(3), st0.Lines)
	assert.Equal(t, uint64(40), st1.Score)
	assert.Equal(t, uint16(1), st1.Lines)
}

func TestRunOutsideTableScoresNothing(t *testing.T) {
	b := newTestBoard(t, 1, 4, 20)
	bottom := uint8(b.Rows() - 1)
	for r := bottom - 4; r <= bottom; r++ {
		fillRow(b, r, 0)
		b.pending = append(b.pending, FullLine{Row: r, Owner: 0})
	}

	lines, score := b.AttemptClearLines(5)
	assert.Equal(t, uint8(5), lines)
	assert.Zero(t, score)
	st, _ := b.players.get(0)
	assert.Zero(t, st.Score)
	assert.Equal(t, uint16(5), st.Lines)
	for r := range b.Rows() {
		assert.False(t, b.IsRowFull(uint8(r)))
	}
}

// markedBoard has full rows 10 and 15 and a single locked marker cell at
// (12, 0) between them.
func markedBoard(t *testing.T) *Board {
	t.Helper()
	b := newTestBoard(t, 2, 4, 20)
	fillRow(b, 10, 0)
	fillRow(b, 15, 1)
	b.cells[12][0] = Tile{Owner: 1}
	return b
}

func TestReindexUpperRowFirst(t *testing.T) {
	b := markedBoard(t)
	b.pending = []FullLine{
		{Row: 10, Owner: 0, ClearDelay: 1},
		{Row: 15, Owner: 1, ClearDelay: 5},
	}

	lines, _ := b.AttemptClearLines(0)
	require.Equal(t, uint8(1), lines)
	assert.Equal(t, []FullLine{{Row: 15, Owner: 1, ClearDelay: 4}}, b.Pending(),
		"a row below the cleared one keeps its index")
	assert.True(t, b.IsRowFull(15))
	assert.Equal(t, Tile{Owner: 1}, b.Tile(Coord{Row: 12, Col: 0}), "marker below the cleared row stays")
	requireInvariants(t, b)

	for range 3 {
		lines, _ = b.AttemptClearLines(0)
		require.Zero(t, lines)
	}
	lines, _ = b.AttemptClearLines(0)
	assert.Equal(t, uint8(1), lines)
	assert.Empty(t, b.Pending())
	assert.Equal(t, Tile{Owner: 1}, b.Tile(Coord{Row: 13, Col: 0}), "marker above the cleared row moves down")
	for r := range b.Rows() {
		assert.False(t, b.IsRowFull(uint8(r)))
	}
}

func TestReindexLowerRowFirst(t *testing.T) {
	b := markedBoard(t)
	b.pending = []FullLine{
		{Row: 10, Owner: 0, ClearDelay: 5},
		{Row: 15, Owner: 1, ClearDelay: 1},
	}

	lines, _ := b.AttemptClearLines(0)
	require.Equal(t, uint8(1), lines)
	assert.Equal(t, []FullLine{{Row: 11, Owner: 0, ClearDelay: 4}}, b.Pending(),
		"a row above the cleared one follows its cells down")
	assert.True(t, b.IsRowFull(11))
	assert.False(t, b.IsRowFull(10))
	assert.Equal(t, Tile{Owner: 1}, b.Tile(Coord{Row: 13, Col: 0}))
	requireInvariants(t, b)

	for range 4 {
		lines, _ = b.AttemptClearLines(0)
	}
	assert.Equal(t, uint8(1), lines)
	assert.Empty(t, b.Pending())
	assert.Equal(t, Tile{Owner: 1}, b.Tile(Coord{Row: 14, Col: 0}))
}

func TestReindexSeveralDueRows(t *testing.T) {
	b := newTestBoard(t, 1, 4, 20)
	for _, r := range []uint8{3, 8, 11, 14} {
		fillRow(b, r, 0)
	}
	b.pending = []FullLine{
		{Row: 3, ClearDelay: 9},
		{Row: 8, ClearDelay: 1},
		{Row: 11, ClearDelay: 9},
		{Row: 14, ClearDelay: 1},
	}

	lines, score := b.AttemptClearLines(0)
	assert.Equal(t, uint8(2), lines)
	// Rows 8 and 14 are not adjacent but share an owner: one double.
	assert.Equal(t, uint32(100), score)
	assert.Equal(t, []FullLine{
		{Row: 5, ClearDelay: 8},
		{Row: 12, ClearDelay: 8},
	}, b.Pending())
	requireInvariants(t, b)
}

func TestClearMovesFallingPieces(t *testing.T) {
	b := newTestBoard(t, 2, 4, 20)
	fillRow(b, 15, 1)
	b.pending = []FullLine{{Row: 15, Owner: 1}}
	require.True(t, b.place(0, Piece{Shape: O, Positions: cells(5, 1, 5, 2, 6, 1, 6, 2)}))
	require.True(t, b.place(1, Piece{Shape: O, Positions: cells(17, 5, 17, 6, 18, 5, 18, 6)}))

	lines, _ := b.AttemptClearLines(0)
	require.Equal(t, uint8(1), lines)
	assert.Equal(t, cells(6, 1, 6, 2, 7, 1, 7, 2), b.Piece(0).Positions, "piece above the row drops")
	assert.Equal(t, cells(17, 5, 17, 6, 18, 5, 18, 6), b.Piece(1).Positions, "piece below stays")
	requireInvariants(t, b)
}

// Spawn, move and lock one I through the whole board.
func TestSingleLineRoundTrip(t *testing.T) {
	b := newTestBoard(t, 1, 4, 20)
	b.clearDelays = [4]uint8{2, 2, 2, 2}
	require.True(t, b.SpawnPiece(0, I))

	var cleared bool
	for {
		var moved bool
		moved, cleared = b.AttemptPieceMovement(MoveDown, 0)
		if !moved {
			break
		}
	}
	require.True(t, cleared)
	require.Len(t, b.Pending(), 1)

	lines, _ := b.AttemptClearLines(0)
	assert.Zero(t, lines)
	lines, score := b.AttemptClearLines(0)
	assert.Equal(t, uint8(1), lines)
	assert.Equal(t, uint32(40), score)
	for r := range b.Rows() {
		for c := range b.Width() {
			assert.Equal(t, emptyTile, b.Tile(Coord{Row: uint8(r), Col: c}))
		}
	}
}

// On a one-column board every row a vertical I touches is full on its own.
// It fails Validate, so it is built directly.
func TestOneColumnBoard(t *testing.T) {
	b := NewBoard(testConfig(1, 1, 6), zaptest.NewLogger(t))
	bottom := uint8(b.Rows() - 1)
	require.True(t, b.place(0, vertical(bottom-3, 0)))

	_, cleared := b.AttemptPieceMovement(MoveDown, 0)
	require.True(t, cleared)
	require.Len(t, b.Pending(), 4)

	var lines uint8
	var score uint32
	for lines == 0 {
		lines, score = b.AttemptClearLines(0)
	}
	assert.Equal(t, uint8(4), lines)
	assert.Equal(t, uint32(1200), score)
	for r := range b.Rows() {
		assert.Equal(t, emptyTile, b.Tile(Coord{Row: uint8(r), Col: 0}))
	}
}

func TestPoints(t *testing.T) {
	tests := []struct {
		lines, level uint8
		want         uint32
		ok           bool
	}{
		{1, 0, 40, true},
		{2, 0, 100, true},
		{3, 1, 600, true},
		{4, 9, 12000, true},
		{0, 0, 0, false},
		{5, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := Points(tt.lines, tt.level)
		assert.Equal(t, tt.ok, ok, "lines=%d level=%d", tt.lines, tt.level)
		assert.Equal(t, tt.want, got, "lines=%d level=%d", tt.lines, tt.level)
	}
}

func TestGravityFrames(t *testing.T) {
	assert.Equal(t, uint8(48), GravityFrames(0))
	assert.Equal(t, uint8(6), GravityFrames(9))
	assert.Equal(t, uint8(1), GravityFrames(29))
	assert.Equal(t, uint8(1), GravityFrames(200))
	for level := range uint8(40) {
		assert.GreaterOrEqual(t, GravityFrames(level), GravityFrames(level+1))
	}
}
