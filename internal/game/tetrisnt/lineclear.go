package tetrisnt

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
)

// FullLine is a completed row waiting out its clear delay.
type FullLine struct {
	Row        uint8    `json:"row"`
	Owner      PlayerID `json:"owner"`
	ClearDelay uint8    `json:"clearDelay"`
}

func compareRows(a, b FullLine) int {
	return cmp.Compare(a.Row, b.Row)
}

// Pending returns the queued full lines in row order.
func (b *Board) Pending() []FullLine {
	return slices.Clone(b.pending)
}

func (b *Board) isPending(row uint8) bool {
	return slices.ContainsFunc(b.pending, func(l FullLine) bool { return l.Row == row })
}

// AttemptClearLines advances every pending line by one tick and removes the
// ones whose countdown has reached zero. It returns how many rows were
// removed and the points they scored at level. Call it once per tick.
func (b *Board) AttemptClearLines(level uint8) (linesCleared uint8, scoreDelta uint32) {
	if len(b.pending) == 0 {
		return 0, 0
	}
	var due []FullLine
	for i := range b.pending {
		if b.pending[i].ClearDelay > 0 {
			b.pending[i].ClearDelay--
		}
		if b.pending[i].ClearDelay == 0 {
			due = append(due, b.pending[i])
		}
	}
	if len(due) == 0 {
		return 0, 0
	}

	scoreDelta = b.scoreRuns(due, level)
	b.removeDue(due)
	return uint8(len(due)), scoreDelta
}

// scoreRuns scores each run of consecutive due lines owned by one player
// as a single multi-line clear and credits it to that player. due is in row
// order.
func (b *Board) scoreRuns(due []FullLine, level uint8) uint32 {
	var total uint32
	for start := 0; start < len(due); {
		owner := due[start].Owner
		end := start + 1
		for end < len(due) && due[end].Owner == owner {
			end++
		}
		run := end - start
		start = end

		st, known := b.players.get(owner)
		if known {
			st.Lines += uint16(run)
		}
		points, ok := Points(uint8(min(run, 255)), level)
		if !ok {
			b.log.Warn("clear run outside scoring table",
				zap.Uint8("player", uint8(owner)),
				zap.Int("run", run))
			continue
		}
		total += points
		if known {
			st.Score += uint64(points)
		}
	}
	return total
}

// removeDue deletes the due rows from the grid and the queue. Rows are
// removed top-most first: deleting row r only moves the rows above it, so
// the due rows still to come keep their indices. Every line still pending
// above r, and every falling cell above r, moves down by one.
func (b *Board) removeDue(due []FullLine) {
	b.pending = slices.DeleteFunc(b.pending, func(l FullLine) bool { return l.ClearDelay == 0 })
	for _, line := range due {
		r := line.Row
		b.cells = slices.Delete(b.cells, int(r), int(r)+1)
		b.cells = slices.Insert(b.cells, 0, newRow(b.width))
		for i := range b.pending {
			if b.pending[i].Row < r {
				b.pending[i].Row++
			}
		}
		b.players.each(func(_ PlayerID, st *PlayerState) bool {
			if st.Piece == nil {
				return true
			}
			for i := range st.Piece.Positions {
				if st.Piece.Positions[i].Row < r {
					st.Piece.Positions[i].Row++
				}
			}
			return true
		})
	}
}
