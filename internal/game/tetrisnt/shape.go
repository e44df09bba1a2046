// Package tetrisnt implements the deterministic simulation of a multiplayer
// falling-block game where every player shares one board.
//
// The board is addressed as (row, col) with row 0 at the top of two hidden
// buffer rows; rows grow downward. All state changes happen through a Board
// or a Simulation called from a single goroutine.
package tetrisnt

import "fmt"

// Shape is one of the seven tetrominoes. The zero value means no shape.
type Shape uint8

const (
	None Shape = iota
	I
	O
	T
	J
	S
	L
	Z
)

// Shapes lists every playable shape in catalog order.
var Shapes = [...]Shape{I, O, T, J, S, L, Z}

// offset is a signed (row, col) displacement.
type offset struct {
	row, col int
}

// noPivot marks shapes that do not rotate about one of their own cells.
const noPivot = -1

type shapeDef struct {
	spawn     [4]offset
	pivot     int
	rotations uint8
	// toggle is added to each cell when leaving an even rotation state and
	// subtracted when leaving an odd one. Only used by two-state shapes.
	toggle [4]offset
}

var catalog = [...]shapeDef{
	I: {
		spawn:     [4]offset{{0, -1}, {0, 0}, {0, 1}, {0, 2}},
		pivot:     noPivot,
		rotations: 2,
		toggle:    [4]offset{{-2, 2}, {-1, 1}, {0, 0}, {1, -1}},
	},
	O: {
		spawn:     [4]offset{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
		pivot:     noPivot,
		rotations: 1,
	},
	T: {
		spawn:     [4]offset{{0, -1}, {0, 0}, {0, 1}, {1, 0}},
		pivot:     1,
		rotations: 4,
	},
	J: {
		spawn:     [4]offset{{0, -1}, {0, 0}, {0, 1}, {1, 1}},
		pivot:     1,
		rotations: 4,
	},
	S: {
		spawn:     [4]offset{{0, 0}, {0, 1}, {1, -1}, {1, 0}},
		pivot:     noPivot,
		rotations: 2,
		toggle:    [4]offset{{0, 0}, {0, 0}, {-2, 1}, {0, 1}},
	},
	L: {
		spawn:     [4]offset{{0, -1}, {0, 0}, {0, 1}, {1, -1}},
		pivot:     1,
		rotations: 4,
	},
	Z: {
		spawn:     [4]offset{{0, -1}, {0, 0}, {1, 0}, {1, 1}},
		pivot:     noPivot,
		rotations: 2,
		toggle:    [4]offset{{-1, 2}, {0, 0}, {0, 0}, {-1, 0}},
	},
}

// Valid reports whether s names a playable shape.
func (s Shape) Valid() bool {
	return s >= I && s <= Z
}

// Rotations returns how many distinct rotation states s has: 1, 2 or 4.
func (s Shape) Rotations() uint8 {
	if !s.Valid() {
		return 0
	}
	return catalog[s].rotations
}

// Pivot returns the index of the cell that rotation holds fixed.
// ok is false for shapes that do not rotate about a cell.
func (s Shape) Pivot() (index int, ok bool) {
	if !s.Valid() || catalog[s].pivot == noPivot {
		return 0, false
	}
	return catalog[s].pivot, true
}

func (s Shape) String() string {
	switch s {
	case None:
		return ""
	case I:
		return "I"
	case O:
		return "O"
	case T:
		return "T"
	case J:
		return "J"
	case S:
		return "S"
	case L:
		return "L"
	case Z:
		return "Z"
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

func (s Shape) MarshalText() ([]byte, error) {
	if s != None && !s.Valid() {
		return nil, fmt.Errorf("invalid shape %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = None
		return nil
	}
	for _, shape := range Shapes {
		if shape.String() == string(text) {
			*s = shape
			return nil
		}
	}
	return fmt.Errorf("unknown shape %q", text)
}

// spawnCells places the spawn template of s with its column origin at col
// and its top row at row. ok is false when a cell would leave the byte range.
func spawnCells(s Shape, row, col int) (cells [4]Coord, ok bool) {
	for i, o := range catalog[s].spawn {
		c, ok := coordAt(row+o.row, col+o.col)
		if !ok {
			return cells, false
		}
		cells[i] = c
	}
	return cells, true
}
