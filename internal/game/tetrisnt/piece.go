package tetrisnt

import (
	"errors"
	"fmt"
	"math"
)

var (
	// errOutOfRange is a normal rejection: the candidate leaves the
	// addressable coordinate space.
	errOutOfRange = errors.New("candidate out of range")
	// errNoPivot means a four-state shape has no pivot cell in the catalog.
	errNoPivot = errors.New("shape has no pivot")
)

// Coord is an absolute board cell.
type Coord struct {
	Row uint8 `json:"row"`
	Col uint8 `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// coordAt converts signed arithmetic back into a Coord, refusing anything
// that does not fit in a byte.
func coordAt(row, col int) (Coord, bool) {
	if row < 0 || col < 0 || row > math.MaxUint8 || col > math.MaxUint8 {
		return Coord{}, false
	}
	return Coord{Row: uint8(row), Col: uint8(col)}, true
}

// Piece is a falling tetromino. A Piece always holds four placed cells; a
// player with nothing falling has no Piece at all.
type Piece struct {
	Shape     Shape    `json:"shape"`
	Positions [4]Coord `json:"positions"`
	Rotation  uint8    `json:"rotation"`
}

// Pos returns the cells the piece would occupy after m, without changing
// the piece. It never looks at the board.
func (p *Piece) Pos(m Movement) ([4]Coord, error) {
	switch m {
	case MoveNone:
		return p.Positions, nil
	case MoveDown:
		return p.translate(1, 0)
	case MoveUp:
		return p.translate(-1, 0)
	case MoveLeft:
		return p.translate(0, -1)
	case MoveRight:
		return p.translate(0, 1)
	case RotateCw, RotateCcw, DoubleRotate:
		return p.rotate(m)
	}
	panic(fmt.Sprintf("tetrisnt: unreachable movement %d", uint8(m)))
}

// nextRotation returns the rotation index after a successful m.
func (p *Piece) nextRotation(m Movement) uint8 {
	n := p.Shape.Rotations()
	if n <= 1 {
		return 0
	}
	switch m {
	case RotateCw:
		return (p.Rotation + 1) % n
	case RotateCcw:
		return (p.Rotation + n - 1) % n
	case DoubleRotate:
		return (p.Rotation + 2) % n
	}
	return p.Rotation
}

func (p *Piece) translate(dRow, dCol int) ([4]Coord, error) {
	var out [4]Coord
	for i, c := range p.Positions {
		moved, ok := coordAt(int(c.Row)+dRow, int(c.Col)+dCol)
		if !ok {
			return p.Positions, errOutOfRange
		}
		out[i] = moved
	}
	return out, nil
}

func (p *Piece) rotate(m Movement) ([4]Coord, error) {
	switch p.Shape.Rotations() {
	case 1:
		return p.Positions, nil
	case 2:
		if m == DoubleRotate {
			return p.Positions, nil
		}
		return p.toggle()
	case 4:
		pivot, ok := p.Shape.Pivot()
		if !ok {
			return p.Positions, errNoPivot
		}
		out, err := quarterTurn(p.Positions, pivot, m != RotateCcw)
		if err != nil || m != DoubleRotate {
			return out, err
		}
		return quarterTurn(out, pivot, true)
	}
	return p.Positions, fmt.Errorf("shape %v: %w", p.Shape, errNoPivot)
}

// toggle flips a two-state piece between its layouts by the catalog delta.
func (p *Piece) toggle() ([4]Coord, error) {
	sign := 1
	if p.Rotation%2 == 1 {
		sign = -1
	}
	var out [4]Coord
	for i, c := range p.Positions {
		d := catalog[p.Shape].toggle[i]
		moved, ok := coordAt(int(c.Row)+sign*d.row, int(c.Col)+sign*d.col)
		if !ok {
			return p.Positions, errOutOfRange
		}
		out[i] = moved
	}
	return out, nil
}

// quarterTurn rotates cells 90 degrees about cells[pivot]. With rows growing
// downward, clockwise maps (dr, dc) to (dc, -dr).
func quarterTurn(cells [4]Coord, pivot int, clockwise bool) ([4]Coord, error) {
	pr, pc := int(cells[pivot].Row), int(cells[pivot].Col)
	var out [4]Coord
	for i, c := range cells {
		r, col := int(c.Row), int(c.Col)
		var nr, nc int
		if clockwise {
			nr = pr + (col - pc)
			nc = pc + (pr - r)
		} else {
			nr = pr - (col - pc)
			nc = pc + (r - pr)
		}
		moved, ok := coordAt(nr, nc)
		if !ok {
			return cells, errOutOfRange
		}
		out[i] = moved
	}
	return out, nil
}
