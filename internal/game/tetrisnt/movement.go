package tetrisnt

import "fmt"

// Movement is a single per-tick intent for a player's falling piece.
type Movement uint8

const (
	MoveNone Movement = iota
	MoveDown
	MoveLeft
	MoveRight
	MoveUp
	RotateCw
	RotateCcw
	DoubleRotate
)

// Movements lists every movement in wire order.
var Movements = [...]Movement{MoveDown, MoveLeft, MoveRight, MoveUp, RotateCw, RotateCcw, DoubleRotate, MoveNone}

var movementNames = [...]string{
	MoveNone:     "none",
	MoveDown:     "down",
	MoveLeft:     "left",
	MoveRight:    "right",
	MoveUp:       "up",
	RotateCw:     "rotatecw",
	RotateCcw:    "rotateccw",
	DoubleRotate: "doublerotate",
}

func (m Movement) String() string {
	if int(m) < len(movementNames) {
		return movementNames[m]
	}
	return fmt.Sprintf("Movement(%d)", uint8(m))
}

// IsRotation reports whether m changes the rotation state of a piece.
func (m Movement) IsRotation() bool {
	return m == RotateCw || m == RotateCcw || m == DoubleRotate
}

// ParseMovement maps a wire name such as "rotatecw" to its Movement.
func ParseMovement(name string) (Movement, error) {
	for m, n := range movementNames {
		if n == name {
			return Movement(m), nil
		}
	}
	return MoveNone, fmt.Errorf("unknown movement %q", name)
}

func (m Movement) MarshalText() ([]byte, error) {
	if int(m) >= len(movementNames) {
		return nil, fmt.Errorf("invalid movement %d", uint8(m))
	}
	return []byte(movementNames[m]), nil
}

func (m *Movement) UnmarshalText(text []byte) error {
	parsed, err := ParseMovement(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
