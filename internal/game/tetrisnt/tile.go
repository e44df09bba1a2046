package tetrisnt

// Tile is one grid cell. An empty tile has no owner and is never active;
// an active tile belongs to the falling piece of Owner; any other non-empty
// tile is locked.
type Tile struct {
	Empty  bool     `json:"empty"`
	Active bool     `json:"active"`
	Owner  PlayerID `json:"owner"`
}

var emptyTile = Tile{Empty: true}

// Locked reports whether t is a permanent cell.
func (t Tile) Locked() bool {
	return !t.Empty && !t.Active
}

// enterableBy reports whether a piece owned by id may move into t.
func (t Tile) enterableBy(id PlayerID) bool {
	return t.Empty || (t.Active && t.Owner == id)
}

func newRow(width uint8) []Tile {
	row := make([]Tile, width)
	for i := range row {
		row[i] = emptyTile
	}
	return row
}
