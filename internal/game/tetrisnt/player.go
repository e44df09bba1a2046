package tetrisnt

import "github.com/kamstrup/intmap"

// PlayerID indexes a player in join order, starting at 0.
type PlayerID uint8

// PlayerState is everything the simulation tracks for one player.
type PlayerState struct {
	// Piece is nil while nothing is falling for the player.
	Piece *Piece `json:"piece,omitempty"`
	Next  Shape  `json:"next"`
	// Gravity counts ticks since the piece last moved down by itself.
	Gravity uint8  `json:"gravity"`
	Score   uint64 `json:"score"`
	Lines   uint16 `json:"lines"`
}

// roster maps PlayerID to PlayerState. Iteration always runs in ascending
// PlayerID order so ticks stay deterministic.
type roster struct {
	states *intmap.Map[PlayerID, *PlayerState]
	count  uint8
}

func newRoster(count uint8) roster {
	r := roster{
		states: intmap.New[PlayerID, *PlayerState](int(count)),
		count:  count,
	}
	for id := range count {
		r.states.Put(PlayerID(id), &PlayerState{})
	}
	return r
}

func (r roster) get(id PlayerID) (*PlayerState, bool) {
	return r.states.Get(id)
}

// each calls fn for every player in ID order until fn returns false.
func (r roster) each(fn func(PlayerID, *PlayerState) bool) {
	for id := range r.count {
		st, ok := r.states.Get(PlayerID(id))
		if !ok {
			continue
		}
		if !fn(PlayerID(id), st) {
			return
		}
	}
}
