package tetrisnt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	// HeightBuffer is the number of hidden rows above the visible field.
	HeightBuffer = 2

	MaxPlayers = 4
	// MinWidth fits a horizontal I.
	MinWidth = 4

	DefaultWidthPerPlayer = 5
	DefaultBoardHeight    = 20
	DefaultClearDelay     = 20
)

// Config holds the initialization parameters of a simulation.
type Config struct {
	NumPlayers          uint8 `json:"numPlayers"`
	StartingLevel       uint8 `json:"startingLevel"`
	BoardWidthPerPlayer uint8 `json:"boardWidthPerPlayer"`
	BoardHeight         uint8 `json:"boardHeight"`
	// ClearDelays[n-1] is the countdown given to each row when one lock
	// completes n rows at once.
	ClearDelays [4]uint8 `json:"clearDelays"`
	Seed        uint64   `json:"seed"`
}

// DefaultConfig returns the standard settings for numPlayers players.
func DefaultConfig(numPlayers uint8) Config {
	return Config{
		NumPlayers:          numPlayers,
		BoardWidthPerPlayer: DefaultWidthPerPlayer,
		BoardHeight:         DefaultBoardHeight,
		ClearDelays:         [4]uint8{DefaultClearDelay, DefaultClearDelay, DefaultClearDelay, DefaultClearDelay},
	}
}

// Width is the number of columns of the shared board.
func (c Config) Width() int {
	return int(c.BoardWidthPerPlayer) * int(c.NumPlayers)
}

// Validate checks that the board fits the byte coordinate space and is
// wide enough to spawn every shape.
func (c Config) Validate() error {
	var errs []error
	if c.NumPlayers == 0 || c.NumPlayers > MaxPlayers {
		errs = append(errs, fmt.Errorf("numPlayers %d out of range 1..%d", c.NumPlayers, MaxPlayers))
	}
	if c.BoardWidthPerPlayer == 0 {
		errs = append(errs, errors.New("boardWidthPerPlayer must be positive"))
	} else if c.NumPlayers != 0 && c.Width() < MinWidth {
		errs = append(errs, fmt.Errorf("board width %d is narrower than %d", c.Width(), MinWidth))
	}
	if c.Width() > math.MaxUint8 {
		errs = append(errs, fmt.Errorf("board width %d exceeds %d", c.Width(), math.MaxUint8))
	}
	if c.BoardHeight == 0 || int(c.BoardHeight)+HeightBuffer > math.MaxUint8 {
		errs = append(errs, fmt.Errorf("boardHeight %d out of range 1..%d", c.BoardHeight, math.MaxUint8-HeightBuffer))
	}
	return errors.Join(errs...)
}

// Settings is the client-supplied part of a Config. Zero fields keep their
// defaults.
type Settings struct {
	StartingLevel       uint8   `json:"startingLevel"`
	BoardWidthPerPlayer uint8   `json:"boardWidthPerPlayer"`
	BoardHeight         uint8   `json:"boardHeight"`
	ClearDelays         []int   `json:"clearDelays"`
	Seed                *uint64 `json:"seed"`
}

// ParseConfig builds a validated Config for numPlayers from raw settings
// JSON. Empty input yields the defaults.
func ParseConfig(numPlayers int, raw json.RawMessage, seed uint64) (Config, error) {
	if numPlayers <= 0 || numPlayers > MaxPlayers {
		return Config{}, fmt.Errorf("numPlayers %d out of range 1..%d", numPlayers, MaxPlayers)
	}
	cfg := DefaultConfig(uint8(numPlayers))
	cfg.Seed = seed
	if len(raw) > 0 && string(raw) != "null" {
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			return Config{}, fmt.Errorf("decode settings: %w", err)
		}
		cfg.StartingLevel = s.StartingLevel
		if s.BoardWidthPerPlayer != 0 {
			cfg.BoardWidthPerPlayer = s.BoardWidthPerPlayer
		}
		if s.BoardHeight != 0 {
			cfg.BoardHeight = s.BoardHeight
		}
		if len(s.ClearDelays) > len(cfg.ClearDelays) {
			return Config{}, fmt.Errorf("clearDelays has %d entries, want at most %d", len(s.ClearDelays), len(cfg.ClearDelays))
		}
		for i, d := range s.ClearDelays {
			if d < 0 || d > math.MaxUint8 {
				return Config{}, fmt.Errorf("clearDelays[%d] = %d out of range 0..%d", i, d, math.MaxUint8)
			}
			cfg.ClearDelays[i] = uint8(d)
		}
		if s.Seed != nil {
			cfg.Seed = *s.Seed
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}
