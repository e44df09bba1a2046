package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/storage"
)

// saveEvery is how many ticks a realtime match runs between checkpoints.
const saveEvery = 300

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	log      *zap.Logger
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Create makes a new session and persists it. settings is passed to the
// game when the match starts; it is checked against the smallest allowed
// player count up front.
func (m *Manager) Create(gameType string, settings json.RawMessage) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	if len(settings) > 0 {
		if !json.Valid(settings) {
			return nil, fmt.Errorf("settings must be valid JSON")
		}
		probe := make([]string, max(1, g.Info().MinPlayers))
		if _, err := m.registry.NewMatch(gameType, game.MatchConfig{PlayerIDs: probe, Settings: settings}); err != nil {
			return nil, fmt.Errorf("invalid settings: %w", err)
		}
	}
	code := generateCode()
	if err := m.store.CreateSession(code, gameType, string(settings)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, g)
	s.Settings = settings
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	m.log.Info("session created", zap.String("code", code), zap.String("game", gameType))
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Ticking returns the playing sessions whose game runs on a clock.
func (m *Manager) Ticking() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		s.mu.RLock()
		_, realtime := s.Match.(game.Ticking)
		playing := s.Status == StatusPlaying
		s.mu.RUnlock()
		if realtime && playing {
			out = append(out, s)
		}
	}
	return out
}

// SaveMatchState persists the current match state for a session.
func (m *Manager) SaveMatchState(s *Session) error {
	s.mu.RLock()
	match := s.Match
	status := s.Status
	var data []byte
	var err error
	if match != nil {
		data, err = match.MarshalJSON()
	}
	s.mu.RUnlock()

	if err := m.store.UpdateSessionStatus(s.Code, string(status)); err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}
	return m.store.SaveMatchState(s.Code, string(data))
}

// Complete persists a finished match and records its results.
func (m *Manager) Complete(s *Session) error {
	if err := m.SaveMatchState(s); err != nil {
		return fmt.Errorf("save final state: %w", err)
	}
	s.mu.RLock()
	match := s.Match
	matchID := s.MatchID
	s.mu.RUnlock()
	if match == nil || !match.IsOver() {
		return fmt.Errorf("session %s has no finished match", s.Code)
	}

	results := match.Results()
	rows := make([]storage.ResultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, storage.ResultRow{
			MatchID:     matchID,
			SessionCode: s.Code,
			GameType:    s.GameType,
			PlayerID:    r.PlayerID,
			Rank:        r.Rank,
			Score:       r.Score,
		})
	}
	if err := m.store.SaveResults(rows); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	m.log.Info("match finished",
		zap.String("code", s.Code),
		zap.String("match", matchID),
		zap.Int("players", len(rows)))
	return nil
}

// Leaderboard returns the best recorded results for a game type.
func (m *Manager) Leaderboard(gameType string, limit int) ([]storage.ResultRow, error) {
	return m.store.TopResults(gameType, limit)
}

// RunTicks advances a realtime session every interval until its match ends
// or ctx is done, calling onTick after each step. Only one loop runs per
// session; extra calls return at once.
func (m *Manager) RunTicks(ctx context.Context, s *Session, interval time.Duration, onTick func(*Session)) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	log := m.log.With(zap.String("code", s.Code))
	log.Debug("tick loop started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			if err := m.SaveMatchState(s); err != nil {
				log.Error("save match state", zap.Error(err))
			}
			return
		case <-ticker.C:
		}

		ticked, over := s.Tick()
		if !ticked {
			return
		}
		if onTick != nil {
			onTick(s)
		}
		if over {
			if err := m.Complete(s); err != nil {
				log.Error("complete match", zap.Error(err))
			}
			return
		}
		if n%saveEvery == 0 {
			if err := m.SaveMatchState(s); err != nil {
				log.Error("save match state", zap.Error(err))
			}
		}
	}
}

// Restore loads sessions from the database on startup.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(StatusFinished) {
			continue
		}
		log := m.log.With(zap.String("code", row.Code))
		g, ok := m.registry.Get(row.GameType)
		if !ok {
			log.Warn("skipping session: unknown game type", zap.String("game", row.GameType))
			continue
		}
		s := NewSession(row.Code, row.GameType, g)
		s.Status = Status(row.Status)
		if row.Settings != "" {
			s.Settings = json.RawMessage(row.Settings)
		}
		if row.Roster != "" {
			snap, err := decodeRoster(row.Roster)
			if err != nil {
				log.Warn("skipping session: bad roster", zap.Error(err))
				continue
			}
			for _, id := range snap.Players {
				s.addPlayerLocked(id)
			}
			s.HostID = snap.HostID
			s.MatchID = snap.MatchID
		}

		if s.Status == StatusPlaying {
			match, err := m.restoreMatch(g, s)
			if err != nil {
				log.Warn("skipping session: match not restored", zap.Error(err))
				continue
			}
			s.Match = match
		}
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) restoreMatch(g game.Game, s *Session) (game.Match, error) {
	stateJSON, err := m.store.GetMatchState(s.Code)
	if err != nil {
		return nil, fmt.Errorf("load match state: %w", err)
	}
	ids := s.order
	if len(ids) == 0 {
		ids = make([]string, max(1, g.Info().MinPlayers))
	}
	match, err := g.NewMatch(game.MatchConfig{PlayerIDs: ids, Settings: s.Settings})
	if err != nil {
		return nil, err
	}
	if err := match.UnmarshalJSON([]byte(stateJSON)); err != nil {
		return nil, fmt.Errorf("unmarshal match state: %w", err)
	}
	return match, nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(code); err != nil {
		m.log.Error("delete session", zap.String("code", code), zap.Error(err))
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxAge)
		}
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	var stale []string
	m.mu.RLock()
	now := time.Now()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := len(s.Players) == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if finished || empty {
			row, err := m.store.GetSession(code)
			if err != nil || now.Sub(row.CreatedAt) > maxAge || empty {
				stale = append(stale, code)
			}
		}
	}
	m.mu.RUnlock()

	for _, code := range stale {
		m.log.Info("cleaning up session", zap.String("code", code))
		m.Remove(code)
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

// sessionSnapshot is the roster persisted next to a session.
type sessionSnapshot struct {
	Players []string `json:"players"`
	HostID  string   `json:"hostId"`
	MatchID string   `json:"matchId,omitempty"`
}

// SaveSessionPlayers persists the players of s in join order.
func (m *Manager) SaveSessionPlayers(s *Session) error {
	s.mu.RLock()
	snap := sessionSnapshot{
		Players: append([]string{}, s.order...),
		HostID:  s.HostID,
		MatchID: s.MatchID,
	}
	s.mu.RUnlock()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	return m.store.UpdateSessionRoster(s.Code, string(data))
}

func decodeRoster(raw string) (sessionSnapshot, error) {
	var snap sessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return sessionSnapshot{}, fmt.Errorf("decode roster: %w", err)
	}
	return snap, nil
}
