package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/game"
	"github.com/Brian-Catcow-B/tetrisn-t-sub000/internal/session"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Options configures a Server.
type Options struct {
	// TickInterval is the period of realtime matches. Zero means 16ms.
	TickInterval time.Duration
	Logger       *zap.Logger
}

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	log      *zap.Logger
	interval time.Duration
	// ctx bounds every tick loop the server starts.
	ctx   context.Context
	loops sync.WaitGroup
}

// New creates a server with all routes. Tick loops stop when ctx is done.
func New(ctx context.Context, registry *game.Registry, manager *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 16 * time.Millisecond
	}
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		log:      opts.Logger,
		interval: opts.TickInterval,
		ctx:      ctx,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ResumeTicking restarts the clock of every restored realtime session.
func (s *Server) ResumeTicking() int {
	sessions := s.manager.Ticking()
	for _, sess := range sessions {
		s.startTicking(sess)
	}
	return len(sessions)
}

func (s *Server) startTicking(sess *session.Session) {
	if !sess.Realtime() {
		return
	}
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.manager.RunTicks(s.ctx, sess, s.interval, s.broadcastState)
	}()
}

// Wait blocks until every tick loop has returned. Loops save their match
// when the server context ends.
func (s *Server) Wait() {
	s.loops.Wait()
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

type createSessionRequest struct {
	GameType string          `json:"gameType"`
	PlayerID string          `json:"playerId"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.GameType == "" || req.PlayerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "gameType and playerId required"})
		return
	}
	if string(req.Settings) == "null" {
		req.Settings = nil
	}

	sess, err := s.manager.Create(req.GameType, req.Settings)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := sess.AddPlayer(req.PlayerID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.manager.SaveSessionPlayers(sess); err != nil {
		s.log.Error("save roster", zap.String("code", sess.Code), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err := s.start(sess); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "matchId": sess.Info().MatchID})
}

// start begins the match of sess, persists it and tells every player.
func (s *Server) start(sess *session.Session) error {
	if err := sess.Start(); err != nil {
		return err
	}
	if err := s.manager.SaveSessionPlayers(sess); err != nil {
		s.log.Error("save roster", zap.String("code", sess.Code), zap.Error(err))
	}
	if err := s.manager.SaveMatchState(sess); err != nil {
		s.log.Error("save match state", zap.String("code", sess.Code), zap.Error(err))
	}
	info := sess.Info()
	s.log.Info("match started",
		zap.String("code", info.Code),
		zap.String("match", info.MatchID),
		zap.Strings("players", info.Players))
	s.broadcastState(sess)
	s.startTicking(sess)
	return nil
}

type leaderboardEntry struct {
	PlayerID    string    `json:"playerId"`
	Score       int       `json:"score"`
	Rank        int       `json:"rank"`
	MatchID     string    `json:"matchId"`
	SessionCode string    `json:"sessionCode"`
	RecordedAt  time.Time `json:"recordedAt"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameType := strings.TrimSpace(q.Get("game"))
	if gameType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "game required"})
		return
	}
	if _, ok := s.registry.Get(gameType); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown game type: " + gameType})
		return
	}
	limit := defaultLeaderboardLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLeaderboardLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	rows, err := s.manager.Leaderboard(gameType, limit)
	if err != nil {
		s.log.Error("leaderboard", zap.String("game", gameType), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "leaderboard unavailable"})
		return
	}
	entries := make([]leaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, leaderboardEntry{
			PlayerID:    row.PlayerID,
			Score:       row.Score,
			Rank:        row.Rank,
			MatchID:     row.MatchID,
			SessionCode: row.SessionCode,
			RecordedAt:  row.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
