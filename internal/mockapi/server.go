// Package mockapi implements the voting backend the UI develops against: a
// small HTTP API with real vote bookkeeping and injectable latency and
// failures, so client-side rollback paths can be exercised on demand.
package mockapi

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/codyrutscher/voting-app/internal/voting"
)

// Options configure the mock server.
type Options struct {
	// Session and Contestants seed the server state. Zero values fall back
	// to the built-in demo roster.
	Session     voting.Session
	Contestants []voting.Contestant
	// MinLatency and MaxLatency bound the artificial delay added to every
	// request. Both zero means no delay.
	MinLatency time.Duration
	MaxLatency time.Duration
	// FailureRate in [0, 1] is the chance a vote request fails with an
	// injected 500 before any bookkeeping happens.
	FailureRate float64
	// Seed makes latency and failure injection reproducible. Zero seeds
	// from the clock.
	Seed int64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is an http.Handler implementing the voting API.
type Server struct {
	router chi.Router
	log    *slog.Logger

	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64

	mu          sync.Mutex
	rng         *rand.Rand
	session     voting.Session
	contestants []voting.Contestant
	votes       map[string]map[string]bool // userID -> voted contestant ids
}

// NewServer builds a Server from the options.
func NewServer(opts Options) *Server {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := opts.Session
	contestants := opts.Contestants
	if session.ID == "" {
		session = DemoSession()
	}
	if len(contestants) == 0 {
		contestants = DemoContestants()
	}

	s := &Server{
		log:         logger,
		minLatency:  opts.MinLatency,
		maxLatency:  opts.MaxLatency,
		failureRate: opts.FailureRate,
		rng:         rand.New(rand.NewSource(seed)),
		session:     session,
		contestants: contestants,
		votes:       make(map[string]map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/session", s.handleSession)
	r.Get("/api/contestants", s.handleContestants)
	r.Post("/api/votes", s.handleVote)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	s.mu.Lock()
	payload := voting.SessionResponse{Session: s.session}
	payload.Session.ContestantIDs = append([]string(nil), s.session.ContestantIDs...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleContestants(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()
	s.mu.Lock()
	payload := voting.ContestantListResponse{
		Contestants: append([]voting.Contestant(nil), s.contestants...),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	s.simulateLatency()

	if s.injectFailure() {
		s.log.Warn("injected vote failure")
		writeJSON(w, http.StatusInternalServerError, voting.SubmitResponse{Error: "INJECTED_FAILURE"})
		return
	}

	var req voting.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ContestantID) == "" || strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "contestantId and sessionId are required", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = uuid.NewString()
		w.Header().Set("X-User-Id", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.SessionID != s.session.ID || !s.session.WindowOpen(time.Now()) {
		s.reject(w, userID, req.ContestantID, voting.ReasonVotingClosed)
		return
	}

	idx := -1
	for i := range s.contestants {
		if s.contestants[i].ID == req.ContestantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.reject(w, userID, req.ContestantID, voting.ReasonInvalidContestant)
		return
	}
	if !s.contestants[idx].Active {
		s.reject(w, userID, req.ContestantID, voting.ReasonContestantInactive)
		return
	}

	voted := s.votes[userID]
	if voted == nil {
		voted = make(map[string]bool)
		s.votes[userID] = voted
	}
	if voted[req.ContestantID] {
		s.reject(w, userID, req.ContestantID, voting.ReasonAlreadyVoted)
		return
	}
	if len(voted) >= s.session.MaxVotesPerUser {
		s.reject(w, userID, req.ContestantID, voting.ReasonLimitExceeded)
		return
	}

	voted[req.ContestantID] = true
	s.contestants[idx].VoteCount++
	s.log.Info("vote registered",
		"user", userID,
		"contestant", req.ContestantID,
		"count", s.contestants[idx].VoteCount)
	writeJSON(w, http.StatusOK, voting.SubmitResponse{
		Success:   true,
		VoteCount: s.contestants[idx].VoteCount,
	})
}

func (s *Server) reject(w http.ResponseWriter, userID, contestantID string, reason voting.Reason) {
	s.log.Info("vote rejected", "user", userID, "contestant", contestantID, "reason", string(reason))
	writeJSON(w, http.StatusConflict, voting.SubmitResponse{Error: string(reason)})
}

func (s *Server) simulateLatency() {
	if s.maxLatency <= 0 {
		return
	}
	s.mu.Lock()
	span := s.maxLatency - s.minLatency
	delay := s.minLatency
	if span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span)))
	}
	s.mu.Unlock()
	time.Sleep(delay)
}

func (s *Server) injectFailure() bool {
	if s.failureRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failureRate
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
