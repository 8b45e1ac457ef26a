package simulator

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/dyluth/warren/pkg/maze"
)

// Server serves the contest API (/select, /explore, /guess) over simulated
// mazes. Each team gets its own copy of the selected problem; a guess ends
// the team's session.
type Server struct {
	mu       sync.Mutex
	problems map[string]Problem
	active   map[string]*Maze
}

// NewServer returns a server offering the built-in problems plus extra.
func NewServer(extra ...Problem) *Server {
	s := &Server{
		problems: make(map[string]Problem),
		active:   make(map[string]*Maze),
	}
	for name, p := range builtin {
		s.problems[name] = p
	}
	for _, p := range extra {
		s.problems[p.Name] = p
	}
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/select", s.selectHandler)
	mux.HandleFunc("/explore", s.exploreHandler)
	mux.HandleFunc("/guess", s.guessHandler)
	return mux
}

// Active returns the maze a team is currently solving.
func (s *Server) Active(team string) (*Maze, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.active[team]
	return m, ok
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req maze.SelectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" || req.ProblemName == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	s.mu.Lock()
	p, ok := s.problems[req.ProblemName]
	if ok {
		m, err := New(p)
		if err != nil {
			s.mu.Unlock()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.active[req.ID] = m
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown problem: %s", req.ProblemName))
		return
	}
	log.Printf("[Simulator] Team %s selected problem %s", req.ID, req.ProblemName)
	writeJSON(w, http.StatusOK, maze.SelectResponse{ProblemName: req.ProblemName})
}

func (s *Server) exploreHandler(w http.ResponseWriter, r *http.Request) {
	var req maze.ExploreRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := s.Active(req.ID)
	if !ok {
		writeError(w, http.StatusBadRequest, "no problem selected, use /select first")
		return
	}

	results, err := m.Explore(r.Context(), req.Plans)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, maze.ExploreResponse{Results: results, QueryCount: m.Queries()})
}

func (s *Server) guessHandler(w http.ResponseWriter, r *http.Request) {
	var req maze.GuessRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := s.Active(req.ID)
	if !ok {
		writeError(w, http.StatusBadRequest, "no problem selected, use /select first")
		return
	}

	correct, err := m.Guess(r.Context(), &req.Map)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	delete(s.active, req.ID)
	s.mu.Unlock()

	log.Printf("[Simulator] Team %s guessed %s: correct=%t", req.ID, m.problem.Name, correct)
	writeJSON(w, http.StatusOK, maze.GuessResponse{Correct: correct})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, maze.ErrorResponse{Error: msg})
}
