// Package api exposes a live simulation session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/rgv-engine/internal/engine"
	"github.com/cxd309/rgv-engine/internal/scheduler"
	"github.com/cxd309/rgv-engine/internal/task"
)

const defaultInterval = 100 * time.Millisecond

type Server struct {
	session *engine.Session
	ctx     context.Context // parent of the session's ticker loop
	log     logrus.FieldLogger
}

// New constructs the HTTP router wired to the session. The ticker loop
// started through /sim/start stops when ctx is done.
func New(ctx context.Context, session *engine.Session, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{session: session, ctx: ctx, log: log}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/state", s.handleState)
	r.Get("/tasks", s.handleTasks)
	r.Post("/tasks", s.handleAddTask)
	r.Get("/events/speed", s.handleSpeedEvents)
	r.Get("/events/devices", s.handleDeviceEvents)
	r.Post("/step", s.handleStep)
	r.Post("/sim/start", s.handleSimStart)
	r.Post("/sim/pause", s.handleSimPause)

	return r
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	pending, assigned, completed := s.session.Tasks()
	writeJSON(w, http.StatusOK, map[string][]scheduler.TaskSnapshot{
		"pending":   pending,
		"assigned":  assigned,
		"completed": completed,
	})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := s.session.AddTask(t); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, scheduler.ErrDuplicateTask) || errors.Is(err, scheduler.ErrDuplicateMaterial) {
			status = http.StatusConflict
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleSpeedEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.SpeedEvents())
}

func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.DeviceEvents())
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DT float64 `json:"dt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DT <= 0 {
		writeJSONError(w, http.StatusBadRequest, "dt must be a positive number")
		return
	}
	writeJSON(w, http.StatusOK, s.session.Step(req.DT))
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntervalMS int `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "bad request")
		return
	}
	interval := defaultInterval
	if req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}
	if err := s.session.Start(s.ctx, interval); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.session.Pause()
	writeJSON(w, http.StatusOK, s.session.State())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start),
			}).Debug("request")
		})
	}
}
