// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/advisory"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxHistoryLimit   = 500
)

// Backend is the acquisition surface the API exposes.
type Backend interface {
	State() acquisition.State
	Request(ctx context.Context, trigger string)
	Subscribe(buffer int) (<-chan acquisition.State, func())
	Advisory() (*advisory.Advisory, geocode.Address)
}

// History lists recorded resolutions.
type History interface {
	Latest(ctx context.Context) (store.Resolution, error)
	List(ctx context.Context, limit int) ([]store.Resolution, error)
}

type Server struct {
	log     *logger.Logger
	backend Backend
	history History
	router  *mux.Router
	srv     *http.Server
}

type positionResponse struct {
	Status acquisition.Status `json:"status"`
	acquisition.State
}

type advisoryResponse struct {
	Advisory *advisory.Advisory `json:"advisory"`
	Address  geocode.Address    `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a Server listening on addr. history and metrics may be nil, their routes then
// answer with 404.
func New(log *logger.Logger, addr string, backend Backend, history History, metrics http.Handler) *Server {
	s := &Server{
		log:     log,
		backend: backend,
		history: history,
		router:  mux.NewRouter(),
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/position", s.handlePosition).Methods(http.MethodGet)
	v1.HandleFunc("/position/request", s.handleRequest).Methods(http.MethodPost)
	v1.HandleFunc("/position/history", s.handleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/position/history/latest", s.handleLatest).Methods(http.MethodGet)
	v1.HandleFunc("/position/ws", s.handleStream).Methods(http.MethodGet)
	v1.HandleFunc("/advisory", s.handleAdvisory).Methods(http.MethodGet)
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	s.router.Use(s.logRequests)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting API server", slog.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve API: %w", err)
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(ctxShutdown); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		return nil
	}
}

func (s *Server) handlePosition(w http.ResponseWriter, _ *http.Request) {
	state := s.backend.State()
	s.writeJSON(w, http.StatusOK, positionResponse{Status: state.Status(), State: state})
}

// handleRequest triggers a request and answers with the snapshot taken right after the trigger.
// That is usually loading, capabilities that answer synchronously may already report the outcome.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	s.backend.Request(context.WithoutCancel(r.Context()), "api")
	state := s.backend.State()
	s.writeJSON(w, http.StatusAccepted, positionResponse{Status: state.Status(), State: state})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "resolution history is disabled"})
		return
	}
	limit := 50
	if val := r.URL.Query().Get("limit"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	list, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to list resolution history", logger.Err(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list history"})
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "resolution history is disabled"})
		return
	}
	latest, err := s.history.Latest(r.Context())
	switch {
	case errors.Is(err, store.ErrNoRecords):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no resolution recorded yet"})
	case err != nil:
		s.log.Error("failed to read latest resolution", logger.Err(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read history"})
	default:
		s.writeJSON(w, http.StatusOK, latest)
	}
}

func (s *Server) handleAdvisory(w http.ResponseWriter, _ *http.Request) {
	adv, addr := s.backend.Advisory()
	if adv == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no advisory available yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, advisoryResponse{Advisory: adv, Address: addr})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode API response", logger.Err(err))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("API request served", slog.String("method", r.Method),
			slog.String("path", r.URL.Path), slog.Duration("duration", time.Since(start)))
	})
}
