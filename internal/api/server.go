// Package api serves the dashboard over HTTP: JSON read models, alert
// management and a websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/rewired-gh/tokenpulse/internal/alerts"
	"github.com/rewired-gh/tokenpulse/internal/analytics"
	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/metrics"
	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
	"github.com/rewired-gh/tokenpulse/internal/view"
)

// Dashboard is the core the server reads from and drives.
type Dashboard interface {
	Store() *tokens.Store
	Alerts() *alerts.Engine
	RecentTriggers() []models.Trigger
	Refresh(ctx context.Context) error
}

type Server struct {
	dash    Dashboard
	hub     *Hub
	origins originPolicy
	mux     *http.ServeMux
}

// NewServer wires the routes. allowedOrigins restricts CORS; empty allows any.
func NewServer(dash Dashboard, hub *Hub, allowedOrigins []string) *Server {
	s := &Server{dash: dash, hub: hub, origins: originPolicy(allowedOrigins), mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/tokens", s.handleTokens)
	s.mux.HandleFunc("GET /api/tokens/{id}", s.handleToken)
	s.mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	s.mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	s.mux.HandleFunc("POST /api/alerts", s.handleCreateAlert)
	s.mux.HandleFunc("POST /api/alerts/{id}/toggle", s.handleToggleAlert)
	s.mux.HandleFunc("POST /api/alerts/{id}/reset", s.handleResetAlert)
	s.mux.HandleFunc("DELETE /api/alerts/{id}", s.handleRemoveAlert)
	s.mux.HandleFunc("GET /api/triggers", s.handleTriggers)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.hub != nil {
		s.mux.Handle("GET /ws", s.hub)
	}
}

func (s *Server) Handler() http.Handler {
	return withCORS(s.origins, s.mux)
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.hub != nil {
			s.hub.Close()
		}
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tokensResponse struct {
	Tokens  []models.Token          `json:"tokens"`
	Counts  map[models.Category]int `json:"counts"`
	Version uint64                  `json:"version"`
	Loading bool                    `json:"loading"`
	Error   string                  `json:"error,omitempty"`
}

// handleTokens serves one tab of the filtered and sorted view. Query
// parameters: tab, sort, dir, q and {price,volume,change}_{min,max}.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	settings, err := parseSettings(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.dash.Store().Snapshot()
	writeJSON(w, http.StatusOK, tokensResponse{
		Tokens:  view.Apply(snap, settings),
		Counts:  view.CountByCategory(view.Filter(snap.Tokens, settings.Criteria)),
		Version: snap.Version,
		Loading: snap.Loading,
		Error:   snap.Error,
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := s.dash.Store().Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Summarize(s.dash.Store().Snapshot().Tokens))
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Alerts().List())
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alerts.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TokenSymbol == "" {
		if tok, ok := s.dash.Store().Get(req.TokenID); ok {
			req.TokenSymbol = tok.Symbol
		}
	}
	a, err := s.dash.Alerts().Create(req)
	if err != nil {
		writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleToggleAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.dash.Alerts().Toggle(r.PathValue("id"))
	if err != nil {
		writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.dash.Alerts().Reset(r.PathValue("id"))
	if err != nil {
		writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	if !s.dash.Alerts().Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, alerts.ErrAlertNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.RecentTriggers())
}

type healthResponse struct {
	Status        string `json:"status"`
	Tokens        int    `json:"tokens"`
	StreamClients int    `json:"streamClients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Tokens: s.dash.Store().Len()}
	if s.hub != nil {
		resp.StreamClients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if s.hub != nil {
		_ = s.hub.Broadcast(EventRefreshed, map[string]int{"tokens": s.dash.Store().Len()})
	}
	writeJSON(w, http.StatusOK, map[string]int{"tokens": s.dash.Store().Len()})
}

func parseSettings(r *http.Request) (view.Settings, error) {
	q := r.URL.Query()
	settings := view.DefaultSettings()

	if tab := q.Get("tab"); tab != "" {
		settings.Tab = models.Category(tab)
		if !settings.Tab.Valid() {
			return settings, errors.New("unknown tab: " + tab)
		}
	}
	if field := q.Get("sort"); field != "" {
		settings.Sort.Field = models.SortField(field)
		if !settings.Sort.Field.Valid() {
			return settings, errors.New("unknown sort field: " + field)
		}
	}
	switch dir := models.SortDirection(q.Get("dir")); dir {
	case "":
	case models.Ascending, models.Descending:
		settings.Sort.Direction = dir
	default:
		return settings, errors.New("dir must be asc or desc")
	}

	settings.Criteria.SearchQuery = q.Get("q")
	var err error
	if settings.Criteria.PriceRange, err = parseRange(q.Get("price_min"), q.Get("price_max")); err != nil {
		return settings, err
	}
	if settings.Criteria.VolumeRange, err = parseRange(q.Get("volume_min"), q.Get("volume_max")); err != nil {
		return settings, err
	}
	if settings.Criteria.ChangeRange, err = parseRange(q.Get("change_min"), q.Get("change_max")); err != nil {
		return settings, err
	}
	return settings, nil
}

func parseRange(minStr, maxStr string) (models.Range, error) {
	var r models.Range
	if minStr != "" {
		v, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return r, errors.New("invalid range bound: " + minStr)
		}
		r.Min = &v
	}
	if maxStr != "" {
		v, err := strconv.ParseFloat(maxStr, 64)
		if err != nil {
			return r, errors.New("invalid range bound: " + maxStr)
		}
		r.Max = &v
	}
	return r, nil
}

func writeAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, alerts.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// originPolicy lists the browser origins allowed to call the API. Empty
// allows any; requests without an Origin header are not browser
// cross-origin requests and always pass.
type originPolicy []string

func (p originPolicy) allows(origin string) bool {
	return len(p) == 0 || origin == "" || slices.Contains(p, origin)
}

func withCORS(origins originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(origins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && origins.allows(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
