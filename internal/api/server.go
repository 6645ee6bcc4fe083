// Package api exposes the course explorer over HTTP for editor frontends.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/auth"
	"github.com/tide-ide/tide/internal/events"
	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/tree"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// TreeResponse is the body of GET /api/v1/tree.
type TreeResponse struct {
	State   explorer.State `json:"state"`
	BuiltAt *time.Time     `json:"built_at,omitempty"`
	Items   []*models.Item `json:"items"`
}

// Server is the HTTP front of an Explorer.
type Server struct {
	exp     *explorer.Explorer
	auth    *auth.Auth
	version string
}

// NewServer creates a server. A nil auth disables token checks.
func NewServer(exp *explorer.Explorer, authHandler *auth.Auth, version string) *Server {
	if authHandler == nil {
		authHandler = auth.New("")
	}
	return &Server{
		exp:     exp,
		auth:    authHandler,
		version: version,
	}
}

// Handler returns the routed handler with logging, metrics and auth.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(logging.Middleware)
	router.Use(metrics.Middleware(routePattern))

	router.Get("/healthz", s.handleHealth)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/tree", s.handleTree)
		r.Get("/tree/children", s.handleChildren)
		r.Get("/summary", s.handleSummary)
		r.Get("/events", s.handleEvents)

		r.Post("/refresh", s.handleRefresh)
		r.Post("/wipe", s.handleWipe)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/open", s.handleOpen)
		r.Post("/open-all", s.handleOpenAll)
	})
	return router
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"state":   string(s.exp.State()),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	resp := TreeResponse{State: s.exp.State(), Items: s.exp.Items(r.Context())}
	if built := s.exp.BuiltAt(); !built.IsZero() {
		resp.BuiltAt = &built
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	items, err := s.exp.ChildItems(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.exp.Summaries(r.Context())
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"courses": sums})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.exp.Refresh(r.Context(), explorer.TriggerManual); err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "refreshed",
		"nodes":  tree.CountForest(s.exp.Roots()),
	})
}

func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	if err := s.exp.Wipe(r.Context()); err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Username == "" {
		if c := auth.GetClaims(r.Context()); c != nil {
			req.Username = c.Username
		}
	}
	if err := s.exp.Login(r.Context(), req.Username); err != nil && !errors.Is(err, explorer.ErrConfigurationMissing) {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "logged_in", "username": req.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.exp.Logout(r.Context()); err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		sendError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := s.exp.OpenTask(r.Context(), path); err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "opened", "path": path})
}

func (s *Server) handleOpenAll(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		sendError(w, http.StatusBadRequest, "path is required")
		return
	}
	n, err := s.exp.OpenTasksIn(r.Context(), path)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"status": "opened", "opened": n})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	b := s.exp.Events()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
			flusher.Flush()
		}
	}
}

// statusFor maps explorer errors onto HTTP codes.
func statusFor(err error) int {
	var oerr *explorer.OpenError
	switch {
	case errors.Is(err, explorer.ErrUnauthenticated):
		return http.StatusForbidden
	case errors.Is(err, explorer.ErrConfigurationMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, explorer.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.As(err, &oerr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Named("api").Error("request failed", zap.Error(err))
	}
	sendJSON(w, code, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: logging.GetRequestID(r.Context()),
	})
}

func sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, ErrorResponse{Error: message, Code: code})
}
