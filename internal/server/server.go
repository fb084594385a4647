// Package server exposes the tool surface over HTTP: MCP streamable HTTP on
// /mcp plus a small JSON API for health, metrics and reminders.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"pokewatch/internal/metrics"
	"pokewatch/internal/tools"
)

const requestTimeout = 60 * time.Second

type Config struct {
	Addr        string
	CORSOrigins []string
}

type Server struct {
	svc  *tools.Service
	log  zerolog.Logger
	http *http.Server
}

func New(svc *tools.Service, mcp *mcpserver.MCPServer, cfg Config, log zerolog.Logger) *Server {
	s := &Server{svc: svc, log: log}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(mcp, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) routes(mcp *mcpserver.MCPServer, cfg Config) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	if mcp != nil {
		r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcp, mcpserver.WithStateLess(true)))
	}
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/health", s.handleHealth)
		r.Get("/tools", s.handleTools)
		r.Get("/reminders", s.handleListReminders)
		r.Post("/reminders", s.handleSetupReminder)
		r.Delete("/reminders/{id}", s.handleDisableReminder)
		r.Post("/reminders/check", s.handleCheckReminders)
		r.Get("/count/{username}", s.handleCount)
	})
	return r
}

// Start listens and serves until Shutdown. It returns nil on a clean stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	info := s.svc.ServerInfo()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"server_name":     info.Name,
		"version":         info.Version,
		"environment":     info.Environment,
		"x_configured":    info.XConfigured,
		"poke_configured": info.PokeConfigured,
		"api_calls_used":  info.APICallsUsed,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools.Names()})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.ListReminders(r.Context()))
}

type setupReminderRequest struct {
	Username         string `json:"username"`
	TimeOfDay        string `json:"time_of_day"`
	MinRequiredCount int    `json:"min_required_count"`
	Message          string `json:"message"`
}

func (s *Server) handleSetupReminder(w http.ResponseWriter, r *http.Request) {
	var req setupReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, tools.Result[struct{}]{
			Error:     &tools.Failure{Kind: tools.KindValidation, Message: "invalid JSON body: " + err.Error()},
			Timestamp: time.Now(),
		})
		return
	}
	if req.MinRequiredCount == 0 {
		req.MinRequiredCount = 1
	}
	writeResult(w, s.svc.SetupReminder(r.Context(), req.Username, req.TimeOfDay, req.MinRequiredCount, req.Message))
}

func (s *Server) handleDisableReminder(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.DisableReminder(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleCheckReminders(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.CheckReminders(r.Context()))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.svc.TweetCount(r.Context(), chi.URLParam(r, "username")))
}

type result interface {
	OK() bool
	Failure() *tools.Failure
}

func writeResult(w http.ResponseWriter, res result) {
	status := http.StatusOK
	if !res.OK() {
		f := res.Failure()
		status = StatusFor(f)
		if f != nil && f.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(f.RetryAfterSeconds))
		}
	}
	writeJSON(w, status, res)
}

// StatusFor maps a failure kind onto an HTTP status.
func StatusFor(f *tools.Failure) int {
	if f == nil {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case tools.KindValidation:
		return http.StatusBadRequest
	case tools.KindNotFound:
		return http.StatusNotFound
	case tools.KindRateLimited, tools.KindQuotaExhausted:
		return http.StatusTooManyRequests
	case tools.KindProvider, tools.KindDelivery:
		return http.StatusBadGateway
	case tools.KindConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
