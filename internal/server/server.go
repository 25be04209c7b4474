package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/orgball2608/moments-playback-service/internal/feed"
	"github.com/orgball2608/moments-playback-service/internal/ratelimit"
	"github.com/orgball2608/moments-playback-service/internal/repositories/moment"
	"github.com/orgball2608/moments-playback-service/internal/server/response"
	"github.com/orgball2608/moments-playback-service/internal/ws"
	"github.com/orgball2608/moments-playback-service/pkg/config"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
	"go.uber.org/fx"
)

// viewerHeader carries the caller's identity. Authentication sits in front of
// this service; by the time a request lands here the gateway has verified the
// user and stamped the header.
const viewerHeader = "X-User-ID"

type Opts struct {
	fx.In

	LC         fx.Lifecycle
	Config     *config.Config
	Logger     logger.Logger
	Feed       feed.Builder
	MomentRepo moment.Repository
	Hub        *ws.Hub
	Factory    ws.SessionFactory
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	feed       feed.Builder
	momentRepo moment.Repository
	hub        *ws.Hub
	factory    ws.SessionFactory
	limiter    ratelimit.Limiter
	http       *http.Server
}

func New(opts Opts) *Server {
	s := &Server{
		config:     opts.Config,
		logger:     opts.Logger,
		feed:       opts.Feed,
		momentRepo: opts.MomentRepo,
		hub:        opts.Hub,
		factory:    opts.Factory,
		limiter: ratelimit.NewInMemoryLimiter(
			opts.Config.Limits.GesturesPerSec,
			time.Second,
			opts.Config.Limits.GestureBurst,
		),
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.App.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				s.logger.Info("HTTP server listening", "addr", s.http.Addr)
				if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("HTTP server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.http.Shutdown(ctx)
		},
	})

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/feed", s.requireViewer(s.handleFeed))
	mux.HandleFunc("POST /api/moments", s.requireViewer(s.handleCreateMoment))
	mux.HandleFunc("GET /ws", s.requireViewerWS(s.handleWebSocket))
	return mux
}

// requireViewer accepts identity only from the gateway-stamped header.
func (s *Server) requireViewer(next func(w http.ResponseWriter, r *http.Request, viewerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := r.Header.Get(viewerHeader)
		if viewerID == "" {
			_ = response.WriteJSON(w, http.StatusUnauthorized,
				response.GeneralError(errors.New("user identity missing")))
			return
		}
		next(w, r, viewerID)
	}
}

// requireViewerWS additionally accepts a user_id query parameter. Browser
// WebSocket clients cannot set headers on the upgrade request; the gateway
// still validates the value before proxying.
func (s *Server) requireViewerWS(next func(w http.ResponseWriter, r *http.Request, viewerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := r.Header.Get(viewerHeader)
		if viewerID == "" {
			viewerID = r.URL.Query().Get("user_id")
		}
		if viewerID == "" {
			_ = response.WriteJSON(w, http.StatusUnauthorized,
				response.GeneralError(errors.New("user identity missing")))
			return
		}
		next(w, r, viewerID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = response.WriteJSON(w, http.StatusOK, response.RequestOK("ok", nil))
}

var Module = fx.Provide(New)
