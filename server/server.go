package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"GuildFM/logger"

	"github.com/gorilla/mux"
)

// NewRouter registers the control API routes.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/auth/token", h.TokenHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/guilds", h.AuthMiddleware(h.ListGuildsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/guilds/{guildId}/queue", h.AuthMiddleware(h.GetQueueHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/guilds/{guildId}/queue", h.AuthMiddleware(h.EnqueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/guilds/{guildId}/play", h.AuthMiddleware(h.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/guilds/{guildId}/skip", h.AuthMiddleware(h.SkipHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/guilds/{guildId}/stop", h.AuthMiddleware(h.StopHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/guilds/{guildId}/history", h.AuthMiddleware(h.HistoryHandler)).Methods(http.MethodGet)

	router.HandleFunc("/api/events", h.AuthMiddleware(h.EventsHandler)).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return router
}

// Server wraps the HTTP server of the control API.
type Server struct {
	httpServer *http.Server
	cancel     context.CancelFunc
}

// NewServer 创建控制 API 服务
func NewServer(addr string, h *APIHandler) *Server {
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		cancel: cancel,
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("control API listening", logger.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Cancelling
// the base context ends hijacked websocket streams, which Shutdown does not track.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down control API...")
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}
