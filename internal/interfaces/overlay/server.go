package overlay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/pkg/safego"
)

// Config binds the overlay server. Host should stay on loopback; the
// overlay runs on the same machine as the game client.
type Config struct {
	Host string
	Port int
}

// StatusProvider reports daemon state for the status endpoint.
type StatusProvider interface {
	StatusSnapshot() map[string]any
}

// Server exposes the websocket endpoint the overlay window attaches to,
// plus a small status surface for diagnostics.
type Server struct {
	server *http.Server
	hub    *Hub
	logger *zap.Logger
}

// NewServer builds the overlay HTTP server around the hub.
func NewServer(cfg Config, hub *Hub, status StatusProvider, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	router.GET("/status", func(c *gin.Context) {
		snap := map[string]any{"overlays": hub.ClientCount()}
		if status != nil {
			for k, v := range status.StatusSnapshot() {
				snap[k] = v
			}
		}
		c.JSON(http.StatusOK, snap)
	})
	router.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, cfg.Port),
			Handler: router,
		},
		hub:    hub,
		logger: logger.With(zap.String("component", "overlay-server")),
	}
}

// Hub exposes the frame broadcaster for wiring as an advisor sink.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub and listener in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting overlay server", zap.String("address", s.server.Addr))

	safego.Go(s.logger, "overlay-hub", func() { s.hub.Run(ctx) })
	safego.Go(s.logger, "overlay-listener", func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Overlay server error", zap.Error(err))
		}
	})
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping overlay server")
	return s.server.Shutdown(ctx)
}
