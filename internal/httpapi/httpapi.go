// Package httpapi implements the Metrics & Explorer HTTP/WebSocket
// surface of spec.md §4.H, grounded on core/webserver/server.go's
// echo-based middleware/route layout and core/webserver/websocket.go's
// hub shape, with JWT bearer auth adapted (ES256 -> HS256, a single
// shared secret rather than a keypair) from
// ehrlich-b-wingthing/internal/relay/jwt.go.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
	xrate "golang.org/x/time/rate"

	"github.com/echocog/spiralmem/internal/gc"
	"github.com/echocog/spiralmem/internal/metrics"
	"github.com/echocog/spiralmem/internal/model"
	"github.com/echocog/spiralmem/internal/store"
)

// Config holds the server's own tunables (spec.md §6's metrics_port).
type Config struct {
	Port            int
	Host            string
	JWTSecret       string
	EnableRateLimit bool
	RateLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig matches the teacher's DefaultServerConfig shape,
// narrowed to what this surface needs.
func DefaultConfig() Config {
	return Config{
		Port: 9090, Host: "0.0.0.0",
		RateLimit:       100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the JWT-authenticated HTTP/WebSocket surface of spec.md
// §4.H.
type Server struct {
	echo   *echo.Echo
	cfg    Config
	store  *store.Store
	heap   *gc.Heap
	mx     *metrics.Metrics
	log    *zap.Logger
	start  time.Time
}

// New constructs a Server wired to st (for /api/spiral projections), hp
// (the GC heap, kept on the server but not read by any route), mx (the
// metrics registry exposed at /metrics) and log.
func New(cfg Config, st *store.Store, hp *gc.Heap, mx *metrics.Metrics, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, cfg: cfg, store: st, heap: hp, mx: mx, log: log}
	s.configureMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) configureMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if s.cfg.EnableRateLimit {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(xrate.Limit(s.cfg.RateLimit))))
	}
	s.echo.Use(middleware.RequestID())
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	auth := s.echo.Group("", s.jwtMiddleware)
	auth.GET("/metrics", s.handleMetrics)
	auth.GET("/api/spiral", s.handleSpiral)
	auth.GET("/ws", s.handleWebSocket)
}

// jwtMiddleware validates an HS256 bearer token against cfg.JWTSecret
// (spec.md §4.H: "JWT-authenticated routes"). No secret configured
// means no route under this group can ever authenticate; startup does
// not reject an empty metrics_jwt_secret.
func (s *Server) jwtMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		raw := header[len(prefix):]

		_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || s.cfg.JWTSecret == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleMetrics(c echo.Context) error {
	promhttp.HandlerFor(s.mx.Registry, promhttp.HandlerOpts{}).ServeHTTP(c.Response(), c.Request())
	return nil
}

// spiralNode is the §4.H projection of a single node.
type spiralNode struct {
	ID             string  `json:"id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Z              float64 `json:"z"`
	Type           string  `json:"type"`
	Depth          string  `json:"depth"`
	ResonanceHz    float64 `json:"resonance"`
	LastAccessedAt string  `json:"last_accessed_at"`
}

func (s *Server) projectNodes() []spiralNode {
	nodes, _ := s.store.Snapshot()
	out := make([]spiralNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, projectNode(n))
	}
	return out
}

// projectNode renders the 3-D projection spec.md §4.H calls for. The
// model carries no native z axis, so z is the node's turn count — the
// one other position coordinate that is not already x or y.
func projectNode(n *model.MemoryNode) spiralNode {
	return spiralNode{
		ID: n.ID, X: n.Position.X, Y: n.Position.Y, Z: float64(n.Position.Turn),
		Type: string(n.Type), Depth: string(n.Depth), ResonanceHz: n.Sigil.ResonanceHz,
		LastAccessedAt: n.LastAccessedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleSpiral(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"nodes": s.projectNodes()})
}

// handleWebSocket pushes an initial snapshot, then answers ping frames
// with pong until the client disconnects (spec.md §4.H).
func (s *Server) handleWebSocket(c echo.Context) error {
	websocket.Handler(func(ws *websocket.Conn) {
		defer ws.Close()

		if err := websocket.JSON.Send(ws, map[string]any{
			"type":  "snapshot",
			"nodes": s.projectNodes(),
		}); err != nil {
			return
		}

		for {
			var msg map[string]any
			if err := websocket.JSON.Receive(ws, &msg); err != nil {
				return
			}
			if msg["type"] == "ping" {
				_ = websocket.JSON.Send(ws, map[string]any{"type": "pong"})
			}
		}
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

// Start begins serving on cfg.Host:cfg.Port. Call in a goroutine; use
// Shutdown for graceful termination.
func (s *Server) Start() error {
	s.start = time.Now()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.echo.Server.ReadTimeout = s.cfg.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.WriteTimeout
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
