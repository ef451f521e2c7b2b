package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"options-relay/internal/auth"
	"options-relay/internal/cache"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
)

// ServerConfig configures the HTTP/WebSocket listener (§6, grounded on
// internal/api.ServerConfig).
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the outward-facing half of the Relay Core: a gin router
// exposing /health, a small read-only status surface, and the /ws
// command-and-broadcast endpoint. Grounded on internal/api/server.go's
// Server (gin.New + Logger/Recovery + cors middleware, http.Server with
// explicit timeouts, graceful Shutdown).
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        ServerConfig
	hub        *Hub
	core       *Core
	lot        *lot.Coordinator
	cache      *cache.Service
	log        *logging.Logger
	upgrader   websocket.Upgrader
	authMgr    *auth.Manager
}

// NewServer builds the router and registers routes, but does not start
// listening; call Start for that. authMgr is nil when AuthConfig.Enabled is
// false, in which case every route is open (single-operator dev mode).
// cacheSvc may be nil in tests; in normal wiring it's always set and
// simply degrades its own operations when RedisConfig.Enabled is false.
func NewServer(cfg ServerConfig, hub *Hub, core *Core, lotCoordinator *lot.Coordinator, cacheSvc *cache.Service, authMgr *auth.Manager, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}

	s := &Server{
		router:  router,
		cfg:     cfg,
		hub:     hub,
		core:    core,
		lot:     lotCoordinator,
		cache:   cacheSvc,
		log:     log.WithComponent("relay-server"),
		authMgr: authMgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}

	var guard []gin.HandlerFunc
	if authMgr != nil {
		guard = append(guard, auth.Middleware(authMgr))
	}

	router.GET("/health", s.handleHealth)
	router.GET("/status/:asset", append(guard, s.handleStatus)...)
	router.GET("/lot", append(guard, s.handleLot)...)
	router.GET("/ws", s.handleWebSocket)

	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"workers": s.core.WorkerCount(),
	})
}

// handleStatus serves the latest cached FullAnalysis for one asset without
// touching a worker goroutine (§9 design note: REST reads go through the
// cache, never through a worker's mailbox).
func (s *Server) handleStatus(c *gin.Context) {
	asset := c.Param("asset")
	if s.cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis cache disabled"})
		return
	}

	snap, err := s.cache.GetAnalysisSnapshot(c.Request.Context(), asset)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for asset", "asset": asset})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleLot reports a read-only snapshot of the Lot Coordinator's current
// state (§4.7, §6.2's lot_status shape).
func (s *Server) handleLot(c *gin.Context) {
	if s.lot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lot coordinator unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.lot.Snapshot())
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if s.authMgr != nil {
		if _, err := auth.AuthorizeUpgrade(s.authMgr, c.Request); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Serve(conn, s.core.Dispatch)
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.Info("relay server listening", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
