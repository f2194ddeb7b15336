// Package api serves the dashboard: a read-only snapshot HTTP API plus
// a WebSocket push channel for live events.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto-flow-radar/internal/engine"
	"crypto-flow-radar/internal/events"
	"crypto-flow-radar/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	eventBus   *events.EventBus
	config     ServerConfig
	hub        *WSHub
}

// NewServer creates a new API server
func NewServer(config ServerConfig, eng *engine.Engine, eventBus *events.EventBus) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		engine:   eng,
		eventBus: eventBus,
		config:   config,
		hub:      InitWebSocket(eventBus),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/alerts", s.handleAlerts)
		api.GET("/signals", s.handleSignals)
		api.GET("/liquidations", s.handleLiquidations)
		api.GET("/liquidations/:side/top", s.handleTopLiquidations)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("API server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.engine.Status()
	c.JSON(http.StatusOK, gin.H{
		"engine":     status,
		"ws_clients": s.hub.GetClientCount(),
	})
}

func (s *Server) handleAlerts(c *gin.Context) {
	alerts := s.engine.Alerts()
	if limit := queryLimit(c, len(alerts)); limit < len(alerts) {
		alerts = alerts[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleSignals(c *gin.Context) {
	signals := s.engine.Signals()
	if limit := queryLimit(c, len(signals)); limit < len(signals) {
		signals = signals[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) handleLiquidations(c *gin.Context) {
	view := s.engine.UnifiedView()
	c.JSON(http.StatusOK, gin.H{"assets": view, "count": len(view)})
}

func (s *Server) handleTopLiquidations(c *gin.Context) {
	var side models.Side
	switch strings.ToLower(c.Param("side")) {
	case "long":
		side = models.SideLong
	case "short":
		side = models.SideShort
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be long or short"})
		return
	}

	limit := queryLimit(c, 50)
	top := s.engine.TopAssets(side, limit)
	c.JSON(http.StatusOK, gin.H{"assets": top, "count": len(top)})
}

// queryLimit parses ?limit=, bounded by def
func queryLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > def {
		return def
	}
	return n
}
