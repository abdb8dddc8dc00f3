package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/poller"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// BackgroundTrigger is the part of the poller the HTTP API exposes.
type BackgroundTrigger interface {
	RunOnce(ctx context.Context) poller.CycleReport
	Stats() poller.Stats
}

// -----------------------------------------------------------------------------
// HubServer
// -----------------------------------------------------------------------------

type HubServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	wsLog   *logger.Logger
	engine  *gin.Engine
	http    *http.Server
	agg     *aggregator.Aggregator
	poller  BackgroundTrigger
	metrics *observability.Metrics

	// WebSocket clients
	clients       map[*Client]struct{}
	clientTotal   atomic.Int64
	broadcast     chan *models.MMtmUpdate
	register      chan *Client
	unregister    chan *Client
	subscriptions chan subscription
	done          chan struct{}
	stopOnce      sync.Once

	// Last update per account, replayed to new subscribers
	latest     map[string]*models.MMtmUpdate
	stateMutex sync.RWMutex
}

var _ interfaces.IDataExchanger = (*HubServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewHubServer builds the HTTP API. bg may be nil when the poller is disabled.
func NewHubServer(cfg *models.MConfig, agg *aggregator.Aggregator, bg BackgroundTrigger,
	metrics *observability.Metrics, logger *logger.Logger) *HubServer {

	// Set Gin mode
	if cfg.LogLevel != "DEBUG" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HubServer{
		Config:  cfg,
		Logger:  logger,
		wsLog:   logger.Named("WebSocket"),
		engine:  gin.New(),
		agg:     agg,
		poller:  bg,
		metrics: metrics,

		clients: make(map[*Client]struct{}),
		// Buffered so aggregator callers never wait on the hub
		broadcast:     make(chan *models.MMtmUpdate, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(chan subscription),
		done:          make(chan struct{}),
		latest:        make(map[string]*models.MMtmUpdate),
	}

	s.engine.Use(gin.Recovery())
	if cfg.LogLevel == "DEBUG" {
		s.engine.Use(gin.Logger())
	}

	// CORS: dashboards are served from arbitrary hosts on the LAN
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HubServer) setupRoutes() {
	// Dashboard API
	s.engine.GET("/MTM", s.getMTM)
	s.engine.GET("/history", s.getHistory)
	s.engine.GET("/users", s.getUsers)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/config", s.getConfig)
	s.engine.GET("/db-debug", s.getDBDebug)
	s.engine.GET("/minute-markers", s.getMinuteMarkers)

	// Admin
	s.engine.POST("/reset/:user_id", s.resetAccount)
	s.engine.POST("/reset-all", s.resetAll)
	s.engine.POST("/trigger-background-fetch", s.triggerBackgroundFetch)

	// Ops
	s.engine.GET("/health", s.getHealth)
	if s.metrics != nil && s.Config.MetricsEnabled {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *HubServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub loop and blocks serving HTTP until Stop.
func (s *HubServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *HubServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.http.Shutdown(ctx)
		}
	})
	return err
}
