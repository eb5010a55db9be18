package server

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"geosentry/api/internal/admission"
	"geosentry/api/internal/cache"
	"geosentry/api/internal/config"
	"geosentry/api/internal/devicestate"
	"geosentry/api/internal/eventbus"
	"geosentry/api/internal/geofenceindex"
	"geosentry/api/internal/handler"
	"geosentry/api/internal/ingest"
	"geosentry/api/internal/middleware"
	"geosentry/api/internal/service"
	"geosentry/api/internal/store"
	"geosentry/api/internal/trajectory"
	"geosentry/api/internal/webhookdispatch"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server wires the C1-C11 pipeline (store, cache, admission, geofence
// index, device state, trajectory segmenter, event bus, webhook
// dispatcher, ingest pipeline) into a Gin router.
type Server struct {
	router *gin.Engine
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn
	log    *zap.Logger

	wsHub      *handler.WSHub
	dispatcher *webhookdispatch.Dispatcher
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, logger *zap.Logger) *Server {
	return &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		nats:   natsConn,
		log:    logger,
	}
}

// Setup builds the domain stack and registers every route.
func (s *Server) Setup() {
	st := store.New(s.db)
	c := cache.New(s.redis)
	limiter := admission.New(s.redis)
	idx := geofenceindex.New()
	devices := devicestate.New(c)
	segmenter := trajectory.New(st)

	bus := eventbus.New(s.nats, s.log, eventbus.Config{
		GlobalSubject:      s.config.EventBus.GlobalSubject,
		DeviceSubjectFmt:   s.config.EventBus.DeviceSubject,
		GeofenceSubjectFmt: s.config.EventBus.GeofenceSubject,
	})

	s.dispatcher = webhookdispatch.New(st, c, s.log, s.config.Webhook.WorkerPoolSize, s.config.Webhook.QueueDepth)

	pipeline := ingest.New(st, idx, devices, segmenter, bus, s.dispatcher)

	s.wsHub = handler.NewWSHub(bus, s.log)
	go s.wsHub.Run()
	wsHandler := handler.NewWSHandler(s.wsHub, s.log)

	authService := service.NewAuthService(s.db)
	deviceService := service.NewDeviceService(st)
	geofenceService := service.NewGeofenceService(st, idx)
	webhookService := service.NewWebhookService(st)
	trajectoryService := service.NewTrajectoryService(st, segmenter)

	overrides := s.config.Admission.TierOverrides

	authHandler := handler.NewAuthHandler(authService, s.config)
	deviceHandler := handler.NewDeviceHandler(deviceService, trajectoryService, overrides)
	geofenceHandler := handler.NewGeofenceHandler(geofenceService, overrides)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	trajectoryHandler := handler.NewTrajectoryHandler(trajectoryService)
	ingestHandler := handler.NewIngestHandler(pipeline, s.config.Ingest.BulkConcurrency)

	s.router = gin.Default()

	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	s.router.POST("/api/v1/auth/login", authHandler.Login)

	s.router.GET("/ws/events", authHandler.AuthMiddleware(), wsHandler.Events)
	s.router.GET("/ws/stats", authHandler.AuthMiddleware(), wsHandler.Stats)

	api := s.router.Group("/api/v1")
	api.Use(authHandler.AuthMiddleware())
	if s.config.Admission.Enabled {
		api.Use(middleware.AdmissionMiddleware(limiter, overrides))
	}
	{
		api.GET("/auth/me", authHandler.GetMe)

		api.GET("/devices", deviceHandler.List)
		api.POST("/devices", deviceHandler.Create)
		api.POST("/devices/nearby", deviceHandler.Nearby)
		api.GET("/devices/:id", deviceHandler.Get)
		api.PUT("/devices/:id", deviceHandler.Update)
		api.DELETE("/devices/:id", deviceHandler.Delete)
		api.GET("/devices/:id/stats", deviceHandler.Stats)

		api.POST("/devices/:id/locations", ingestHandler.Create)
		api.POST("/locations/bulk", ingestHandler.Bulk)

		api.GET("/devices/:id/trajectories", trajectoryHandler.History)
		api.GET("/devices/:id/trajectories/latest", trajectoryHandler.Latest)
		api.GET("/trajectories/:id/points", trajectoryHandler.Points)

		api.GET("/geofences", geofenceHandler.List)
		api.POST("/geofences", geofenceHandler.Create)
		api.GET("/geofences/:id", geofenceHandler.Get)
		api.PUT("/geofences/:id", geofenceHandler.Update)
		api.DELETE("/geofences/:id", geofenceHandler.Delete)
		api.GET("/geofences/:id/events", geofenceHandler.GetEvents)

		webhookHandler.RegisterRoutes(api)
	}
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	log.Printf("geosentry: listening on %s", addr)
	return s.router.Run(addr)
}

// GetRouter returns the gin router, for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Shutdown stops the background workers cleanly.
func (s *Server) Shutdown() {
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
}
