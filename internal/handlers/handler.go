package handlers

import (
	"github.com/E3dvis/cronustraining/internal/logger"
	"github.com/E3dvis/cronustraining/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	auth := router.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}

	// Versioned API endpoints (protected)
	api := router.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerChannelRoutes(api)
		h.registerDeviceRoutes(api)
		api.GET("/logs", h.getLogs)
	}

	// Live snapshot stream (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerChannelRoutes(api *gin.RouterGroup) {
	ch := api.Group("/channels/:id")
	{
		ch.POST("/start", h.startRun)
		ch.POST("/stop", h.stopRun)
		ch.GET("/state", h.getRunState)
		ch.GET("/range", h.getRange)
		ch.GET("/results.csv", h.getResultsCSV)
		ch.GET("/power.csv", h.getPowerCSV)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	dev := api.Group("/device")
	{
		dev.GET("", h.getDevice)
		dev.POST("/off", h.deviceOff)
	}
}
