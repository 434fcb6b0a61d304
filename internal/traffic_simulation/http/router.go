package http

import "github.com/gin-gonic/gin"

// Register registers the traffic simulation routes
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/networks", h.ListNetworks)

	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:id", h.GetSession)
	rg.PUT("/sessions/:id", h.UpdateSession)
	rg.DELETE("/sessions/:id", h.DeleteSession)
	rg.GET("/sessions/:id/congestion", h.GetCongestion)
	rg.GET("/sessions/:id/vehicles", h.GetVehicles)
	rg.GET("/sessions/:id/reroutes", h.GetReroutes)
	rg.GET("/sessions/:id/telemetry", h.GetTelemetry)
	rg.GET("/sessions/:id/events", h.StreamSessionEvents)

	rg.POST("/sensors/placement", h.PlaceSensors)
}
