package http

import "github.com/gin-gonic/gin"

// Register attaches build routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/:public_id/build", h.trigger)
	rg.GET("/:public_id/build", h.status)
	rg.GET("/:public_id/build/stream", h.streamBuildEvents)
	rg.GET("/:public_id/artifact", h.downloadArtifact)
}
