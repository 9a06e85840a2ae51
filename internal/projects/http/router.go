package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:public_id", h.get)
	rg.PATCH("/:public_id", h.rename)
	rg.DELETE("/:public_id", h.delete)
	rg.GET("/:public_id/snapshots", h.listSnapshots)
}

// RegisterSnapshots attaches snapshot routes that are not nested under a
// project path.
func (h *Handler) RegisterSnapshots(rg *gin.RouterGroup) {
	rg.DELETE("/:id", h.deleteSnapshot)
}
