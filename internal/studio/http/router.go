package http

import "github.com/gin-gonic/gin"

// Register attaches studio session routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/:public_id", h.state)
	rg.GET("/:public_id/events", h.streamEvents)
	rg.GET("/:public_id/preview", h.preview)
	rg.POST("/:public_id/send", h.send)
	rg.POST("/:public_id/fault", h.reportFault)
	rg.POST("/:public_id/files", h.addFile)
	rg.PUT("/:public_id/files/*path", h.updateFile)
	rg.DELETE("/:public_id/files/*path", h.deleteFile)
	rg.PUT("/:public_id/config", h.updateConfig)
	rg.POST("/:public_id/tabs/open", h.openTab)
	rg.POST("/:public_id/tabs/close", h.closeTab)
	rg.POST("/:public_id/tabs/select", h.selectTab)
	rg.POST("/:public_id/rollback/:snapshot_id", h.rollback)
}
