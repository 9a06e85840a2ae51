package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamBuildEvents streams build-state updates over Server-Sent Events.
// The browser keeps one stream open per project while a build is running;
// the poll goroutine writes state to Redis and this handler relays changes.
func (h *Handler) streamBuildEvents(c *gin.Context) {
	projectID := c.Param("public_id")

	run, err := h.builds.Status(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get build"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	initial, _ := json.Marshal(gin.H{"build": run})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", initial)
	flusher.Flush()

	ctx := c.Request.Context()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	poll := time.NewTicker(1 * time.Second)
	defer poll.Stop()

	lastUpdatedAt := run.UpdatedAt

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case <-poll.C:
			updated, err := h.builds.Status(ctx, projectID)
			if err != nil {
				continue
			}
			if updated.UpdatedAt.After(lastUpdatedAt) {
				lastUpdatedAt = updated.UpdatedAt

				data, _ := json.Marshal(gin.H{"build": updated})
				fmt.Fprintf(c.Writer, "event: update\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}
