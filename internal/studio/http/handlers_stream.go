package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/auth"
)

// streamEvents streams session-state updates over Server-Sent Events. The
// browser keeps one stream open per studio tab; updates fire whenever the
// serialized view changes (generation finished, fault recorded, auto-fix
// applied).
func (h *Handler) streamEvents(c *gin.Context) {
	userID := auth.UserDBID(c)
	projectID := c.Param("public_id")

	view, err := h.studio.State(c.Request.Context(), userID, projectID)
	if err != nil {
		respondErr(c, err)
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

	last, _ := json.Marshal(gin.H{"session": view})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", last)
	flusher.Flush()

	ctx := c.Request.Context()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	poll := time.NewTicker(1 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case <-poll.C:
			updated, err := h.studio.State(ctx, userID, projectID)
			if err != nil {
				continue
			}
			data, _ := json.Marshal(gin.H{"session": updated})
			if bytes.Equal(data, last) {
				continue
			}
			last = data

			fmt.Fprintf(c.Writer, "event: update\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
