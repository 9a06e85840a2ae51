package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/auth"
	"github.com/shojbahmed330/appify-backend/internal/generation"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
	"github.com/shojbahmed330/appify-backend/internal/studio"
)

type Handler struct {
	studio *studio.Manager
}

func NewHandler(m *studio.Manager) *Handler {
	return &Handler{studio: m}
}

func (h *Handler) state(c *gin.Context) {
	view, err := h.studio.State(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

// preview serves the file-set for the preview pane. With ?snapshot_id= it
// returns a point-in-time view without touching the working files.
func (h *Handler) preview(c *gin.Context) {
	files, err := h.studio.Preview(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), c.Query("snapshot_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "files": files})
}

type sendRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Image    string `json:"image,omitempty"` // data URL
	HighTier bool   `json:"high_tier"`
}

func (h *Handler) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "prompt is required"})
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid image payload"})
		return
	}

	view, err := h.studio.Send(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), req.Prompt, image, req.HighTier)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

type faultRequest struct {
	Message string `json:"message" binding:"required"`
	Line    int    `json:"line"`
	Source  string `json:"source"`
	Stack   string `json:"stack,omitempty"`
}

func (h *Handler) reportFault(c *gin.Context) {
	var req faultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "message is required"})
		return
	}

	view, err := h.studio.ReportFault(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), studio.RuntimeFault{
		Message: req.Message,
		Line:    req.Line,
		Source:  req.Source,
		Stack:   req.Stack,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

type addFileRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) addFile(c *gin.Context) {
	var req addFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "path is required"})
		return
	}
	view, err := h.studio.AddFile(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), req.Path)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "session": view})
}

type updateFileRequest struct {
	Content string `json:"content"`
	Rename  string `json:"rename,omitempty"`
}

func (h *Handler) updateFile(c *gin.Context) {
	path := filePath(c)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file path is required"})
		return
	}

	var req updateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	userID := auth.UserDBID(c)
	projectID := c.Param("public_id")

	var (
		view studio.View
		err  error
	)
	if req.Rename != "" {
		view, err = h.studio.RenameFile(c.Request.Context(), userID, projectID, path, req.Rename)
	} else {
		view, err = h.studio.UpdateFile(c.Request.Context(), userID, projectID, path, req.Content)
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

func (h *Handler) deleteFile(c *gin.Context) {
	path := filePath(c)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file path is required"})
		return
	}
	view, err := h.studio.DeleteFile(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), path)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

func (h *Handler) updateConfig(c *gin.Context) {
	var cfg projdomain.ProjectConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid config payload"})
		return
	}
	view, err := h.studio.UpdateConfig(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), cfg)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

type tabRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) openTab(c *gin.Context)   { h.tabOp(c, h.studio.OpenTab) }
func (h *Handler) closeTab(c *gin.Context)  { h.tabOp(c, h.studio.CloseTab) }
func (h *Handler) selectTab(c *gin.Context) { h.tabOp(c, h.studio.SelectTab) }

func (h *Handler) tabOp(c *gin.Context, op func(ctx context.Context, userID, projectID, path string) (studio.View, error)) {
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "path is required"})
		return
	}
	view, err := op(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), req.Path)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

func (h *Handler) rollback(c *gin.Context) {
	view, err := h.studio.Rollback(c.Request.Context(), auth.UserDBID(c), c.Param("public_id"), c.Param("snapshot_id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": view})
}

func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, projdomain.ErrProjectNotFound), errors.Is(err, projdomain.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, studio.ErrGenerationInFlight):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

// filePath extracts the wildcard file path, trimming gin's leading slash.
func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

// decodeImage converts a data URL into an inline image part. An empty
// input means no image was attached.
func decodeImage(dataURL string) (*generation.Image, error) {
	if dataURL == "" {
		return nil, nil
	}
	meta, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return &generation.Image{Data: data, MimeType: mime}, nil
}
