package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/auth"
	"github.com/shojbahmed330/appify-backend/internal/forge/domain"
	"github.com/shojbahmed330/appify-backend/internal/forge/service"
	projdomain "github.com/shojbahmed330/appify-backend/internal/projects/domain"
	projservice "github.com/shojbahmed330/appify-backend/internal/projects/service"
)

type Handler struct {
	builds   *service.BuildService
	projects *projservice.ProjectService
}

func NewHandler(builds *service.BuildService, projects *projservice.ProjectService) *Handler {
	return &Handler{builds: builds, projects: projects}
}

func (h *Handler) trigger(c *gin.Context) {
	userID := auth.UserDBID(c)
	projectID := c.Param("public_id")

	p, err := h.projects.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, projdomain.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": "project not found"})
		return
	}

	run, err := h.builds.Trigger(c.Request.Context(), userID, projectID, p.Files, p.Config)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialRequired) {
			// No state transition happened; the UI routes to setup.
			c.JSON(http.StatusConflict, gin.H{"ok": false, "setup_required": true, "error": "github token required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "build": run})
}

func (h *Handler) status(c *gin.Context) {
	run, err := h.builds.Status(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "build": run})
}

func (h *Handler) downloadArtifact(c *gin.Context) {
	userID := auth.UserDBID(c)
	data, err := h.builds.DownloadArtifact(c.Request.Context(), userID, c.Param("public_id"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrArtifactNotFound), errors.Is(err, domain.ErrRunNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="build.zip"`)
	c.Data(http.StatusOK, "application/zip", data)
}
