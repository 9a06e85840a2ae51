package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/auth"
	"github.com/shojbahmed330/appify-backend/internal/projects/domain"
	"github.com/shojbahmed330/appify-backend/internal/projects/service"
)

type Handler struct {
	svc *service.ProjectService
}

func NewHandler(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

type createReq struct {
	Name   string               `json:"name"`
	Files  map[string]string    `json:"files"`
	Config domain.ProjectConfig `json:"config"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	p, err := h.svc.Save(c.Request.Context(), userID, strings.TrimSpace(req.Name), req.Files, req.Config)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserDBID(c)
	items, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	userID := auth.UserDBID(c)
	p, err := h.svc.Get(c.Request.Context(), userID, c.Param("public_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	p, err := h.svc.Rename(c.Request.Context(), userID, c.Param("public_id"), strings.TrimSpace(req.Name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) delete(c *gin.Context) {
	userID := auth.UserDBID(c)
	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("public_id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listSnapshots(c *gin.Context) {
	userID := auth.UserDBID(c)
	items, err := h.svc.ListSnapshots(c.Request.Context(), userID, c.Param("public_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "snapshots": items})
}

func (h *Handler) deleteSnapshot(c *gin.Context) {
	userID := auth.UserDBID(c)
	if err := h.svc.DeleteSnapshot(c.Request.Context(), userID, c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
