package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/auth"
	forgedomain "github.com/shojbahmed330/appify-backend/internal/forge/domain"
	"github.com/shojbahmed330/appify-backend/internal/users"
)

type Handler struct {
	users *users.Repo
}

func NewHandler(repo *users.Repo) *Handler {
	return &Handler{users: repo}
}

type githubConfigRequest struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (h *Handler) updateGithubConfig(c *gin.Context) {
	var req githubConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	err := h.users.UpdateGithubConfig(c.Request.Context(), auth.UserDBID(c), forgedomain.GithubConfig{
		Token: req.Token,
		Owner: req.Owner,
		Repo:  req.Repo,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) githubConfig(c *gin.Context) {
	cfg, err := h.users.GithubConfig(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	// The token never leaves the server; the UI only needs to know
	// whether one is stored.
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"owner":     cfg.Owner,
		"repo":      cfg.Repo,
		"has_token": cfg.Token != "",
	})
}

// Register attaches account routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/github", h.githubConfig)
	rg.PUT("/github", h.updateGithubConfig)
}
