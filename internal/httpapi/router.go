package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"steammatch/internal/models"
	"steammatch/internal/report"
)

// Controller is the minimal surface the HTTP layer needs from a bot's
// matching engine: an on-demand active-matching trigger and a way to pull
// the most recent round statistics for export.
type Controller interface {
	MatchActively(ctx context.Context) (int, error)
	RecentRoundStats() []models.RoundStat
}

// Router builds the gin engine exposing health, status, an admin-gated
// manual trigger, and an xlsx report download, mirroring the teacher's
// health-check-plus-API-group layout.
type Router struct {
	bots           map[uint64]Controller
	adminTokenHash string
}

func NewRouter(bots map[uint64]Controller, adminTokenHash string) *Router {
	return &Router{bots: bots, adminTokenHash: adminTokenHash}
}

func (r *Router) Build() *gin.Engine {
	engine := gin.Default()

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	api.GET("/bots", r.listBots)
	api.POST("/bots/:steam_id/trigger", r.requireAdmin, r.triggerMatch)
	api.GET("/bots/:steam_id/report", r.requireAdmin, r.downloadReport)

	return engine
}

func (r *Router) listBots(c *gin.Context) {
	ids := make([]uint64, 0, len(r.bots))
	for id := range r.bots {
		ids = append(ids, id)
	}
	c.JSON(http.StatusOK, gin.H{"bots": ids})
}

// requireAdmin gates destructive/operator-only endpoints behind a bearer
// token checked against a bcrypt hash, rather than a plaintext secret in
// configuration.
func (r *Router) requireAdmin(c *gin.Context) {
	if r.adminTokenHash == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin token not configured"})
		return
	}
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || bcrypt.CompareHashAndPassword([]byte(r.adminTokenHash), []byte(token)) != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	c.Next()
}

func (r *Router) bot(c *gin.Context) (Controller, uint64, bool) {
	steamID, err := parseSteamID(c.Param("steam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid steam_id"})
		return nil, 0, false
	}
	ctrl, ok := r.bots[steamID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bot"})
		return nil, 0, false
	}
	return ctrl, steamID, true
}

func (r *Router) triggerMatch(c *gin.Context) {
	ctrl, _, ok := r.bot(c)
	if !ok {
		return
	}
	rounds, err := ctrl.MatchActively(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds_run": rounds})
}

func (r *Router) downloadReport(c *gin.Context) {
	ctrl, steamID, ok := r.bot(c)
	if !ok {
		return
	}
	path := reportPath(steamID)
	if err := report.WriteRoundStats(ctrl.RecentRoundStats(), path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.FileAttachment(path, "rounds.xlsx")
}

func reportPath(steamID uint64) string {
	return "/tmp/matchbot-report-" + parseSteamIDString(steamID) + ".xlsx"
}
