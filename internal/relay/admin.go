package relay

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/storydeck/storydeck/internal/config"
	"github.com/storydeck/storydeck/internal/quota"
	"github.com/storydeck/storydeck/internal/security"
	"github.com/storydeck/storydeck/internal/usage"
)

// AdminHandler serves the operator API: login, usage ledger queries and a
// live view of the quota counters.
type AdminHandler struct {
	cfg      config.Config
	policy   *quota.Policy
	backend  quota.Backend
	recorder *usage.Recorder
	nowFn    func() time.Time
}

// NewAdminHandler wires the admin endpoints.
func NewAdminHandler(cfg config.Config, policy *quota.Policy, backend quota.Backend, recorder *usage.Recorder) *AdminHandler {
	return &AdminHandler{
		cfg:      cfg,
		policy:   policy,
		backend:  backend,
		recorder: recorder,
		nowFn:    time.Now,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login serves POST /v0/admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Username != h.cfg.Admin.Username || !security.VerifyPassword(h.cfg.Admin.PasswordHash, req.Password) {
		log.WithField("username", req.Username).Warn("admin: login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, errMint := security.MintToken(h.cfg.JWT.Secret, req.Username, h.cfg.JWT.Expiry, h.nowFn())
	if errMint != nil {
		log.WithError(errMint).Error("admin: token mint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Authorize is the middleware guarding the admin endpoints.
func (h *AdminHandler) Authorize(c *gin.Context) {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, errParse := security.ParseToken(h.cfg.JWT.Secret, strings.TrimSpace(token))
	if errParse != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set("admin-user", claims.Username)
	c.Next()
}

// Usage serves GET /v0/admin/usage with optional identity, offset and limit
// query parameters.
func (h *AdminHandler) Usage(c *gin.Context) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, errList := h.recorder.List(c.Request.Context(), c.Query("identity"), offset, limit)
	if errList != nil {
		log.WithError(errList).Error("admin: usage query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query usage"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// Quota serves GET /v0/admin/quota: the configured limits and a snapshot of
// the live counters.
func (h *AdminHandler) Quota(c *gin.Context) {
	limits := h.policy.Limits()
	counters := map[string]int{}
	if h.backend != nil {
		store := h.backend.Acquire(c.Request.Context())
		snapshot, errSnapshot := store.Snapshot(c.Request.Context())
		if errSnapshot != nil {
			log.WithError(errSnapshot).Error("admin: counter snapshot failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot counters"})
			return
		}
		counters = snapshot
	}
	c.JSON(http.StatusOK, gin.H{
		"limits": gin.H{
			"per-minute":   limits.PerMinute,
			"daily":        limits.PerDay,
			"global-daily": limits.GlobalDaily,
		},
		"counters": counters,
	})
}
