package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telereply/internal/entities"
	"telereply/internal/infrastructure"
	"telereply/internal/interfaces"
	"telereply/internal/usecases"
)

const cookieMaxAge = 7 * 24 * 60 * 60

type Handler struct {
	registry    *infrastructure.SessionRegistry
	flow        *infrastructure.AuthFlow
	broadcaster *infrastructure.EventBroadcaster
	auth        *usecases.AuthUsecase
	accounts    interfaces.AccountStore
	settings    interfaces.SettingsStore
	keywords    interfaces.KeywordStore
	schedules   interfaces.ScheduleStore
}

func NewHandler(
	registry *infrastructure.SessionRegistry,
	flow *infrastructure.AuthFlow,
	broadcaster *infrastructure.EventBroadcaster,
	auth *usecases.AuthUsecase,
	accounts interfaces.AccountStore,
	settings interfaces.SettingsStore,
	keywords interfaces.KeywordStore,
	schedules interfaces.ScheduleStore,
) *Handler {
	return &Handler{
		registry:    registry,
		flow:        flow,
		broadcaster: broadcaster,
		auth:        auth,
		accounts:    accounts,
		settings:    settings,
		keywords:    keywords,
		schedules:   schedules,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")

	// Public admin bootstrap
	api.GET("/setup/required", h.SetupRequired)
	api.POST("/setup", h.Setup)
	api.POST("/admin/login", h.AdminLogin)

	// Admin-only routes
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/check-status", h.AdminStatus)
		admin.POST("/change-password", h.ChangePassword)
		admin.POST("/logout", h.AdminLogout)
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:api_id", h.GetUser)
	}

	// Account login handshake (admin drives it)
	auth := api.Group("/auth")
	auth.Use(middleware.AdminRequired())
	{
		auth.GET("/check-session/:api_id", h.CheckSession)
		auth.POST("/request-code", h.RequestCode)
		auth.POST("/verify-code", h.VerifyCode)
		auth.POST("/verify-password", h.VerifyPassword)
		auth.POST("/login", h.SessionLogin)
	}

	// Per-tenant routes
	user := api.Group("")
	user.Use(middleware.UserRequired())
	user.Use(middleware.RateLimitPerUser(5, 10))
	{
		user.GET("/profile", h.GetProfile)
		user.POST("/logout", h.UserLogout)

		user.GET("/settings", h.GetSettings)
		user.POST("/settings", h.UpdateSettings)

		user.GET("/keywords", h.GetKeywords)
		user.POST("/keywords", h.AddKeyword)
		user.DELETE("/keywords/:keyword", h.DeleteKeyword)

		user.GET("/chats", h.GetChats)
		user.GET("/chats/:chat_id/messages", h.GetChatHistory)
		user.POST("/chats/:chat_id/send", h.SendChatMessage)

		user.GET("/schedules", h.GetSchedules)
		user.POST("/schedules", h.UpsertSchedule)
		user.DELETE("/schedules/:id", h.DeleteSchedule)
	}

	r.GET("/ws", h.HandleWebSocket)
}

// ========================================
// Account login handshake
// ========================================

// CheckSession reports whether a tenant already has a live authorized client
// or persisted session material to replay.
func (h *Handler) CheckSession(c *gin.Context) {
	apiID := c.Param("api_id")
	if _, live := h.registry.LiveClient(apiID); live {
		c.JSON(http.StatusOK, gin.H{"status": "authorized", "live": true})
		return
	}
	account, err := h.accounts.GetAccount(c.Request.Context(), apiID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	hasSession := account != nil && account.SessionString != ""
	c.JSON(http.StatusOK, gin.H{"status": "unknown", "live": false, "has_session": hasSession})
}

func (h *Handler) RequestCode(c *gin.Context) {
	var req struct {
		APIID   string `json:"api_id" binding:"required"`
		APIHash string `json:"api_hash" binding:"required"`
		Phone   string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request"})
		return
	}
	result, err := h.flow.RequestCode(c.Request.Context(), req.APIID, req.APIHash, req.Phone)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) VerifyCode(c *gin.Context) {
	var req struct {
		APIID    string `json:"api_id" binding:"required"`
		Phone    string `json:"phone" binding:"required"`
		Code     string `json:"code" binding:"required"`
		CodeHash string `json:"phone_code_hash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request"})
		return
	}
	result, err := h.flow.VerifyCode(c.Request.Context(), req.APIID, req.Phone, req.Code, req.CodeHash)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) VerifyPassword(c *gin.Context) {
	var req struct {
		APIID    string `json:"api_id" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request"})
		return
	}
	result, err := h.flow.VerifyPassword(c.Request.Context(), req.APIID, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SessionLogin replays a persisted session for a tenant and hands out the
// per-tenant token on success.
func (h *Handler) SessionLogin(c *gin.Context) {
	var req struct {
		APIID string `json:"api_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request"})
		return
	}
	if _, err := h.registry.GetOrCreateClient(c.Request.Context(), req.APIID, ""); err != nil {
		writeAuthError(c, err)
		return
	}
	token, err := h.auth.IssueUserToken(req.APIID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.SetCookie(userCookie, token, cookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "success", "token": token})
}

// writeAuthError maps flow errors onto the handshake status vocabulary.
func writeAuthError(c *gin.Context, err error) {
	if entities.IsRateLimit(err) {
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
}
