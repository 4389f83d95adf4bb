package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telereply/internal/usecases"
)

// SetupRequired tells the UI whether the one-time admin bootstrap is still
// pending.
func (h *Handler) SetupRequired(c *gin.Context) {
	required, err := h.auth.SetupRequired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup_required": required})
}

func (h *Handler) Setup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidSlug(req.Username) || len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
		return
	}
	if err := h.auth.SetupAdmin(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, usecases.ErrAdminExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	token, mustChange, err := h.auth.LoginAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.SetCookie(adminCookie, token, cookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token, "must_change_password": mustChange})
}

func (h *Handler) AdminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username":             c.GetString("admin"),
		"must_change_password": c.GetBool("must_change"),
	})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password too short (min 6 chars)"})
		return
	}
	token, err := h.auth.ChangeAdminPassword(c.Request.Context(), c.GetString("admin"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, usecases.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.SetCookie(adminCookie, token, cookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "changed", "token": token})
}

func (h *Handler) AdminLogout(c *gin.Context) {
	c.SetCookie(adminCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// ListUsers returns every known account with a live-session flag.
func (h *Handler) ListUsers(c *gin.Context) {
	accounts, err := h.accounts.AllAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	online := make(map[string]bool)
	for _, id := range h.registry.ConnectedTenants() {
		online[id] = true
	}

	users := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		users = append(users, gin.H{
			"api_id":     a.APIID,
			"first_name": a.FirstName,
			"username":   a.Username,
			"phone":      a.PhoneNumber,
			"last_login": a.LastLogin,
			"online":     online[a.APIID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) GetUser(c *gin.Context) {
	apiID := c.Param("api_id")
	account, err := h.accounts.GetAccount(c.Request.Context(), apiID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	_, live := h.registry.LiveClient(apiID)
	c.JSON(http.StatusOK, gin.H{
		"api_id":      account.APIID,
		"first_name":  account.FirstName,
		"username":    account.Username,
		"phone":       account.PhoneNumber,
		"last_login":  account.LastLogin,
		"online":      live,
		"has_session": account.SessionString != "",
	})
}
