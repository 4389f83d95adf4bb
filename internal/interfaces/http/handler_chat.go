package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"telereply/internal/entities"
	"telereply/internal/interfaces"
)

// tenantClient resolves the caller's live protocol client, reconnecting from
// persisted session material when needed.
func (h *Handler) tenantClient(c *gin.Context) (interfaces.ProtocolClient, bool) {
	apiID := c.GetString("api_id")
	client, err := h.registry.GetOrCreateClient(c.Request.Context(), apiID, "")
	if err != nil {
		writeAuthError(c, err)
		return nil, false
	}
	return client, true
}

func (h *Handler) GetProfile(c *gin.Context) {
	client, ok := h.tenantClient(c)
	if !ok {
		return
	}
	profile, err := client.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         profile.ID,
		"first_name": profile.FirstName,
		"username":   profile.Username,
		"phone":      profile.Phone,
	})
}

func (h *Handler) UserLogout(c *gin.Context) {
	h.registry.Stop(c.GetString("api_id"))
	c.SetCookie(userCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// ========================================
// Settings
// ========================================

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.GetSettings(c.Request.Context(), c.GetString("api_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req struct {
		Active        *bool   `json:"active"`
		AutoReplyText *string `json:"auto_reply_text"`
		WaitTime      *int    `json:"wait_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ownerID := c.GetString("api_id")
	settings, err := h.settings.GetSettings(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	settings.OwnerID = ownerID
	if req.Active != nil {
		settings.Active = *req.Active
	}
	if req.AutoReplyText != nil {
		settings.AutoReplyText = *req.AutoReplyText
	}
	if req.WaitTime != nil {
		if *req.WaitTime < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wait_time must not be negative"})
			return
		}
		settings.WaitTime = *req.WaitTime
	}

	if err := h.settings.UpdateSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// ========================================
// Keywords
// ========================================

func (h *Handler) GetKeywords(c *gin.Context) {
	keywords, err := h.keywords.GetKeywords(c.Request.Context(), c.GetString("api_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords})
}

func (h *Handler) AddKeyword(c *gin.Context) {
	var req struct {
		Keyword string `json:"keyword" binding:"required"`
		Reply   string `json:"reply"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	keyword := entities.Keyword{
		OwnerID: c.GetString("api_id"),
		Keyword: strings.TrimSpace(req.Keyword),
		Reply:   req.Reply,
	}
	if keyword.Keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Keyword must not be empty"})
		return
	}
	if err := h.keywords.AddKeyword(c.Request.Context(), keyword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

func (h *Handler) DeleteKeyword(c *gin.Context) {
	if err := h.keywords.DeleteKeyword(c.Request.Context(), c.GetString("api_id"), c.Param("keyword")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ========================================
// Chats
// ========================================

func (h *Handler) GetChats(c *gin.Context) {
	client, ok := h.tenantClient(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	dialogs, err := client.Dialogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": dialogs})
}

func (h *Handler) GetChatHistory(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat id"})
		return
	}
	client, ok := h.tenantClient(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	messages, err := client.History(c.Request.Context(), chatID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat id"})
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	client, ok := h.tenantClient(c)
	if !ok {
		return
	}
	if err := client.SendMessage(c.Request.Context(), entities.Peer{ChatID: chatID}, req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.broadcaster.Broadcast(entities.ChatEvent{
		Type:     "message_sent",
		ChatID:   chatID,
		Text:     req.Text,
		Date:     time.Now().UTC().Format(time.RFC3339),
		Outgoing: true,
	})
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ========================================
// Scheduled messages
// ========================================

func (h *Handler) GetSchedules(c *gin.Context) {
	schedules, err := h.schedules.GetSchedules(c.Request.Context(), c.GetString("api_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (h *Handler) UpsertSchedule(c *gin.Context) {
	var req struct {
		ID        string   `json:"id"`
		Message   string   `json:"message" binding:"required"`
		Time      string   `json:"time" binding:"required"`
		ChatIDs   []int64  `json:"chat_ids"`
		Usernames []string `json:"usernames"`
		Active    *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidTimeOfDay(req.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Time must be HH:MM"})
		return
	}
	if len(req.ChatIDs) == 0 && len(req.Usernames) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one target required"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	schedule := entities.ScheduledMessage{
		ID:        req.ID,
		OwnerID:   c.GetString("api_id"),
		Message:   req.Message,
		Time:      req.Time,
		ChatIDs:   req.ChatIDs,
		Usernames: req.Usernames,
		Active:    active,
	}
	if err := h.schedules.UpsertSchedule(c.Request.Context(), schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.schedules.DeleteSchedule(c.Request.Context(), c.GetString("api_id"), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
