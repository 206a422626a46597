package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"counselgo/internal/models"
	"counselgo/internal/redis"
	"counselgo/internal/service/ai"
	"counselgo/internal/service/practice"
)

// Handler wires HTTP routes to the practice service and persona generator.
type Handler struct {
	practice  *practice.Service
	generator ai.Generator
	cache     *sessionListCache
}

// NewHandler constructs a Handler instance.
func NewHandler(service *practice.Service, generator ai.Generator, cacheClient *redis.Client) *Handler {
	return &Handler{
		practice:  service,
		generator: generator,
		cache:     newSessionListCache(cacheClient),
	}
}

// statusForError separates rejected input from storage trouble: validation
// failures are the caller's fault, a missing row is 404, anything else means
// the backend itself failed.
func statusForError(err error) int {
	switch {
	case errors.Is(err, practice.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/personas", h.listPersonas)
	api.POST("/students/login", h.loginStudent)
	conv := api.Group("/conversation")
	conv.POST("/start", h.startConversation)
	conv.POST("/msg", h.sendMessage)
	conv.GET("/sessions", h.getSessionList)
	conv.GET("/sessions/:session_id/messages", h.getSessionHistory)
	conv.GET("/sessions/:session_id/name", h.getSessionName)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.practice.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listPersonas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"personas": ai.PersonaTypes()})
}

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) loginStudent(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	student, err := h.practice.GetOrCreateStudent(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id": student.ID,
		"email":      student.Email,
		"name":       student.Name,
		"created_at": student.CreatedAt,
		"last_login": student.LastLogin,
	})
}

type startRequest struct {
	Email       string `json:"email"`
	PersonaType string `json:"persona_type"`
}

func (h *Handler) startConversation(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if _, err := ai.LookupPersona(req.PersonaType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.practice.GetStudentByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	session, name, err := h.practice.CreateSession(c.Request.Context(), student.ID, req.PersonaType)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	h.cache.invalidate(c.Request.Context(), student.Email)
	c.JSON(http.StatusCreated, gin.H{
		"session_id":   session.ID,
		"session_name": name,
		"persona_type": session.PersonaType,
		"created_at":   session.CreatedAt,
		"status":       session.Status,
	})
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Content   string `json:"content"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctx := c.Request.Context()

	exists, err := h.practice.SessionExists(ctx, req.SessionID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	session, err := h.practice.GetSession(ctx, req.SessionID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	userMsg, err := h.practice.AppendMessage(ctx, req.SessionID, models.SenderUser, req.Content)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	history, err := h.practice.GetSessionMessages(ctx, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reply, err := h.generator.Reply(ctx, session.PersonaType, history)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "persona reply failed: " + err.Error()})
		return
	}
	clientMsg, err := h.practice.AppendMessage(ctx, req.SessionID, models.SenderAssistant, reply)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if email := strings.TrimSpace(req.Email); email != "" {
		h.cache.invalidate(ctx, email)
	}
	c.JSON(http.StatusOK, gin.H{
		"user_message":   userMsg,
		"client_message": clientMsg,
	})
}

func (h *Handler) getSessionList(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	ctx := c.Request.Context()
	if summaries, ok := h.cache.get(ctx, email); ok {
		c.JSON(http.StatusOK, gin.H{"session_list": summaries})
		return
	}
	summaries, err := h.practice.GetStudentSessions(ctx, email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.cache.put(ctx, email, summaries)
	c.JSON(http.StatusOK, gin.H{"session_list": summaries})
}

func (h *Handler) getSessionHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	history, err := h.practice.GetHistory(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) getSessionName(c *gin.Context) {
	sessionID := c.Param("session_id")
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	name, err := h.practice.GetSessionName(c.Request.Context(), sessionID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_name": name})
}
