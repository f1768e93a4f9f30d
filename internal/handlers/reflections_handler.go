package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mycm.app/server/internal/middleware"
	"mycm.app/server/internal/reflection"
)

type ReflectionsHandler struct {
	resolver *reflection.Resolver
	service  *reflection.Service
	logger   *zap.SugaredLogger
}

func NewReflectionsHandler(resolver *reflection.Resolver, service *reflection.Service, logger *zap.SugaredLogger) *ReflectionsHandler {
	return &ReflectionsHandler{resolver: resolver, service: service, logger: logger}
}

// Today handles GET /api/reflections/today
func (h *ReflectionsHandler) Today(c *gin.Context) {
	daily, err := h.resolver.Resolve(context.Background(), reflection.Today())
	if err != nil {
		if errors.Is(err, reflection.ErrNoPromptsAvailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No prompts available"})
			return
		}
		h.logger.Errorw("daily prompt resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, daily)
}

// Random handles GET /api/reflections/random. Despite the name it is an
// authenticated alias for today's prompt; everyone sees the same one each day.
func (h *ReflectionsHandler) Random(c *gin.Context) {
	daily, err := h.resolver.Resolve(context.Background(), reflection.Today())
	if err != nil {
		if errors.Is(err, reflection.ErrNoPromptsAvailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No prompts available"})
			return
		}
		h.logger.Errorw("daily prompt resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"daily_id":  daily.ID,
		"active_on": daily.ActiveOn,
		"prompt":    daily.Prompt,
	})
}

// TodayMessages handles GET /api/reflections/today/messages
func (h *ReflectionsHandler) TodayMessages(c *gin.Context) {
	messages, err := h.service.ListToday(context.Background())
	if err != nil {
		h.logger.Errorw("message history failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type updateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessage handles PATCH /api/reflections/messages/:id; the edit is also
// broadcast to the message's room over the websocket hub.
func (h *ReflectionsHandler) UpdateMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	updated, err := h.service.Update(context.Background(), h.session(c), id, req.Content)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": updated})
}

// DeleteMessage handles DELETE /api/reflections/messages/:id
func (h *ReflectionsHandler) DeleteMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	if err := h.service.Delete(context.Background(), h.session(c), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "id": id})
}

func (h *ReflectionsHandler) session(c *gin.Context) reflection.Session {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		return reflection.Session{}
	}
	uid := claims.UserID
	return reflection.Session{UserID: &uid, Username: claims.Username, Role: claims.Role}
}

func (h *ReflectionsHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reflection.ErrBadPayload), errors.Is(err, reflection.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bad payload"})
	case errors.Is(err, reflection.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, reflection.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your message"})
	case errors.Is(err, reflection.ErrUpdateFailed):
		h.logger.Errorw("message update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Update failed"})
	case errors.Is(err, reflection.ErrDeleteFailed):
		h.logger.Errorw("message delete failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed"})
	default:
		h.logger.Errorw("reflection operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
