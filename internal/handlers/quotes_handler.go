package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mycm.app/server/internal/quotes"
)

type QuotesHandler struct {
	service *quotes.Service
	logger  *zap.SugaredLogger
}

func NewQuotesHandler(service *quotes.Service, logger *zap.SugaredLogger) *QuotesHandler {
	return &QuotesHandler{service: service, logger: logger}
}

// Weekly handles GET /api/quotes/weekly
func (h *QuotesHandler) Weekly(c *gin.Context) {
	weekly, err := h.service.ResolveWeek(context.Background(), quotes.WeekStart(time.Now().UTC()))
	if err != nil {
		if errors.Is(err, quotes.ErrNoQuotesAvailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No quotes available"})
			return
		}
		h.logger.Errorw("weekly quote resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, weekly)
}
