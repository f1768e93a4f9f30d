package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mycm.app/server/internal/mailer"
	contactmodels "mycm.app/server/internal/models/contact"
)

const (
	contactRateLimit  = 10
	contactRateWindow = time.Hour
)

type ContactHandler struct {
	postgres *pgxpool.Pool
	redis    *redis.Client
	mailer   *mailer.Mailer
	logger   *zap.SugaredLogger
}

func NewContactHandler(postgres *pgxpool.Pool, rdb *redis.Client, m *mailer.Mailer, logger *zap.SugaredLogger) *ContactHandler {
	return &ContactHandler{postgres: postgres, redis: rdb, mailer: m, logger: logger}
}

// Submit handles POST /api/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	ctx := context.Background()

	if h.overLimit(ctx, c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, please try again later"})
		return
	}

	var req contactmodels.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	message := strings.TrimSpace(req.Message)

	if name == "" || len(name) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be between 1 and 100 characters"})
		return
	}
	if !mailer.IsValidEmail(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email address is required"})
		return
	}
	if message == "" || len(message) > 10000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be between 1 and 10000 characters"})
		return
	}

	var id int64
	var createdAt time.Time
	err := h.postgres.QueryRow(ctx,
		`INSERT INTO contact_messages (name, email, message, client_ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		name, email, message, c.ClientIP(), c.Request.UserAgent()).
		Scan(&id, &createdAt)
	if err != nil {
		h.logger.Errorw("contact insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	// Email delivery must not block or fail the submission
	go func() {
		if err := h.mailer.SendContactEmail(name, email, message); err != nil {
			h.logger.Errorw("contact email failed", "error", err, "contact_id", id)
		}
	}()

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Thanks for reaching out! We'll get back to you soon.",
		"id":         id,
		"created_at": createdAt,
	})
}

func (h *ContactHandler) overLimit(ctx context.Context, ip string) bool {
	if h.redis == nil {
		return false
	}
	key := "contact:rl:" + ip
	count, err := h.redis.Incr(ctx, key).Result()
	if err != nil {
		h.logger.Warnw("contact rate limit check failed", "error", err)
		return false
	}
	if count == 1 {
		h.redis.Expire(ctx, key, contactRateWindow)
	}
	return count > contactRateLimit
}
