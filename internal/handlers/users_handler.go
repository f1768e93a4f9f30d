package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mycm.app/server/internal/middleware"
	accountmodels "mycm.app/server/internal/models/account"
)

// 3-32 chars, letters/numbers/._- only, no spaces
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

type UsersHandler struct {
	postgres *pgxpool.Pool
	logger   *zap.SugaredLogger
}

func NewUsersHandler(postgres *pgxpool.Pool, logger *zap.SugaredLogger) *UsersHandler {
	return &UsersHandler{postgres: postgres, logger: logger}
}

// Me handles GET /api/users/me
func (h *UsersHandler) Me(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user accountmodels.User
	err := h.postgres.QueryRow(context.Background(),
		`SELECT id, username, name, email, role, created_at, updated_at FROM users WHERE id = $1`,
		claims.UserID).
		Scan(&user.ID, &user.Username, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Errorw("fetch current user failed", "error", err, "user_id", claims.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching current user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PATCH /api/users/me (username and/or display name)
func (h *UsersHandler) UpdateMe(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req accountmodels.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	ctx := context.Background()
	sets := []string{}
	values := []interface{}{}
	idx := 1

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if !usernamePattern.MatchString(trimmed) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Username must be 3-32 chars, letters/numbers/._- only (no spaces).",
			})
			return
		}

		var taken bool
		err := h.postgres.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id <> $1 AND LOWER(username) = LOWER($2))`,
			claims.UserID, trimmed).Scan(&taken)
		if err != nil {
			h.logger.Errorw("username conflict check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error updating profile"})
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already in use"})
			return
		}

		sets = append(sets, fmt.Sprintf("username = $%d", idx))
		values = append(values, trimmed)
		idx++
	}

	if req.Name != nil {
		var name *string
		if trimmed := strings.TrimSpace(*req.Name); trimmed != "" {
			name = &trimmed
		}
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		values = append(values, name)
		idx++
	}

	if len(sets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No changes provided"})
		return
	}

	sets = append(sets, "updated_at = NOW()")
	values = append(values, claims.UserID)

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d
		 RETURNING id, username, name, email, role, created_at, updated_at`,
		strings.Join(sets, ", "), idx)

	var user accountmodels.User
	err := h.postgres.QueryRow(ctx, query, values...).
		Scan(&user.ID, &user.Username, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already in use"})
			return
		}
		h.logger.Errorw("profile update failed", "error", err, "user_id", claims.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error updating profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}
