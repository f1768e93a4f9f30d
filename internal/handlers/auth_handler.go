package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mycm.app/server/internal/auth"
	"mycm.app/server/internal/mailer"
	accountmodels "mycm.app/server/internal/models/account"
)

type AuthHandler struct {
	postgres  *pgxpool.Pool
	logger    *zap.SugaredLogger
	jwtSecret string
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(postgres *pgxpool.Pool, logger *zap.SugaredLogger, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		postgres:  postgres,
		logger:    logger,
		jwtSecret: jwtSecret,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req accountmodels.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username, email, and password are required"})
		return
	}
	if len(username) < 3 || len(username) > 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-32 characters"})
		return
	}
	if !mailer.IsValidEmail(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid email address."})
		return
	}

	ctx := context.Background()

	var exists bool
	err := h.postgres.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2))`,
		username, email).Scan(&exists)
	if err != nil {
		h.logger.Errorw("register duplicate check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during registration"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already in use"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Errorw("password hashing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during registration"})
		return
	}

	var name *string
	if trimmed := strings.TrimSpace(req.Name); trimmed != "" {
		name = &trimmed
	}

	var user accountmodels.User
	err = h.postgres.QueryRow(ctx,
		`INSERT INTO users (username, name, email, password, role)
		 VALUES ($1, $2, $3, $4, 'user')
		 RETURNING id, username, name, email, role, created_at, updated_at`,
		username, name, email, hashed).
		Scan(&user.ID, &user.Username, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already in use"})
			return
		}
		h.logger.Errorw("register insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during registration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req accountmodels.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	ctx := context.Background()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user accountmodels.User
	var hashed string
	err := h.postgres.QueryRow(ctx,
		`SELECT id, username, name, email, role, password, created_at, updated_at
		 FROM users WHERE LOWER(email) = LOWER($1)`, email).
		Scan(&user.ID, &user.Username, &user.Name, &user.Email, &user.Role, &hashed, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		h.logger.Errorw("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during login"})
		return
	}

	if err := auth.CheckPassword(req.Password, hashed); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, user.ID, user.Username, user.Role)
	if err != nil {
		h.logger.Errorw("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during login"})
		return
	}

	c.JSON(http.StatusOK, accountmodels.LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// isUniqueViolation reports whether err is a Postgres duplicate-key error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
