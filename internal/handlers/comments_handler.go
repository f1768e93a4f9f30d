package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mycm.app/server/internal/middleware"
	blogmodels "mycm.app/server/internal/models/blog"
)

type CommentsHandler struct {
	postgres *pgxpool.Pool
	logger   *zap.SugaredLogger
}

func NewCommentsHandler(postgres *pgxpool.Pool, logger *zap.SugaredLogger) *CommentsHandler {
	return &CommentsHandler{postgres: postgres, logger: logger}
}

// ListByPost handles GET /api/comments/post/:postId
func (h *CommentsHandler) ListByPost(c *gin.Context) {
	postID, ok := pathID(c, "postId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	rows, err := h.postgres.Query(context.Background(),
		`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at, c.updated_at
		 FROM comments c
		 JOIN users u ON c.user_id = u.id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at ASC`, postID)
	if err != nil {
		h.logger.Errorw("comment list failed", "error", err, "post_id", postID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching comments"})
		return
	}
	defer rows.Close()

	comments := []blogmodels.Comment{}
	for rows.Next() {
		var cm blogmodels.Comment
		if err := rows.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Author, &cm.Content, &cm.CreatedAt, &cm.UpdatedAt); err != nil {
			h.logger.Errorw("comment scan failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching comments"})
			return
		}
		comments = append(comments, cm)
	}
	if err := rows.Err(); err != nil {
		h.logger.Errorw("comment rows failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching comments"})
		return
	}

	c.JSON(http.StatusOK, comments)
}

// Add handles POST /api/comments/post/:postId
func (h *CommentsHandler) Add(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	postID, ok := pathID(c, "postId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var req blogmodels.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}

	var cm blogmodels.Comment
	err := h.postgres.QueryRow(context.Background(),
		`INSERT INTO comments (post_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, post_id, user_id, content, created_at, updated_at`,
		postID, claims.UserID, content).
		Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Content, &cm.CreatedAt, &cm.UpdatedAt)
	if err != nil {
		h.logger.Errorw("comment insert failed", "error", err, "post_id", postID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error adding comment"})
		return
	}
	cm.Author = claims.Username

	c.JSON(http.StatusCreated, cm)
}

// Delete handles DELETE /api/comments/:id; only the author may delete
func (h *CommentsHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment id"})
		return
	}

	tag, err := h.postgres.Exec(context.Background(),
		`DELETE FROM comments WHERE id = $1 AND user_id = $2`, id, claims.UserID)
	if err != nil {
		h.logger.Errorw("comment delete failed", "error", err, "comment_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error deleting comment"})
		return
	}
	if tag.RowsAffected() == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized or comment not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
