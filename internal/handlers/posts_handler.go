package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mycm.app/server/internal/middleware"
	blogmodels "mycm.app/server/internal/models/blog"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

type PostsHandler struct {
	postgres *pgxpool.Pool
	logger   *zap.SugaredLogger
}

func NewPostsHandler(postgres *pgxpool.Pool, logger *zap.SugaredLogger) *PostsHandler {
	return &PostsHandler{postgres: postgres, logger: logger}
}

// ParsePageParams clamps page/limit query values to sane bounds.
func ParsePageParams(pageStr, limitStr string) (page, limit int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(limitStr)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// List handles GET /api/posts?search=term&page=1&limit=10
func (h *PostsHandler) List(c *gin.Context) {
	page, limit := ParsePageParams(c.Query("page"), c.Query("limit"))
	offset := (page - 1) * limit
	term := strings.TrimSpace(c.Query("search"))

	ctx := context.Background()
	where := ""
	listArgs := []interface{}{}
	countArgs := []interface{}{}
	if term != "" {
		where = "WHERE p.title ILIKE $1 OR p.content ILIKE $1 OR u.username ILIKE $1"
		pattern := "%" + term + "%"
		listArgs = append(listArgs, pattern)
		countArgs = append(countArgs, pattern)
	}

	listQuery := fmt.Sprintf(`
		SELECT p.id, p.title, p.content, p.author_id, u.username, p.image_url, p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON p.author_id = u.id
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(listArgs)+1, len(listArgs)+2)
	listArgs = append(listArgs, limit, offset)

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM posts p
		JOIN users u ON p.author_id = u.id
		%s`, where)

	rows, err := h.postgres.Query(ctx, listQuery, listArgs...)
	if err != nil {
		h.logger.Errorw("post list query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching posts"})
		return
	}
	defer rows.Close()

	posts := []blogmodels.Post{}
	for rows.Next() {
		var p blogmodels.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Author, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			h.logger.Errorw("post scan failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching posts"})
			return
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		h.logger.Errorw("post rows failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching posts"})
		return
	}

	var total int
	if err := h.postgres.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		h.logger.Errorw("post count query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching posts"})
		return
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, blogmodels.PostList{
		Data:       posts,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/posts/:id
func (h *PostsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	p, err := h.fetchPost(context.Background(), id)
	if err != nil {
		h.logger.Errorw("post fetch failed", "error", err, "post_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching post"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /api/posts (admin only)
func (h *PostsHandler) Create(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req blogmodels.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title and content are required"})
		return
	}

	ctx := context.Background()
	var id int64
	err := h.postgres.QueryRow(ctx,
		`INSERT INTO posts (title, content, author_id, image_url) VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Title, req.Content, claims.UserID, req.ImageURL).Scan(&id)
	if err != nil {
		h.logger.Errorw("post insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error creating post"})
		return
	}

	p, err := h.fetchPost(ctx, id)
	if err != nil || p == nil {
		h.logger.Errorw("post readback failed", "error", err, "post_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error creating post"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PUT/PATCH /api/posts/:id (admin only, ownership enforced)
func (h *PostsHandler) Update(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var req blogmodels.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Title == nil && req.Content == nil && req.ImageURL == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	sets := []string{}
	values := []interface{}{}
	idx := 1
	if req.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		values = append(values, *req.Title)
		idx++
	}
	if req.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", idx))
		values = append(values, *req.Content)
		idx++
	}
	if req.ImageURL != nil {
		sets = append(sets, fmt.Sprintf("image_url = $%d", idx))
		values = append(values, *req.ImageURL)
		idx++
	}
	sets = append(sets, "updated_at = NOW()")
	values = append(values, id, claims.UserID)

	query := fmt.Sprintf(
		`UPDATE posts SET %s WHERE id = $%d AND author_id = $%d RETURNING id`,
		strings.Join(sets, ", "), idx, idx+1)

	ctx := context.Background()
	var updatedID int64
	err := h.postgres.QueryRow(ctx, query, values...).Scan(&updatedID)
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found or not yours"})
		return
	}
	if err != nil {
		h.logger.Errorw("post update failed", "error", err, "post_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error updating post"})
		return
	}

	p, err := h.fetchPost(ctx, updatedID)
	if err != nil || p == nil {
		h.logger.Errorw("post readback failed", "error", err, "post_id", updatedID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error updating post"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/posts/:id (admin only, ownership enforced)
func (h *PostsHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	tag, err := h.postgres.Exec(context.Background(),
		`DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, claims.UserID)
	if err != nil {
		h.logger.Errorw("post delete failed", "error", err, "post_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error deleting post"})
		return
	}
	if tag.RowsAffected() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found or not yours"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (h *PostsHandler) fetchPost(ctx context.Context, id int64) (*blogmodels.Post, error) {
	var p blogmodels.Post
	err := h.postgres.QueryRow(ctx,
		`SELECT p.id, p.title, p.content, p.author_id, u.username, p.image_url, p.created_at, p.updated_at
		 FROM posts p
		 JOIN users u ON p.author_id = u.id
		 WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Author, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
