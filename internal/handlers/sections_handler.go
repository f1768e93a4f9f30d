package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contentmodels "mycm.app/server/internal/models/content"
)

type SectionsHandler struct {
	postgres *pgxpool.Pool
	logger   *zap.SugaredLogger
}

func NewSectionsHandler(postgres *pgxpool.Pool, logger *zap.SugaredLogger) *SectionsHandler {
	return &SectionsHandler{postgres: postgres, logger: logger}
}

// GetBySlug handles GET /api/sections/:slug; only published blocks are returned
func (h *SectionsHandler) GetBySlug(c *gin.Context) {
	ctx := context.Background()
	section, err := h.findSection(ctx, c.Param("slug"))
	if err != nil {
		h.logger.Errorw("section lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if section == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return
	}

	rows, err := h.postgres.Query(ctx,
		`SELECT id, title, body, image_url, order_index, published, created_at, updated_at
		 FROM content_blocks
		 WHERE section_id = $1 AND published = TRUE
		 ORDER BY order_index ASC, created_at ASC`, section.ID)
	if err != nil {
		h.logger.Errorw("block list failed", "error", err, "section_id", section.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	defer rows.Close()

	blocks := []contentmodels.Block{}
	for rows.Next() {
		var b contentmodels.Block
		if err := rows.Scan(&b.ID, &b.Title, &b.Body, &b.ImageURL, &b.OrderIndex, &b.Published, &b.CreatedAt, &b.UpdatedAt); err != nil {
			h.logger.Errorw("block scan failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		h.logger.Errorw("block rows failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, contentmodels.SectionWithBlocks{Section: *section, Blocks: blocks})
}

// CreateBlock handles POST /api/sections/:slug/blocks (admin only)
func (h *SectionsHandler) CreateBlock(c *gin.Context) {
	var req contentmodels.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body is required"})
		return
	}

	ctx := context.Background()
	section, err := h.findSection(ctx, c.Param("slug"))
	if err != nil {
		h.logger.Errorw("section lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if section == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return
	}

	published := true
	if req.Published != nil {
		published = *req.Published
	}

	var b contentmodels.Block
	err = h.postgres.QueryRow(ctx,
		`INSERT INTO content_blocks (section_id, title, body, image_url, order_index, published)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, title, body, image_url, order_index, published, created_at, updated_at`,
		section.ID, req.Title, body, req.ImageURL, req.OrderIndex, published).
		Scan(&b.ID, &b.Title, &b.Body, &b.ImageURL, &b.OrderIndex, &b.Published, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		h.logger.Errorw("block insert failed", "error", err, "section_id", section.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusCreated, b)
}

// UpdateBlock handles PUT /api/sections/:slug/blocks/:id (admin only)
func (h *SectionsHandler) UpdateBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid block id"})
		return
	}

	var req contentmodels.UpdateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
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
	if req.Body != nil {
		sets = append(sets, fmt.Sprintf("body = $%d", idx))
		values = append(values, *req.Body)
		idx++
	}
	if req.ImageURL != nil {
		sets = append(sets, fmt.Sprintf("image_url = $%d", idx))
		values = append(values, *req.ImageURL)
		idx++
	}
	if req.OrderIndex != nil {
		sets = append(sets, fmt.Sprintf("order_index = $%d", idx))
		values = append(values, *req.OrderIndex)
		idx++
	}
	if req.Published != nil {
		sets = append(sets, fmt.Sprintf("published = $%d", idx))
		values = append(values, *req.Published)
		idx++
	}
	if len(sets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	sets = append(sets, "updated_at = NOW()")

	ctx := context.Background()
	section, err := h.findSection(ctx, c.Param("slug"))
	if err != nil {
		h.logger.Errorw("section lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if section == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return
	}

	values = append(values, section.ID, id)
	query := fmt.Sprintf(
		`UPDATE content_blocks SET %s WHERE section_id = $%d AND id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)

	tag, err := h.postgres.Exec(ctx, query, values...)
	if err != nil {
		h.logger.Errorw("block update failed", "error", err, "block_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if tag.RowsAffected() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// DeleteBlock handles DELETE /api/sections/:slug/blocks/:id (admin only)
func (h *SectionsHandler) DeleteBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid block id"})
		return
	}

	ctx := context.Background()
	section, err := h.findSection(ctx, c.Param("slug"))
	if err != nil {
		h.logger.Errorw("section lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if section == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Section not found"})
		return
	}

	tag, err := h.postgres.Exec(ctx,
		`DELETE FROM content_blocks WHERE section_id = $1 AND id = $2`, section.ID, id)
	if err != nil {
		h.logger.Errorw("block delete failed", "error", err, "block_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if tag.RowsAffected() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SectionsHandler) findSection(ctx context.Context, slug string) (*contentmodels.Section, error) {
	var s contentmodels.Section
	err := h.postgres.QueryRow(ctx,
		`SELECT id, slug, title FROM sections WHERE LOWER(slug) = LOWER($1)`, slug).
		Scan(&s.ID, &s.Slug, &s.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
