package content

import "time"

type Section struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type Block struct {
	ID         int64     `json:"id"`
	Title      *string   `json:"title"`
	Body       string    `json:"body"`
	ImageURL   *string   `json:"image_url"`
	OrderIndex int       `json:"order_index"`
	Published  bool      `json:"published"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SectionWithBlocks struct {
	Section Section `json:"section"`
	Blocks  []Block `json:"blocks"`
}

type CreateBlockRequest struct {
	Title      *string `json:"title"`
	Body       string  `json:"body"`
	ImageURL   *string `json:"image_url"`
	OrderIndex int     `json:"order_index"`
	Published  *bool   `json:"published"`
}

type UpdateBlockRequest struct {
	Title      *string `json:"title"`
	Body       *string `json:"body"`
	ImageURL   *string `json:"image_url"`
	OrderIndex *int    `json:"order_index"`
	Published  *bool   `json:"published"`
}
