package tracker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// SendMessage sends a message to another agent through the Tracker.
func (c *Client) SendMessage(ctx context.Context, recipient, body string) (*models.Message, error) {
	req := map[string]string{
		"sender":    c.sender,
		"recipient": recipient,
		"body":      body,
	}
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Inbox lists unread messages addressed to this client's sender identity.
func (c *Client) Inbox(ctx context.Context) ([]models.Message, error) {
	query := url.Values{"recipient": {c.sender}}
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/inbox", query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Feed lists the most recent messages across all agents.
func (c *Client) Feed(ctx context.Context, limit int) ([]models.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/feed", query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// UnreadCount returns the number of unread messages for this client's
// sender identity.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	query := url.Values{"recipient": {c.sender}}
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread-count", query, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// CreateNote stores a free-form note.
func (c *Client) CreateNote(ctx context.Context, subject, body string) (*models.Note, error) {
	req := map[string]string{
		"subject": subject,
		"body":    body,
		"author":  c.sender,
	}
	var note models.Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", nil, req, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// ListNotes lists stored notes, newest first.
func (c *Client) ListNotes(ctx context.Context, limit int) ([]models.Note, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", query, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote fetches one note by id.
func (c *Client) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	var note models.Note
	if err := c.do(ctx, http.MethodGet, idPath("/api/notes", id), nil, nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// CreateCardRequest creates a board card, optionally linked to a task.
type CreateCardRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Column      models.BoardColumn `json:"column"`
	TaskID      *int64             `json:"task_id,omitempty"`
}

// UpdateCardRequest carries a partial card update.
type UpdateCardRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateCard adds a card to the board.
func (c *Client) CreateCard(ctx context.Context, req CreateCardRequest) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards", nil, req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCards lists board cards, optionally filtered by column.
func (c *Client) ListCards(ctx context.Context, column models.BoardColumn) ([]models.Card, error) {
	query := url.Values{}
	if column != "" {
		query.Set("column", string(column))
	}
	var cards []models.Card
	if err := c.do(ctx, http.MethodGet, "/api/cards", query, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetCard fetches one card by id.
func (c *Client) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodGet, idPath("/api/cards", id), nil, nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// MoveCard moves a card to another column.
func (c *Client) MoveCard(ctx context.Context, id int64, column models.BoardColumn) (*models.Card, error) {
	body := map[string]string{"column": string(column)}
	var card models.Card
	if err := c.do(ctx, http.MethodPost, idPath("/api/cards", id)+"/move", nil, body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard applies a partial update to a card.
func (c *Client) UpdateCard(ctx context.Context, id int64, req UpdateCardRequest) (*models.Card, error) {
	var card models.Card
	if err := c.do(ctx, http.MethodPatch, idPath("/api/cards", id), nil, req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// ArchiveCard archives a card, removing it from the board view.
func (c *Client) ArchiveCard(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, idPath("/api/cards", id)+"/archive", nil, nil, nil)
}

// Search runs a full-text search across tasks, messages, notes, and cards.
func (c *Client) Search(ctx context.Context, queryText string) ([]models.SearchHit, error) {
	query := url.Values{"q": {queryText}}
	var hits []models.SearchHit
	if err := c.do(ctx, http.MethodGet, "/api/search", query, nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}
