package history

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/parley-im/parley-go/internal/model"
)

// roomsResponse is the wire shape of GET /v1/rooms.
type roomsResponse struct {
	Rooms []model.Room `json:"rooms"`
}

// messagesResponse is the wire shape of GET /v1/rooms/{id}/messages.
type messagesResponse struct {
	Messages   []model.Message `json:"messages"`
	NextCursor string          `json:"next_cursor"`
	HasMore    bool            `json:"has_more"`
}

// Page is one cursor page of older messages for a room.
type Page struct {
	Messages   []model.Message
	NextCursor string
	HasMore    bool
}

// ListRooms fetches the rooms this user belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]model.Room, error) {
	var resp roomsResponse
	if err := c.get(ctx, "/v1/rooms", nil, &resp); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// MessagesPage fetches one page of a room's history, older-first from the
// cursor. An empty cursor requests the most recent page.
func (c *Client) MessagesPage(ctx context.Context, roomID, cursor string, limit int) (Page, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp messagesResponse
	path := "/v1/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.get(ctx, path, query, &resp); err != nil {
		return Page{}, fmt.Errorf("messages page for %s: %w", roomID, err)
	}

	return Page{
		Messages:   resp.Messages,
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}, nil
}
