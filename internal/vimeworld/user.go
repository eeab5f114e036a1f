package vimeworld

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/vimestats/internal/domain"
)

// UserClient queries the VimeWorld user API
type UserClient struct {
	baseURL string
	t       transport
}

// NewUserClient creates a user API client. A zero timeout disables the
// per-request deadline.
func NewUserClient(baseURL string, timeout time.Duration, logger *slog.Logger) *UserClient {
	return &UserClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		t:       newTransport(timeout, logger),
	}
}

// UserByName looks a player up by nickname. The upstream match is
// case-insensitive and the returned record carries the canonical username.
func (c *UserClient) UserByName(ctx context.Context, name string) (*domain.Player, error) {
	body, err := c.t.get(ctx, "user_by_name", c.baseURL+"/user/name/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	return firstPlayer(body)
}

// UserByID looks a player up by numeric account id
func (c *UserClient) UserByID(ctx context.Context, id string) (*domain.Player, error) {
	body, err := c.t.get(ctx, "user_by_id", c.baseURL+"/user/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return firstPlayer(body)
}

// Session reports whether the player is online. It returns nil when the
// API does not know.
func (c *UserClient) Session(ctx context.Context, name string) (*bool, error) {
	body, err := c.t.get(ctx, "session", c.baseURL+"/user/name/"+url.PathEscape(name)+"/session")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Online *struct {
			Value bool `json:"value"`
		} `json:"online"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: session: %v", domain.ErrUnexpectedShape, err)
	}
	if resp.Online == nil {
		return nil, nil
	}
	online := resp.Online.Value
	return &online, nil
}

// firstPlayer decodes a user API array and returns its first element
func firstPlayer(body []byte) (*domain.Player, error) {
	if !isJSONArray(body) {
		return nil, fmt.Errorf("%w: expected array", domain.ErrUnexpectedShape)
	}

	var players []domain.Player
	if err := json.Unmarshal(body, &players); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}
	if len(players) == 0 {
		return nil, domain.ErrPlayerNotFound
	}
	return &players[0], nil
}
