package vimeworld

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/format"
)

// DirectoryClient queries the player-directory API, optionally through a
// CORS proxy.
type DirectoryClient struct {
	baseURL string
	proxy   string
	t       transport
}

// NewDirectoryClient creates a directory API client
func NewDirectoryClient(baseURL, proxy string, timeout time.Duration, logger *slog.Logger) *DirectoryClient {
	return &DirectoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		proxy:   proxy,
		t:       newTransport(timeout, logger),
	}
}

// PlayersURL builds the unproxied directory URL for q. Parameters keep the
// order page, limit, rank, search; empty rank and search are omitted.
func (c *DirectoryClient) PlayersURL(q domain.PlayerQuery) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/players?page=")
	b.WriteString(strconv.Itoa(q.Page))
	b.WriteString("&limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	if q.Rank != "" {
		b.WriteString("&rank=")
		b.WriteString(format.EscapeComponent(q.Rank))
	}
	if q.Search != "" {
		b.WriteString("&search=")
		b.WriteString(format.EscapeComponent(q.Search))
	}
	return b.String()
}

// ListPlayers fetches one directory page
func (c *DirectoryClient) ListPlayers(ctx context.Context, q domain.PlayerQuery) (*domain.PlayerPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = domain.PageSize
	}

	body, err := c.t.get(ctx, "players", ProxyURL(c.proxy, c.PlayersURL(q)))
	if err != nil {
		return nil, err
	}
	return ParsePlayersPage(body)
}

// RankStats fetches the aggregate player count per rank
func (c *DirectoryClient) RankStats(ctx context.Context) (domain.RankStats, error) {
	body, err := c.t.get(ctx, "stats", ProxyURL(c.proxy, c.baseURL+"/players/stats"))
	if err != nil {
		return nil, err
	}
	return ParseRankStats(body)
}

// RankCount returns the number of players holding rank by requesting a
// single-row page and reading the reported total.
func (c *DirectoryClient) RankCount(ctx context.Context, rank string) (int64, error) {
	page, err := c.ListPlayers(ctx, domain.PlayerQuery{Page: 1, Limit: 1, Rank: rank})
	if err != nil {
		return 0, err
	}
	if page.Pagination == nil {
		return 0, fmt.Errorf("%w: no pagination for rank %s", domain.ErrUnexpectedShape, rank)
	}
	return page.Pagination.Total, nil
}
