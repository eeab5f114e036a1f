package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vimestats/internal/cache"
	"github.com/vimestats/internal/directory"
	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/metrics"
	"github.com/vimestats/internal/ranks"
	"github.com/vimestats/internal/search"
)

// sharedScope holds the player cache used by player cards and warm-up
const sharedScope = "shared"

// UserAPI is the VimeWorld user API
type UserAPI interface {
	search.UserLookup
	Session(ctx context.Context, name string) (*bool, error)
}

// LookupStore persists quick-search history
type LookupStore interface {
	RecordLookup(ctx context.Context, event domain.LookupEvent) error
	PopularLookups(ctx context.Context, limit int) ([]domain.PopularLookup, error)
}

// LookupPruner drops old lookup history
type LookupPruner interface {
	PruneLookups(ctx context.Context, cutoff time.Time) (int64, error)
}

// DirectoryQuery is a one-shot directory request
type DirectoryQuery struct {
	Page   int
	Rank   string
	Search string
}

// Options configures a Portal
type Options struct {
	Directory  directory.Options
	SessionTTL time.Duration
	Now        func() time.Time
}

// Portal composes the upstream clients, visitor caches and lookup history
// into the operations exposed over HTTP, WebSocket and Kafka.
type Portal struct {
	users   UserAPI
	dir     directory.Source
	cache   *cache.LocalCache
	lookups LookupStore
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]time.Time
	stats    domain.RankStats
}

// NewPortal creates a portal. lookups may be nil when history is disabled.
func NewPortal(users UserAPI, dir directory.Source, c *cache.LocalCache, lookups LookupStore, opts Options, logger *slog.Logger) *Portal {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Portal{
		users:    users,
		dir:      dir,
		cache:    c,
		lookups:  lookups,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]time.Time),
	}
}

// Directory runs the fetch, filter, sort and render pipeline once. When a
// server-side search fails the unfiltered page is fetched and filtered
// locally instead.
func (p *Portal) Directory(ctx context.Context, q DirectoryQuery) (*directory.View, error) {
	if q.Rank != "" && !ranks.IsValid(q.Rank) {
		return nil, fmt.Errorf("%w: unknown rank %q", domain.ErrInvalidRequest, q.Rank)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))

	query := domain.PlayerQuery{
		Page:   q.Page,
		Limit:  p.pageSize(),
		Rank:   q.Rank,
		Search: q.Search,
	}
	page, err := p.dir.ListPlayers(ctx, query)
	if err != nil && q.Search != "" {
		p.logger.Warn("player search failed, filtering locally", "search", q.Search, "error", err)
		query.Search = ""
		page, err = p.dir.ListPlayers(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	view := directory.Render(page, domain.Pagination{Page: q.Page}, q.Search, p.opts.Directory)
	return &view, nil
}

// NewDirectory creates a live directory controller that reports to r
func (p *Portal) NewDirectory(r directory.Renderer) *directory.Controller {
	return directory.NewController(p.dir, r, p.opts.Directory, p.logger)
}

// Search resolves quick-search input for a visitor session
func (p *Portal) Search(ctx context.Context, sessionID, input string) search.Outcome {
	return p.searchService(sessionID).SearchAndRedirect(ctx, input, nil, nil)
}

// RememberNick resolves nick and saves its canonical form in the session's
// recent list, returning the new list.
func (p *Portal) RememberNick(ctx context.Context, sessionID, nick string) []string {
	return p.searchService(sessionID).SaveRecentNick(ctx, nick, nil)
}

// RecentNicks returns the session's recent nicknames
func (p *Portal) RecentNicks(ctx context.Context, sessionID string) []string {
	return p.sessionCache(sessionID).LoadRecentNicks(ctx)
}

// PlayerCard returns the summary for nick, served from the player cache
// while the entry is fresh.
func (p *Portal) PlayerCard(ctx context.Context, nick string) (*domain.PlayerCard, error) {
	shared := p.cache.WithScope(sharedScope)

	card := &domain.PlayerCard{}
	if entry := shared.GetPlayerData(ctx, nick); entry != nil {
		card.Username = entry.Username
		card.Rank = entry.Rank
		card.CustomColors = entry.CustomColors
		card.Cached = true
		savedAt := entry.SavedAt()
		card.CachedAt = &savedAt
	} else {
		player, err := p.users.UserByName(ctx, nick)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", nick, err)
		}
		shared.SavePlayerData(ctx, nick, playerData(player))
		card.Username = player.Username
		card.Rank = player.Rank
		card.CustomColors = player.CustomColors
	}

	if card.Rank == "" {
		card.Rank = domain.DefaultRank
	}
	if card.CustomColors == nil {
		card.CustomColors = []string{}
	}
	card.RankName = ranks.Name(card.Rank)
	card.RankColors = ranks.Colors(card.Rank)

	online, err := p.users.Session(ctx, card.Username)
	if err != nil {
		p.logger.Warn("failed to fetch session", "username", card.Username, "error", err)
	}
	card.Online = online
	return card, nil
}

// Warm fetches and caches the given nicknames, skipping those with a fresh
// cache entry. It returns how many were fetched.
func (p *Portal) Warm(ctx context.Context, names []string) int {
	shared := p.cache.WithScope(sharedScope)
	seen := make(map[string]bool, len(names))
	warmed := 0

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if shared.GetPlayerData(ctx, name) != nil {
			metrics.WarmupProcessed.WithLabelValues("cached").Inc()
			continue
		}

		player, err := p.users.UserByName(ctx, name)
		switch {
		case err == nil:
			shared.SavePlayerData(ctx, name, playerData(player))
			metrics.WarmupProcessed.WithLabelValues("warmed").Inc()
			warmed++
		case domain.IsNotFoundError(err):
			metrics.WarmupProcessed.WithLabelValues("not_found").Inc()
		default:
			metrics.WarmupProcessed.WithLabelValues("error").Inc()
			p.logger.Warn("failed to warm player", "username", name, "error", err)
		}
	}
	return warmed
}

// RankStats returns the last known per-rank counts, loading them on first use
func (p *Portal) RankStats(ctx context.Context) domain.RankStats {
	p.mu.Lock()
	stats := p.stats
	p.mu.Unlock()
	if stats != nil {
		return copyStats(stats)
	}
	return p.RefreshRankStats(ctx)
}

// RefreshRankStats reloads per-rank counts from the directory API
func (p *Portal) RefreshRankStats(ctx context.Context) domain.RankStats {
	stats := directory.FetchRankStats(ctx, p.dir, p.opts.Directory.StatsConcurrency, p.logger, nil)

	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
	return copyStats(stats)
}

// PopularLookups returns the most looked-up players. Without lookup history
// the list is empty.
func (p *Portal) PopularLookups(ctx context.Context, limit int) ([]domain.PopularLookup, error) {
	if p.lookups == nil {
		return []domain.PopularLookup{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return p.lookups.PopularLookups(ctx, limit)
}

// PruneLookups deletes lookup history older than retention. Stores that
// cannot prune are left alone.
func (p *Portal) PruneLookups(ctx context.Context, retention time.Duration) (int64, error) {
	pruner, ok := p.lookups.(LookupPruner)
	if !ok || retention <= 0 {
		return 0, nil
	}
	n, err := pruner.PruneLookups(ctx, p.opts.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("pruning lookup history: %w", err)
	}
	return n, nil
}

// SweepExpired removes expired player entries from the shared cache and
// from every session seen within the session TTL. Sessions idle for longer
// are swept one last time, then their stored keys are deleted and they are
// forgotten. It returns the number of removed entries.
func (p *Portal) SweepExpired(ctx context.Context) int {
	now := p.opts.Now()
	scopes := []string{sharedScope}
	var idle []string

	p.mu.Lock()
	for id, seen := range p.sessions {
		if now.Sub(seen) > p.opts.SessionTTL {
			delete(p.sessions, id)
			idle = append(idle, id)
			continue
		}
		scopes = append(scopes, id)
	}
	p.mu.Unlock()

	removed := 0
	for _, scope := range scopes {
		removed += p.cache.WithScope(scope).CleanExpiredCache(ctx)
	}
	for _, id := range idle {
		scoped := p.cache.WithScope(id)
		removed += scoped.CleanExpiredCache(ctx)
		scoped.Clear(ctx)
	}
	if len(idle) > 0 {
		p.logger.Debug("forgot idle sessions", "count", len(idle))
	}
	return removed
}

// ActiveSessions returns the number of sessions seen within the session TTL
func (p *Portal) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Portal) searchService(sessionID string) *search.Service {
	svc := search.NewService(p.users, p.sessionCache(sessionID), p.logger)
	if p.lookups != nil {
		svc = svc.WithRecorder(p.lookups, sessionID)
	}
	return svc
}

// sessionCache returns the session's cache and marks the session as seen
func (p *Portal) sessionCache(sessionID string) *cache.LocalCache {
	p.mu.Lock()
	p.sessions[sessionID] = p.opts.Now()
	p.mu.Unlock()
	return p.cache.WithScope(sessionID)
}

func (p *Portal) pageSize() int {
	if p.opts.Directory.PageSize > 0 {
		return p.opts.Directory.PageSize
	}
	return domain.PageSize
}

func playerData(player *domain.Player) cache.PlayerData {
	return cache.PlayerData{
		Rank:         player.Rank,
		CustomColors: player.CustomColors,
		Username:     player.Username,
	}
}

func copyStats(in domain.RankStats) domain.RankStats {
	out := make(domain.RankStats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
