// Package directory drives the paginated player directory: it fetches pages,
// filters and sorts them, and reports the result to a Renderer.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/metrics"
	"github.com/vimestats/internal/ranks"
)

// State is the controller's lifecycle state
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Source is the player-directory API
type Source interface {
	ListPlayers(ctx context.Context, q domain.PlayerQuery) (*domain.PlayerPage, error)
	RankStats(ctx context.Context) (domain.RankStats, error)
	RankCount(ctx context.Context, rank string) (int64, error)
}

// Renderer receives everything the directory displays. Calls are made while
// the controller holds its lock, in order; a Renderer must not call back
// into the controller.
type Renderer interface {
	ShowLoading()
	ShowError(message string)
	RenderRows(rows []Row)
	UpdatePagination(view PaginationView)
	UpdateRankAccent(accent string)
	UpdateRankCount(rank string, count int64)
}

// Options configures a Controller
type Options struct {
	PageSize       int
	PageWindow     int
	SearchDebounce time.Duration
	SkinBase       string
	// StatsConcurrency bounds the per-rank fallback requests
	StatsConcurrency int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = domain.PageSize
	}
	if o.PageWindow <= 0 {
		o.PageWindow = DefaultWindow
	}
	if o.SearchDebounce <= 0 {
		o.SearchDebounce = 500 * time.Millisecond
	}
	if o.SkinBase == "" {
		o.SkinBase = DefaultSkinBase
	}
	if o.StatsConcurrency <= 0 {
		o.StatsConcurrency = 8
	}
	return o
}

// Filters are the active directory filters
type Filters struct {
	Rank   string `json:"rank"`
	Search string `json:"search"`
}

// Snapshot is a copy of the controller state
type Snapshot struct {
	State      string            `json:"state"`
	Loading    bool              `json:"loading"`
	Filters    Filters           `json:"filters"`
	Pagination domain.Pagination `json:"pagination"`
	Rows       []Row             `json:"rows"`
}

// Controller owns one visitor's directory state.
//
// Every fetch is tagged with a sequence number; a response that arrives
// after a newer fetch was dispatched is dropped.
type Controller struct {
	source   Source
	renderer Renderer
	opts     Options
	logger   *slog.Logger
	debounce *Debouncer

	mu            sync.Mutex
	state         State
	inflight      int
	seq           uint64
	searchPending bool
	filters       Filters
	pagination    domain.Pagination
	players       []domain.Player
	filtered      []domain.Player
	stats         domain.RankStats
}

// NewController creates a controller positioned on page 1 with no filters
func NewController(source Source, renderer Renderer, opts Options, logger *slog.Logger) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		source:     source,
		renderer:   renderer,
		opts:       opts,
		logger:     logger,
		debounce:   NewDebouncer(opts.SearchDebounce),
		pagination: domain.Pagination{Page: 1, TotalPages: 1},
		stats:      make(domain.RankStats),
	}
}

// Close cancels a pending debounced search
func (c *Controller) Close() {
	c.debounce.Cancel()
}

// Snapshot returns a copy of the current state and rendered rows
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state.String(),
		Loading:    c.inflight > 0,
		Filters:    c.filters,
		Pagination: c.pagination,
		Rows:       c.rowsLocked(),
	}
}

// LoadPlayers fetches the current page with the active rank filter. It is a
// no-op while another fetch is in flight.
func (c *Controller) LoadPlayers(ctx context.Context) {
	c.mu.Lock()
	if c.inflight > 0 {
		c.mu.Unlock()
		return
	}
	seq := c.beginLocked()
	c.searchPending = false
	q := domain.PlayerQuery{
		Page:  c.pagination.Page,
		Limit: c.opts.PageSize,
		Rank:  c.filters.Rank,
	}
	c.mu.Unlock()
	defer c.finish()

	page, err := c.source.ListPlayers(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staleLocked(seq) {
		return
	}
	if err != nil {
		c.logger.Error("failed to load players", "page", q.Page, "rank", q.Rank, "error", err)
		c.state = StateError
		c.renderer.ShowError(ErrorMessage(err))
		return
	}

	c.acceptLocked(page)
}

// SearchPlayers asks the API for players matching the search filter. When
// the request fails the loaded page is filtered locally instead.
func (c *Controller) SearchPlayers(ctx context.Context) {
	c.mu.Lock()
	term := c.filters.Search
	if term == "" {
		c.refilterLocked()
		c.mu.Unlock()
		return
	}
	seq := c.beginLocked()
	c.searchPending = true
	q := domain.PlayerQuery{
		Page:   1,
		Limit:  c.opts.PageSize,
		Rank:   c.filters.Rank,
		Search: term,
	}
	c.mu.Unlock()
	defer c.finish()

	page, err := c.source.ListPlayers(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.staleLocked(seq) {
		return
	}
	c.searchPending = false
	if err != nil {
		c.logger.Warn("player search failed, filtering locally", "search", term, "error", err)
		c.state = StateLoaded
		c.refilterLocked()
		return
	}

	c.acceptLocked(page)
}

// SetSearch updates the search filter. An empty term re-filters the loaded
// page at once; otherwise a server-side search runs after the debounce delay.
func (c *Controller) SetSearch(ctx context.Context, term string) {
	term = strings.ToLower(strings.TrimSpace(term))

	c.mu.Lock()
	c.filters.Search = term
	if term == "" {
		c.debounce.Cancel()
		// a search still in flight would overwrite the unfiltered page
		if c.searchPending {
			c.seq++
			c.searchPending = false
		}
		c.refilterLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.debounce.Trigger(func() {
		c.SearchPlayers(ctx)
	})
}

// SelectRank sets the rank filter ("" for all ranks), updates the accent,
// and reloads from page 1.
func (c *Controller) SelectRank(ctx context.Context, code string) error {
	if code != "" && !ranks.IsValid(code) {
		return domain.ErrInvalidInput
	}

	c.mu.Lock()
	c.filters.Rank = code
	c.pagination.Page = 1
	c.renderer.UpdateRankAccent(RankAccent(code))
	c.mu.Unlock()

	c.LoadPlayers(ctx)
	return nil
}

// First goes to page 1 unless already there
func (c *Controller) First(ctx context.Context) bool {
	return c.navigate(ctx, func(p *domain.Pagination) bool {
		if p.Page == 1 {
			return false
		}
		p.Page = 1
		return true
	})
}

// Prev goes one page back when the API reported a previous page
func (c *Controller) Prev(ctx context.Context) bool {
	return c.navigate(ctx, func(p *domain.Pagination) bool {
		if !p.HasPrev || p.Page <= 1 {
			return false
		}
		p.Page--
		return true
	})
}

// Next goes one page forward when the API reported a next page
func (c *Controller) Next(ctx context.Context) bool {
	return c.navigate(ctx, func(p *domain.Pagination) bool {
		if !p.HasNext {
			return false
		}
		p.Page++
		return true
	})
}

// Last goes to the last page unless already there
func (c *Controller) Last(ctx context.Context) bool {
	return c.navigate(ctx, func(p *domain.Pagination) bool {
		if p.TotalPages < 1 || p.Page == p.TotalPages {
			return false
		}
		p.Page = p.TotalPages
		return true
	})
}

// GoTo loads an explicit page. Pages outside [1, max(totalPages, 1)] are
// rejected, so page 1 stays reachable after a failed or empty load.
func (c *Controller) GoTo(ctx context.Context, page int) error {
	c.mu.Lock()
	if page < 1 || page > max(c.pagination.TotalPages, 1) {
		c.mu.Unlock()
		return domain.ErrPageOutOfRange
	}
	c.pagination.Page = page
	c.mu.Unlock()

	c.LoadPlayers(ctx)
	return nil
}

// LoadRankStats loads per-rank player counts and publishes each one to the
// renderer as it arrives.
func (c *Controller) LoadRankStats(ctx context.Context) domain.RankStats {
	FetchRankStats(ctx, c.source, c.opts.StatsConcurrency, c.logger, func(code string, n int64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stats[code] = n
		c.renderer.UpdateRankCount(code, n)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// FetchRankStats loads per-rank player counts from the stats endpoint. When
// that is unavailable every rank is counted with its own single-row request,
// at most concurrency at a time. onCount, if set, sees each count as soon as
// it is known. Zero counts from the stats endpoint and ranks whose count
// failed are left out.
func FetchRankStats(ctx context.Context, source Source, concurrency int, logger *slog.Logger, onCount func(code string, n int64)) domain.RankStats {
	var mu sync.Mutex
	out := make(domain.RankStats)
	publish := func(code string, n int64) {
		mu.Lock()
		out[code] = n
		mu.Unlock()
		if onCount != nil {
			onCount(code, n)
		}
	}

	stats, err := source.RankStats(ctx)
	if err == nil {
		for _, code := range ranks.AllCodes() {
			if n := stats[code]; n > 0 {
				publish(code, n)
			}
		}
		return out
	}
	logger.Info("rank stats endpoint unavailable, counting per rank", "error", err)

	if concurrency <= 0 {
		concurrency = 8
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, code := range ranks.AllCodes() {
		code := code
		g.Go(func() error {
			n, err := source.RankCount(ctx, code)
			if err != nil {
				logger.Warn("failed to count rank", "rank", code, "error", err)
				return nil
			}
			publish(code, n)
			return nil
		})
	}
	g.Wait()
	return out
}

// ErrorMessage is the inline error shown for a failed directory fetch
func ErrorMessage(err error) string {
	if errors.Is(err, domain.ErrUnexpectedShape) {
		return ShapeMessage
	}
	return LoadErrorPrefix + err.Error()
}

func (c *Controller) navigate(ctx context.Context, move func(p *domain.Pagination) bool) bool {
	c.mu.Lock()
	moved := move(&c.pagination)
	c.mu.Unlock()

	if moved {
		c.LoadPlayers(ctx)
	}
	return moved
}

// beginLocked marks a fetch as dispatched and returns its sequence number
func (c *Controller) beginLocked() uint64 {
	c.inflight++
	c.seq++
	c.state = StateLoading
	c.renderer.ShowLoading()
	return c.seq
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

func (c *Controller) staleLocked(seq uint64) bool {
	if seq == c.seq {
		return false
	}
	metrics.StaleResponses.Inc()
	c.logger.Debug("discarding stale directory response", "seq", seq, "latest", c.seq)
	return true
}

// acceptLocked replaces the page data and re-renders
func (c *Controller) acceptLocked(page *domain.PlayerPage) {
	if page.Pagination != nil {
		c.pagination = *page.Pagination
		if c.pagination.Page < 1 {
			c.pagination.Page = 1
		}
	}
	c.players = page.Players
	c.state = StateLoaded
	c.refilterLocked()
	c.renderer.UpdatePagination(BuildPaginationView(c.pagination, c.opts.PageWindow))
}

// refilterLocked re-derives the filtered list from the loaded page and renders it
func (c *Controller) refilterLocked() {
	c.filtered = ApplyFilters(c.players, c.filters.Search)
	c.renderer.RenderRows(c.rowsLocked())
}

func (c *Controller) rowsLocked() []Row {
	return BuildRows(c.filtered, c.pagination.Page, c.opts.PageSize, c.opts.SkinBase)
}

func (c *Controller) statsLocked() domain.RankStats {
	out := make(domain.RankStats, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}
