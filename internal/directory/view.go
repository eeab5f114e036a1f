package directory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/format"
	"github.com/vimestats/internal/ranks"
)

// Display strings
const (
	EmptyMessage     = "Игроки не найдены"
	LoadingMessage   = "Загрузка игроков..."
	ShapeMessage     = "Неверная структура данных от API"
	LoadErrorPrefix  = "Ошибка при загрузке данных: "
	AllRanksAccent   = "white"
	DefaultSkinBase  = "https://skin.vimeworld.com"
	DefaultWindow    = 5
	primeBadgeLabel  = "Prime"
	headPathTemplate = "%s/helm/3d/%s.png"
)

// Row is one rendered directory line
type Row struct {
	Number        int              `json:"number"`
	Username      string           `json:"username"`
	Rank          string           `json:"rank"`
	RankName      string           `json:"rank_name,omitempty"`
	RankBadge     string           `json:"rank_badge,omitempty"`
	NameStyle     format.NameStyle `json:"name_style"`
	Prime         string           `json:"prime,omitempty"`
	Guild         *domain.Guild    `json:"guild,omitempty"`
	Level         int              `json:"level"`
	PlayedSeconds int64            `json:"played_seconds"`
	Played        string           `json:"played"`
	ProfileURL    string           `json:"profile_url"`
	HeadURL       string           `json:"head_url"`
}

// PaginationView is the state of the pagination controls
type PaginationView struct {
	Page          int    `json:"page"`
	TotalPages    int    `json:"total_pages"`
	Total         int64  `json:"total"`
	Info          string `json:"info"`
	FirstDisabled bool   `json:"first_disabled"`
	PrevDisabled  bool   `json:"prev_disabled"`
	NextDisabled  bool   `json:"next_disabled"`
	LastDisabled  bool   `json:"last_disabled"`
	Pages         []int  `json:"pages"`
}

// View is a fully rendered directory page
type View struct {
	Rows       []Row          `json:"rows"`
	Empty      string         `json:"empty,omitempty"`
	Pagination PaginationView `json:"pagination"`
}

// ApplyFilters keeps the players whose username contains search
// case-insensitively and orders them by level, highest first. Players with
// equal levels keep their API order. The input slice is not modified.
func ApplyFilters(players []domain.Player, search string) []domain.Player {
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]domain.Player, 0, len(players))
	for _, p := range players {
		if search != "" && !strings.Contains(strings.ToLower(p.Username), search) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level > out[j].Level
	})
	return out
}

// BuildRows renders players as rows numbered from the start of page
func BuildRows(players []domain.Player, page, pageSize int, skinBase string) []Row {
	if page < 1 {
		page = 1
	}
	if skinBase == "" {
		skinBase = DefaultSkinBase
	}
	start := (page - 1) * pageSize

	rows := make([]Row, 0, len(players))
	for i, p := range players {
		rank := p.Rank
		if rank == "" {
			rank = domain.DefaultRank
		}
		row := Row{
			Number:        start + i + 1,
			Username:      p.Username,
			Rank:          rank,
			NameStyle:     format.NameStyleFor(p.CustomColors),
			Level:         p.Level,
			PlayedSeconds: p.PlayedSeconds,
			Played:        format.PlaytimeShort(p.PlayedSeconds),
			ProfileURL:    domain.PlayerPageURL(p.Username),
			HeadURL:       fmt.Sprintf(headPathTemplate, strings.TrimRight(skinBase, "/"), p.Username),
		}
		// the default rank gets no badge
		if rank != domain.DefaultRank {
			row.RankName = ranks.Name(rank)
			row.RankBadge = format.Background(ranks.Colors(rank))
		}
		if p.IsPrime {
			row.Prime = primeBadgeLabel
		}
		if p.HasGuild() {
			row.Guild = p.Guild
		}
		rows = append(rows, row)
	}
	return rows
}

// PageWindow returns up to size page numbers around current, shifted left
// when current is close to the last page.
func PageWindow(current, totalPages, size int) []int {
	if size < 1 {
		size = DefaultWindow
	}
	start := max(1, current-size/2)
	end := min(totalPages, start+size-1)
	if end-start < size-1 {
		start = max(1, end-size+1)
	}

	pages := make([]int, 0, size)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// BuildPaginationView derives the control state from p
func BuildPaginationView(p domain.Pagination, window int) PaginationView {
	return PaginationView{
		Page:          p.Page,
		TotalPages:    p.TotalPages,
		Total:         p.Total,
		Info:          fmt.Sprintf("Страница %d из %s (всего игроков: %s)", p.Page, format.Count(int64(p.TotalPages)), format.Count(p.Total)),
		FirstDisabled: p.Page == 1,
		PrevDisabled:  !p.HasPrev,
		NextDisabled:  !p.HasNext,
		LastDisabled:  p.Page == p.TotalPages,
		Pages:         PageWindow(p.Page, p.TotalPages, window),
	}
}

// RankAccent is the background of the rank selector for code: white for all
// ranks, otherwise the rank's solid color or gradient.
func RankAccent(code string) string {
	if code == "" {
		return AllRanksAccent
	}
	return format.Background(ranks.Colors(code))
}

// Render turns a fetched page into a view. Players are filtered by search;
// page numbering follows p's pagination or fallback when it has none.
func Render(page *domain.PlayerPage, fallback domain.Pagination, search string, opts Options) View {
	opts = opts.withDefaults()

	pagination := fallback
	if page.Pagination != nil {
		pagination = *page.Pagination
	}

	filtered := ApplyFilters(page.Players, search)
	v := View{
		Rows:       BuildRows(filtered, pagination.Page, opts.PageSize, opts.SkinBase),
		Pagination: BuildPaginationView(pagination, opts.PageWindow),
	}
	if len(v.Rows) == 0 {
		v.Empty = EmptyMessage
	}
	return v
}
