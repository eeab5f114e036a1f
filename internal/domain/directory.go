package domain

// PageSize is the number of players requested per directory page
const PageSize = 100

// PlayerQuery describes a request to the player-directory API
type PlayerQuery struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Rank   string `json:"rank,omitempty"`
	Search string `json:"search,omitempty"`
}

// Pagination is the pagination block reported by the directory API
type Pagination struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
	Total      int64 `json:"total"`
}

// PlayerPage is a normalized directory response
type PlayerPage struct {
	Players []Player
	// Pagination is nil when the response carried no pagination block
	Pagination *Pagination
}

// RankStats maps a rank code to the number of players holding it
type RankStats map[string]int64
