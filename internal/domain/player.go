package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vimestats/internal/format"
)

// DefaultRank is assumed when a player record carries no rank
const DefaultRank = "PLAYER"

// Guild is the optional guild block of a player record
type Guild struct {
	Tag   string `json:"tag"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Player is a player record as returned by the upstream APIs.
//
// The directory API and the user API disagree on field naming
// (custom_colors vs customColors, played_seconds vs playedSeconds).
// UnmarshalJSON accepts both spellings; Player always marshals the
// directory spelling.
type Player struct {
	ID            int64    `json:"id,omitempty"`
	Username      string   `json:"username"`
	Rank          string   `json:"rank"`
	Level         int      `json:"level"`
	PlayedSeconds int64    `json:"played_seconds"`
	CustomColors  []string `json:"custom_colors,omitempty"`
	Guild         *Guild   `json:"guild,omitempty"`
	IsPrime       bool     `json:"is_prime"`
}

// UnmarshalJSON decodes either upstream spelling of a player record.
func (p *Player) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                 int64           `json:"id"`
		Username           string          `json:"username"`
		Rank               string          `json:"rank"`
		Level              int             `json:"level"`
		PlayedSeconds      *int64          `json:"played_seconds"`
		PlayedSecondsCamel *int64          `json:"playedSeconds"`
		CustomColors       json.RawMessage `json:"custom_colors"`
		CustomColorsCamel  json.RawMessage `json:"customColors"`
		Guild              *Guild          `json:"guild"`
		IsPrime            bool            `json:"is_prime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding player: %w", err)
	}

	*p = Player{
		ID:       raw.ID,
		Username: raw.Username,
		Rank:     raw.Rank,
		Level:    raw.Level,
		Guild:    raw.Guild,
		IsPrime:  raw.IsPrime,
	}
	if p.Rank == "" {
		p.Rank = DefaultRank
	}
	switch {
	case raw.PlayedSeconds != nil:
		p.PlayedSeconds = *raw.PlayedSeconds
	case raw.PlayedSecondsCamel != nil:
		p.PlayedSeconds = *raw.PlayedSecondsCamel
	}

	colors := raw.CustomColors
	if len(colors) == 0 || string(colors) == "null" {
		colors = raw.CustomColorsCamel
	}
	p.CustomColors = decodeColors(colors)

	if p.Guild != nil && p.Guild.Name == "" && p.Guild.Tag == "" {
		p.Guild = nil
	}
	return nil
}

// decodeColors accepts a JSON list of strings or a comma-joined string.
// Anything else yields no colors.
func decodeColors(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return format.CompactColors(list)
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		return format.SplitColors(joined)
	}
	return nil
}

// PlayerPageURL is the relative link to a player's profile page
func PlayerPageURL(username string) string {
	return "player.html?username=" + format.EscapeComponent(username)
}

// HasGuild reports whether the guild block should be shown
func (p *Player) HasGuild() bool {
	return p.Guild != nil && p.Guild.Name != ""
}

// LookupEvent records a single quick-search lookup
type LookupEvent struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Username  string    `json:"username,omitempty"`
	Found     bool      `json:"found"`
	CreatedAt time.Time `json:"created_at"`
}

// PopularLookup is an aggregated lookup count for a canonical username
type PopularLookup struct {
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

// PlayerCard is the cache-first summary shown in the recent-nicks dropdown
type PlayerCard struct {
	Username     string   `json:"username"`
	Rank         string   `json:"rank"`
	RankName     string   `json:"rank_name"`
	RankColors   []string `json:"rank_colors"`
	CustomColors []string `json:"custom_colors"`
	Online       *bool    `json:"online"`
	Cached       bool     `json:"cached"`
	// CachedAt is when the served entry was saved; nil for fresh lookups
	CachedAt *time.Time `json:"cached_at,omitempty"`
}
