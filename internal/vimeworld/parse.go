package vimeworld

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vimestats/internal/domain"
)

// envelope is the {success, response} wrapper of the directory API
type envelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
}

func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}
	if !env.Success || isJSONNull(env.Response) {
		return nil, fmt.Errorf("%w: unsuccessful or empty response", domain.ErrUnexpectedShape)
	}
	return env.Response, nil
}

// ParsePlayersPage normalizes a directory response. The response body may be
// a bare array of players or an object carrying the players under "data" or
// "players" next to an optional "pagination" block. Any other shape fails
// with domain.ErrUnexpectedShape.
func ParsePlayersPage(body []byte) (*domain.PlayerPage, error) {
	resp, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	if isJSONArray(resp) {
		players, err := decodePlayers(resp)
		if err != nil {
			return nil, err
		}
		return &domain.PlayerPage{Players: players}, nil
	}

	var obj struct {
		Pagination *domain.Pagination `json:"pagination"`
		Data       json.RawMessage    `json:"data"`
		Players    json.RawMessage    `json:"players"`
	}
	if err := json.Unmarshal(resp, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}

	var list json.RawMessage
	switch {
	case isJSONArray(obj.Data):
		list = obj.Data
	case isJSONArray(obj.Players):
		list = obj.Players
	default:
		return nil, fmt.Errorf("%w: no player list in response", domain.ErrUnexpectedShape)
	}

	players, err := decodePlayers(list)
	if err != nil {
		return nil, err
	}
	return &domain.PlayerPage{Players: players, Pagination: obj.Pagination}, nil
}

// ParseRankStats decodes the rank statistics response. Counts are read from
// response.ranks when present, otherwise from response itself; entries that
// are not numbers are ignored.
func ParseRankStats(body []byte) (domain.RankStats, error) {
	resp, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}
	if ranks, ok := fields["ranks"]; ok && isJSONObject(ranks) {
		fields = nil
		if err := json.Unmarshal(ranks, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
		}
	}

	stats := make(domain.RankStats, len(fields))
	for code, raw := range fields {
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		stats[code] = n
	}
	return stats, nil
}

func decodePlayers(raw json.RawMessage) ([]domain.Player, error) {
	players := []domain.Player{}
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedShape, err)
	}
	return players, nil
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func isJSONArray(raw []byte) bool  { return firstByte(raw) == '[' }
func isJSONObject(raw []byte) bool { return firstByte(raw) == '{' }

func isJSONNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}
