// Package search resolves quick-search input (a nickname or "id:<digits>")
// into a canonical username and keeps the visitor's recent-nicks list.
package search

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vimestats/internal/cache"
	"github.com/vimestats/internal/domain"
)

// User-facing messages
const (
	MsgInvalidID    = `После "id:" должны быть только цифры`
	MsgIDNotFound   = "Игрок с таким ID не найден"
	MsgIDError      = "Произошла ошибка при поиске игрока по ID"
	MsgNameNotFound = "Игрок не найден"
	MsgNameError    = "Произошла ошибка при поиске игрока"
	idPrefix        = "id:"
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

// OutcomeKind classifies the result of a search
type OutcomeKind string

const (
	OutcomeNone     OutcomeKind = "none"
	OutcomeRedirect OutcomeKind = "redirect"
	OutcomeInvalid  OutcomeKind = "invalid"
	OutcomeNotFound OutcomeKind = "not_found"
	OutcomeError    OutcomeKind = "error"
)

// Outcome is what the caller shows after a search: a redirect target or a message
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Redirect string      `json:"redirect,omitempty"`
	Username string      `json:"username,omitempty"`
	Message  string      `json:"message,omitempty"`
	Recent   []string    `json:"recent,omitempty"`
}

// UserLookup resolves players against the user API
type UserLookup interface {
	UserByName(ctx context.Context, name string) (*domain.Player, error)
	UserByID(ctx context.Context, id string) (*domain.Player, error)
}

// Recorder stores lookup history
type Recorder interface {
	RecordLookup(ctx context.Context, event domain.LookupEvent) error
}

// Control is the input that is disabled while a search runs
type Control interface {
	SetDisabled(disabled bool)
}

// Service runs quick searches for one visitor
type Service struct {
	users     UserLookup
	cache     *cache.LocalCache
	recorder  Recorder
	sessionID string
	logger    *slog.Logger
}

// NewService creates a search service over the visitor's cache
func NewService(users UserLookup, c *cache.LocalCache, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		cache:  c,
		logger: logger,
	}
}

// WithRecorder returns a copy that reports every lookup to r under sessionID
func (s *Service) WithRecorder(r Recorder, sessionID string) *Service {
	cp := *s
	cp.recorder = r
	cp.sessionID = sessionID
	return &cp
}

// OriginalUsername returns the canonical username for input. Not-found and
// lookup failures both yield false; failures are logged.
func (s *Service) OriginalUsername(ctx context.Context, input string) (string, bool) {
	p, err := s.users.UserByName(ctx, input)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			s.logger.Error("failed to resolve original username", "input", input, "error", err)
		}
		return "", false
	}
	return p.Username, true
}

// PlayerByID returns the player with the numeric id, or nil
func (s *Service) PlayerByID(ctx context.Context, id string) *domain.Player {
	p, err := s.users.UserByID(ctx, id)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			s.logger.Error("failed to fetch player by id", "id", id, "error", err)
		}
		return nil
	}
	return p
}

// SearchAndRedirect resolves input and returns where to go next. control is
// disabled for the duration of the call; onUpdate receives the new recent
// list after a successful lookup. Both may be nil.
func (s *Service) SearchAndRedirect(ctx context.Context, input string, control Control, onUpdate func([]string)) Outcome {
	if strings.TrimSpace(input) == "" {
		return Outcome{Kind: OutcomeNone}
	}

	if control != nil {
		control.SetDisabled(true)
		defer control.SetDisabled(false)
	}

	if strings.HasPrefix(strings.ToLower(input), idPrefix) {
		id := strings.TrimSpace(input[len(idPrefix):])
		if !digitsOnly.MatchString(id) {
			return Outcome{Kind: OutcomeInvalid, Message: MsgInvalidID}
		}

		p, err := s.users.UserByID(ctx, id)
		s.record(ctx, input, p, err)
		switch {
		case err == nil:
			return s.found(ctx, p, onUpdate)
		case domain.IsNotFoundError(err):
			return Outcome{Kind: OutcomeNotFound, Message: MsgIDNotFound}
		default:
			s.logger.Error("failed to fetch player by id", "id", id, "error", err)
			return Outcome{Kind: OutcomeError, Message: MsgIDError}
		}
	}

	name := strings.TrimSpace(input)
	p, err := s.users.UserByName(ctx, name)
	s.record(ctx, input, p, err)
	switch {
	case err == nil:
		return s.found(ctx, p, onUpdate)
	case domain.IsNotFoundError(err):
		return Outcome{Kind: OutcomeNotFound, Message: MsgNameNotFound}
	default:
		s.logger.Error("failed to resolve original username", "input", name, "error", err)
		return Outcome{Kind: OutcomeError, Message: MsgNameError}
	}
}

// SaveRecentNick resolves nick to its canonical form and saves that to the
// recent list. When the lookup fails the typed nick is saved instead; when
// the player does not exist nothing is saved.
func (s *Service) SaveRecentNick(ctx context.Context, nick string, onUpdate func([]string)) []string {
	p, err := s.users.UserByName(ctx, nick)
	switch {
	case err == nil:
		nicks := s.cache.SaveRecentNickSync(ctx, p.Username)
		if onUpdate != nil {
			onUpdate(nicks)
		}
		return nicks
	case domain.IsNotFoundError(err):
		return s.cache.LoadRecentNicks(ctx)
	default:
		s.logger.Error("failed to resolve original username", "input", nick, "error", err)
		nicks := s.cache.SaveRecentNickSync(ctx, nick)
		if onUpdate != nil {
			onUpdate(nicks)
		}
		return nicks
	}
}

// RedirectURL returns the player page for a canonical username
func RedirectURL(username string) string {
	return domain.PlayerPageURL(username)
}

func (s *Service) found(ctx context.Context, p *domain.Player, onUpdate func([]string)) Outcome {
	s.cache.SavePlayerData(ctx, p.Username, cache.PlayerData{
		Rank:         p.Rank,
		CustomColors: p.CustomColors,
		Username:     p.Username,
	})

	nicks := s.cache.SaveRecentNickSync(ctx, p.Username)
	if onUpdate != nil {
		onUpdate(nicks)
	}
	return Outcome{
		Kind:     OutcomeRedirect,
		Redirect: RedirectURL(p.Username),
		Username: p.Username,
		Recent:   nicks,
	}
}

func (s *Service) record(ctx context.Context, query string, p *domain.Player, lookupErr error) {
	if s.recorder == nil {
		return
	}
	// transport failures say nothing about the player
	if lookupErr != nil && !domain.IsNotFoundError(lookupErr) {
		return
	}

	event := domain.LookupEvent{
		SessionID: s.sessionID,
		Query:     query,
		Found:     lookupErr == nil,
		CreatedAt: time.Now(),
	}
	if p != nil {
		event.Username = p.Username
	}
	if err := s.recorder.RecordLookup(ctx, event); err != nil {
		s.logger.Warn("failed to record lookup", "error", err)
	}
}
