package vimeworld

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/vimestats/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestProxyURL(t *testing.T) {
	target := "https://vimetop.ru/api/v1/players?page=1&limit=100"
	got := ProxyURL("https://corsproxy.io/?", target)
	want := "https://corsproxy.io/?https%3A%2F%2Fvimetop.ru%2Fapi%2Fv1%2Fplayers%3Fpage%3D1%26limit%3D100"
	if got != want {
		t.Errorf("ProxyURL = %q, want %q", got, want)
	}
	if ProxyURL("", target) != target {
		t.Error("empty proxy should return target unchanged")
	}
}

func TestDirectoryClient_PlayersURL(t *testing.T) {
	c := NewDirectoryClient("https://vimetop.ru/api/v1/", "", time.Second, testLogger)

	tests := []struct {
		q    domain.PlayerQuery
		want string
	}{
		{domain.PlayerQuery{Page: 3, Limit: 100}, "https://vimetop.ru/api/v1/players?page=3&limit=100"},
		{domain.PlayerQuery{Page: 1, Limit: 1, Rank: "VIP"}, "https://vimetop.ru/api/v1/players?page=1&limit=1&rank=VIP"},
		{domain.PlayerQuery{Page: 1, Limit: 100, Rank: "ADMIN", Search: "al ice"}, "https://vimetop.ru/api/v1/players?page=1&limit=100&rank=ADMIN&search=al%20ice"},
	}
	for _, tt := range tests {
		if got := c.PlayersURL(tt.q); got != tt.want {
			t.Errorf("PlayersURL(%+v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestDirectoryClient_ListPlayersThroughProxy(t *testing.T) {
	var gotTarget string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := url.QueryUnescape(r.URL.RawQuery)
		if err != nil {
			t.Errorf("bad proxy query: %v", err)
		}
		gotTarget = target
		w.Write([]byte(`{"success":true,"response":{"pagination":{"page":1,"total_pages":1,"total":1},"data":[{"username":"Alice"}]}}`))
	}))
	defer srv.Close()

	c := NewDirectoryClient("https://vimetop.ru/api/v1", srv.URL+"/?", time.Second, testLogger)
	page, err := c.ListPlayers(context.Background(), domain.PlayerQuery{Page: 1, Limit: 100, Rank: "VIP"})
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if want := "https://vimetop.ru/api/v1/players?page=1&limit=100&rank=VIP"; gotTarget != want {
		t.Errorf("proxied target = %q, want %q", gotTarget, want)
	}
	if len(page.Players) != 1 || page.Players[0].Username != "Alice" {
		t.Errorf("players = %+v", page.Players)
	}
}

func TestDirectoryClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", time.Second, testLogger)
	_, err := c.ListPlayers(context.Background(), domain.PlayerQuery{Page: 1, Limit: 100})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
	if !errors.Is(err, domain.ErrUpstreamStatus) || !domain.IsUpstreamError(err) {
		t.Error("status error should match ErrUpstreamStatus")
	}
	if statusErr.Error() != "HTTP error! status: 502" {
		t.Errorf("message = %q", statusErr.Error())
	}
}

func TestDirectoryClient_RankStatsAndCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/players/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"response":{"ranks":{"VIP":42}}}`))
	})
	mux.HandleFunc("/players", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" || r.URL.Query().Get("rank") != "HOLY" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success":true,"response":{"pagination":{"page":1,"total_pages":17,"total":17},"data":[{"username":"x"}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewDirectoryClient(srv.URL, "", time.Second, testLogger)

	stats, err := c.RankStats(context.Background())
	if err != nil || stats["VIP"] != 42 {
		t.Fatalf("RankStats = %v, %v", stats, err)
	}

	n, err := c.RankCount(context.Background(), "HOLY")
	if err != nil || n != 17 {
		t.Fatalf("RankCount = %d, %v", n, err)
	}
}

func TestUserClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/name/alice", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":77,"username":"Alice","rank":"VIP","customColors":["ff0000"],"playedSeconds":60}]`))
	})
	mux.HandleFunc("/user/name/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/user/77", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":77,"username":"Alice"}]`))
	})
	mux.HandleFunc("/user/name/alice/session", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"username":"Alice"},"online":{"value":true,"message":"в лобби"}}`))
	})
	mux.HandleFunc("/user/name/ghost/session", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"online":null}`))
	})
	mux.HandleFunc("/user/name/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":1}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewUserClient(srv.URL, time.Second, testLogger)
	ctx := context.Background()

	p, err := c.UserByName(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByName: %v", err)
	}
	if p.Username != "Alice" || p.ID != 77 || p.PlayedSeconds != 60 || len(p.CustomColors) != 1 {
		t.Errorf("player = %+v", p)
	}

	if _, err := c.UserByName(ctx, "ghost"); !domain.IsNotFoundError(err) {
		t.Errorf("empty array err = %v, want ErrPlayerNotFound", err)
	}
	if _, err := c.UserByName(ctx, "broken"); !errors.Is(err, domain.ErrUnexpectedShape) {
		t.Errorf("object response err = %v, want ErrUnexpectedShape", err)
	}

	byID, err := c.UserByID(ctx, "77")
	if err != nil || byID.Username != "Alice" {
		t.Errorf("UserByID = %+v, %v", byID, err)
	}

	online, err := c.Session(ctx, "alice")
	if err != nil || online == nil || !*online {
		t.Errorf("Session(alice) = %v, %v", online, err)
	}
	unknown, err := c.Session(ctx, "ghost")
	if err != nil || unknown != nil {
		t.Errorf("Session(ghost) = %v, %v", unknown, err)
	}
}

func TestUserClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewUserClient(srv.URL, time.Second, testLogger)
	_, err := c.UserByName(context.Background(), "alice")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if domain.IsNotFoundError(err) || domain.IsUpstreamError(err) {
		t.Errorf("transport failure misclassified: %v", err)
	}
}
