package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vimestats/internal/directory"
	"github.com/vimestats/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockSource is a hand-written directory.Source
type MockSource struct {
	ListFunc func(ctx context.Context, q domain.PlayerQuery) (*domain.PlayerPage, error)
}

func (m *MockSource) ListPlayers(ctx context.Context, q domain.PlayerQuery) (*domain.PlayerPage, error) {
	return m.ListFunc(ctx, q)
}

func (m *MockSource) RankStats(context.Context) (domain.RankStats, error) {
	return domain.RankStats{"VIP": 3}, nil
}

func (m *MockSource) RankCount(context.Context, string) (int64, error) {
	return 0, errors.New("unused")
}

type factory struct{ source directory.Source }

func (f factory) NewDirectory(r directory.Renderer) *directory.Controller {
	return directory.NewController(f.source, r, directory.Options{}, testLogger)
}

func newTestClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	source := &MockSource{
		ListFunc: func(_ context.Context, q domain.PlayerQuery) (*domain.PlayerPage, error) {
			return &domain.PlayerPage{
				Players:    []domain.Player{{Username: "Steve", Rank: "VIP", Level: 3}},
				Pagination: &domain.Pagination{Page: q.Page, TotalPages: 2, HasNext: q.Page < 2, HasPrev: q.Page > 1, Total: 101},
			}, nil
		},
	}
	return NewClient(hub, nil, factory{source: source}, testLogger)
}

// drain decodes every queued message
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("decoding message: %v", err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestClient_LoadRendersMessages(t *testing.T) {
	c := newTestClient(t, NewHub(testLogger))
	c.handleMessage(context.Background(), &ClientMessage{Type: CommandLoad})

	got := types(drain(t, c))
	want := []string{MessageTypeLoading, MessageTypeRows, MessageTypePagination}
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("messages = %v, want %v", got, want)
		}
	}
}

func TestClient_Commands(t *testing.T) {
	tests := []struct {
		name     string
		msg      ClientMessage
		wantLast string
		wantText string
	}{
		{name: "ping", msg: ClientMessage{Type: CommandPing}, wantLast: MessageTypePong},
		{name: "state", msg: ClientMessage{Type: CommandState}, wantLast: MessageTypeState},
		{name: "page out of range", msg: ClientMessage{Type: CommandPage, Page: 9}, wantLast: MessageTypeError, wantText: domain.ErrPageOutOfRange.Error()},
		{name: "unknown rank", msg: ClientMessage{Type: CommandRank, Rank: "KING"}, wantLast: MessageTypeError, wantText: domain.ErrInvalidInput.Error()},
		{name: "next page", msg: ClientMessage{Type: CommandNext}, wantLast: MessageTypePagination},
		{name: "rank", msg: ClientMessage{Type: CommandRank, Rank: "VIP"}, wantLast: MessageTypePagination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, NewHub(testLogger))
			ctx := context.Background()
			c.handleMessage(ctx, &ClientMessage{Type: CommandLoad})
			drain(t, c)

			c.handleMessage(ctx, &tt.msg)
			msgs := drain(t, c)
			if len(msgs) == 0 {
				t.Fatal("no messages")
			}
			last := msgs[len(msgs)-1]
			if last.Type != tt.wantLast {
				t.Fatalf("last message = %s, want %s (all %v)", last.Type, tt.wantLast, types(msgs))
			}
			if tt.wantText != "" {
				data, _ := last.Data.(map[string]interface{})
				if data["message"] != tt.wantText {
					t.Errorf("message = %v, want %q", data["message"], tt.wantText)
				}
			}
		})
	}
}

func TestClient_StateReportsSnapshot(t *testing.T) {
	c := newTestClient(t, NewHub(testLogger))
	ctx := context.Background()
	c.handleMessage(ctx, &ClientMessage{Type: CommandLoad})
	c.handleMessage(ctx, &ClientMessage{Type: CommandNext})
	drain(t, c)

	c.handleMessage(ctx, &ClientMessage{Type: CommandState})
	msgs := drain(t, c)
	if len(msgs) != 1 || msgs[0].Type != MessageTypeState {
		t.Fatalf("messages = %v", types(msgs))
	}
	raw, _ := json.Marshal(msgs[0].Data)
	var snap directory.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.State != "loaded" || snap.Loading || snap.Pagination.Page != 2 || len(snap.Rows) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClient_EmptyRows(t *testing.T) {
	c := newTestClient(t, NewHub(testLogger))
	c.RenderRows(nil)

	msgs := drain(t, c)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", types(msgs))
	}
	data := msgs[0].Data.(map[string]interface{})
	if data["empty"] != directory.EmptyMessage {
		t.Errorf("empty = %v", data["empty"])
	}
	if rows, ok := data["rows"].([]interface{}); !ok || len(rows) != 0 {
		t.Errorf("rows = %v, want []", data["rows"])
	}
}

func TestHub_BroadcastRankStats(t *testing.T) {
	hub := NewHub(testLogger)
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(t, hub)
	hub.Register(c)
	waitFor(t, func() bool { return hub.GetTotalConnections() == 1 })

	hub.BroadcastRankStats(domain.RankStats{"VIP": 12})

	select {
	case data := <-c.send:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		stats := m.Data.(map[string]interface{})
		if m.Type != MessageTypeRankStats || stats["VIP"] != float64(12) {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}

	hub.Unregister(c)
	waitFor(t, func() bool { return hub.GetTotalConnections() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send queue still open after unregister")
	}
	// rendering after close must not panic
	c.ShowLoading()
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no list", allowed: nil, origin: "https://evil.example", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://a.example", want: true},
		{name: "listed", allowed: []string{"https://vimestats.ru"}, origin: "https://vimestats.ru", want: true},
		{name: "not listed", allowed: []string{"https://vimestats.ru"}, origin: "https://evil.example", want: false},
		{name: "no origin header", allowed: []string{"https://vimestats.ru"}, origin: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Upgrader(tt.allowed)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := u.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
