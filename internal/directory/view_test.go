package directory

import (
	"reflect"
	"testing"

	"github.com/vimestats/internal/domain"
	"github.com/vimestats/internal/format"
	"github.com/vimestats/internal/ranks"
)

func usernames(players []domain.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Username
	}
	return out
}

func TestApplyFilters(t *testing.T) {
	players := []domain.Player{
		{Username: "Alice", Level: 10},
		{Username: "bob", Level: 50},
		{Username: "ALICEX", Level: 30},
	}

	got := ApplyFilters(players, "alice")
	if want := []string{"ALICEX", "Alice"}; !reflect.DeepEqual(usernames(got), want) {
		t.Errorf("ApplyFilters = %v, want %v", usernames(got), want)
	}

	all := ApplyFilters(players, "")
	if want := []string{"bob", "ALICEX", "Alice"}; !reflect.DeepEqual(usernames(all), want) {
		t.Errorf("ApplyFilters(empty) = %v, want %v", usernames(all), want)
	}

	if players[0].Username != "Alice" {
		t.Error("input slice was reordered")
	}
}

func TestApplyFilters_TiesKeepAPIOrder(t *testing.T) {
	players := []domain.Player{
		{Username: "c", Level: 5},
		{Username: "a", Level: 5},
		{Username: "b", Level: 7},
		{Username: "d", Level: 5},
	}
	got := ApplyFilters(players, "")
	if want := []string{"b", "c", "a", "d"}; !reflect.DeepEqual(usernames(got), want) {
		t.Errorf("ApplyFilters = %v, want %v", usernames(got), want)
	}
}

func TestBuildRows(t *testing.T) {
	players := []domain.Player{
		{Username: "Alice", Rank: "PLAYER", Level: 3, PlayedSeconds: 3 * 86400},
		{
			Username:      "Boss",
			Rank:          "ADMIN",
			Level:         99,
			PlayedSeconds: 7200,
			IsPrime:       true,
			CustomColors:  []string{"ff0000", "00ff00"},
			Guild:         &domain.Guild{Tag: "GG", Name: "Good Guild", Color: "aaaaaa"},
		},
	}

	rows := BuildRows(players, 3, 100, "https://skin.example.com/")
	if rows[0].Number != 201 || rows[1].Number != 202 {
		t.Errorf("numbers = %d, %d; want 201, 202", rows[0].Number, rows[1].Number)
	}

	alice := rows[0]
	if alice.RankName != "" || alice.RankBadge != "" {
		t.Errorf("default rank should have no badge: %+v", alice)
	}
	if alice.Played != "3д 0ч" {
		t.Errorf("played = %q", alice.Played)
	}
	if alice.HeadURL != "https://skin.example.com/helm/3d/Alice.png" {
		t.Errorf("head = %q", alice.HeadURL)
	}
	if alice.ProfileURL != "player.html?username=Alice" {
		t.Errorf("profile = %q", alice.ProfileURL)
	}

	boss := rows[1]
	if boss.RankName != ranks.Name("ADMIN") || boss.RankBadge != format.Background(ranks.Colors("ADMIN")) {
		t.Errorf("badge = %q %q", boss.RankName, boss.RankBadge)
	}
	if boss.Prime != "Prime" || boss.Guild == nil || boss.Guild.Tag != "GG" {
		t.Errorf("boss = %+v", boss)
	}
	if boss.NameStyle.Gradient != "linear-gradient(to right, #ff0000, #00ff00)" {
		t.Errorf("name style = %+v", boss.NameStyle)
	}
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 10, []int{1, 2, 3, 4, 5}},
		{2, 10, []int{1, 2, 3, 4, 5}},
		{5, 10, []int{3, 4, 5, 6, 7}},
		{9, 10, []int{6, 7, 8, 9, 10}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{2, 3, []int{1, 2, 3}},
		{1, 1, []int{1}},
		{1, 0, []int{}},
	}
	for _, tt := range tests {
		if got := PageWindow(tt.current, tt.total, 5); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PageWindow(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestBuildPaginationView(t *testing.T) {
	first := BuildPaginationView(domain.Pagination{Page: 1, TotalPages: 4, HasNext: true, Total: 350}, 5)
	if !first.FirstDisabled || first.LastDisabled || !first.PrevDisabled || first.NextDisabled {
		t.Errorf("first page controls = %+v", first)
	}
	if first.Info != "Страница 1 из 4 (всего игроков: 350)" {
		t.Errorf("info = %q", first.Info)
	}

	last := BuildPaginationView(domain.Pagination{Page: 4, TotalPages: 4, HasPrev: true, Total: 350}, 5)
	if last.FirstDisabled || !last.LastDisabled || last.PrevDisabled || !last.NextDisabled {
		t.Errorf("last page controls = %+v", last)
	}

	big := BuildPaginationView(domain.Pagination{Page: 2, TotalPages: 1500, Total: 149_900}, 5)
	if big.Info != "Страница 2 из 1 500 (всего игроков: 149 900)" {
		t.Errorf("info = %q", big.Info)
	}
}

func TestRankAccent(t *testing.T) {
	if got := RankAccent(""); got != "white" {
		t.Errorf("RankAccent(all) = %q", got)
	}
	if got, want := RankAccent("VIP"), format.Background(ranks.Colors("VIP")); got != want {
		t.Errorf("RankAccent(VIP) = %q, want %q", got, want)
	}
	if got := RankAccent("PLAYER"); got != "#"+ranks.NeutralColor {
		t.Errorf("RankAccent(PLAYER) = %q", got)
	}
}

func TestRender(t *testing.T) {
	page := &domain.PlayerPage{
		Players:    []domain.Player{{Username: "a", Level: 1}, {Username: "b", Level: 2}},
		Pagination: &domain.Pagination{Page: 2, TotalPages: 2, HasPrev: true, Total: 102},
	}
	v := Render(page, domain.Pagination{Page: 1}, "", Options{})
	if len(v.Rows) != 2 || v.Rows[0].Username != "b" || v.Rows[0].Number != 101 {
		t.Errorf("rows = %+v", v.Rows)
	}
	if v.Empty != "" {
		t.Errorf("empty = %q", v.Empty)
	}

	empty := Render(&domain.PlayerPage{}, domain.Pagination{Page: 1}, "", Options{})
	if empty.Empty != EmptyMessage || len(empty.Rows) != 0 {
		t.Errorf("empty view = %+v", empty)
	}
}
