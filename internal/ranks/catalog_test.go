package ranks

import (
	"reflect"
	"testing"
)

func TestInfo_UnknownFallsBackToPlayer(t *testing.T) {
	for _, code := range []string{"", "UNKNOWN", "vip", "ADMIN ", "123"} {
		info := Info(code)
		if info.Code != "PLAYER" {
			t.Errorf("Info(%q).Code = %q, want PLAYER", code, info.Code)
		}
		if info.Name != "Игрок" {
			t.Errorf("Info(%q).Name = %q, want Игрок", code, info.Name)
		}
		if len(info.Colors) != 0 {
			t.Errorf("Info(%q).Colors = %v, want empty", code, info.Colors)
		}
	}
}

func TestColors_NeverEmpty(t *testing.T) {
	for _, code := range append(AllCodes(), "", "NOPE") {
		if got := Colors(code); len(got) == 0 {
			t.Errorf("Colors(%q) is empty", code)
		}
	}
	if got := Colors("PLAYER"); !reflect.DeepEqual(got, []string{NeutralColor}) {
		t.Errorf("Colors(PLAYER) = %v, want [%s]", got, NeutralColor)
	}
	if got := Colors("HOLY"); !reflect.DeepEqual(got, []string{"fff8a9", "ffa317"}) {
		t.Errorf("Colors(HOLY) = %v", got)
	}
}

func TestColors_ReturnsCopy(t *testing.T) {
	c := Colors("VIP")
	c[0] = "000000"
	if Colors("VIP")[0] != "3dff80" {
		t.Fatal("catalog was mutated through returned slice")
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"ADMIN", 100},
		{"CHIEF", 90},
		{"VIP", 10},
		{"PLAYER", 0},
		{"UNKNOWN", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := Priority(tt.code); got != tt.want {
			t.Errorf("Priority(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestCatalogShape(t *testing.T) {
	codes := AllCodes()
	if len(codes) != 26 {
		t.Fatalf("len(AllCodes()) = %d, want 26", len(codes))
	}
	if codes[0] != "PLAYER" || codes[len(codes)-1] != "ADMIN" {
		t.Errorf("unexpected catalog order: first=%s last=%s", codes[0], codes[len(codes)-1])
	}
	for _, code := range codes {
		if !IsValid(code) {
			t.Errorf("IsValid(%q) = false", code)
		}
		if Name(code) == "" {
			t.Errorf("Name(%q) is empty", code)
		}
	}
	if IsValid("SUPERADMIN") {
		t.Error("IsValid(SUPERADMIN) = true")
	}
}

func TestSortByPriority(t *testing.T) {
	codes := []string{"VIP", "PLAYER", "ADMIN", "UNKNOWN", "MODER"}
	SortByPriority(codes)
	want := []string{"ADMIN", "MODER", "VIP", "PLAYER", "UNKNOWN"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("SortByPriority = %v, want %v", codes, want)
	}
}
