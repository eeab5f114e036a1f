package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPlayerUnmarshal(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantRank   string
		wantColors []string
		wantPlayed int64
		wantGuild  bool
	}{
		{
			name:       "directory spelling",
			data:       `{"username":"a","rank":"VIP","custom_colors":["ff0000","00ff00"],"played_seconds":3600}`,
			wantRank:   "VIP",
			wantColors: []string{"ff0000", "00ff00"},
			wantPlayed: 3600,
		},
		{
			name:       "user API spelling",
			data:       `{"username":"a","rank":"HOLY","customColors":"ff0000,,00ff00","playedSeconds":60}`,
			wantRank:   "HOLY",
			wantColors: []string{"ff0000", "00ff00"},
			wantPlayed: 60,
		},
		{
			name:     "missing rank",
			data:     `{"username":"a"}`,
			wantRank: DefaultRank,
		},
		{
			name:     "null colors fall back to camel case",
			data:     `{"username":"a","custom_colors":null,"customColors":["abcdef"]}`,
			wantRank: DefaultRank, wantColors: []string{"abcdef"},
		},
		{
			name:     "empty guild dropped",
			data:     `{"username":"a","guild":{"tag":"","name":""}}`,
			wantRank: DefaultRank,
		},
		{
			name:      "guild kept",
			data:      `{"username":"a","guild":{"tag":"GG","name":"Good"}}`,
			wantRank:  DefaultRank,
			wantGuild: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Player
			if err := json.Unmarshal([]byte(tt.data), &p); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if p.Rank != tt.wantRank {
				t.Errorf("rank = %q, want %q", p.Rank, tt.wantRank)
			}
			if len(p.CustomColors) != 0 || len(tt.wantColors) != 0 {
				if !reflect.DeepEqual(p.CustomColors, tt.wantColors) {
					t.Errorf("colors = %v, want %v", p.CustomColors, tt.wantColors)
				}
			}
			if p.PlayedSeconds != tt.wantPlayed {
				t.Errorf("played = %d, want %d", p.PlayedSeconds, tt.wantPlayed)
			}
			if p.HasGuild() != tt.wantGuild {
				t.Errorf("HasGuild = %v, want %v", p.HasGuild(), tt.wantGuild)
			}
		})
	}
}

func TestPlayerPageURL(t *testing.T) {
	if got := PlayerPageURL("Foo Bar"); got != "player.html?username=Foo%20Bar" {
		t.Errorf("PlayerPageURL = %q", got)
	}
}
