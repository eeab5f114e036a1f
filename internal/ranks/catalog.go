// Package ranks holds the static VimeWorld rank table: display names,
// gradient colors and sort priorities.
package ranks

import "sort"

// NeutralColor is substituted when a rank has no colors of its own
const NeutralColor = "cccccc"

// Descriptor describes a single rank
type Descriptor struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Colors   []string `json:"colors"`
	Priority int      `json:"priority"`
}

var catalog = []Descriptor{
	{Code: "PLAYER", Name: "Игрок", Colors: []string{}, Priority: 0},
	{Code: "VIP", Name: "VIP", Colors: []string{"3dff80"}, Priority: 10},
	{Code: "PREMIUM", Name: "Premium", Colors: []string{"3decff"}, Priority: 15},
	{Code: "HOLY", Name: "Holy", Colors: []string{"fff8a9", "ffa317"}, Priority: 20},
	{Code: "IMMORTAL", Name: "Immortal", Colors: []string{"ff70d1", "ff5d6d"}, Priority: 22},
	{Code: "DIVINE", Name: "Divine", Colors: []string{"b451ff", "84b5ff"}, Priority: 24},
	{Code: "THANE", Name: "Thane", Colors: []string{"30ff87", "1cffe4", "3594ff"}, Priority: 26},
	{Code: "ELITE", Name: "Elite", Colors: []string{"ffa51e", "ff5619", "ff314a"}, Priority: 28},
	{Code: "ETERNAL", Name: "Eternal", Colors: []string{"2688ed", "8b00d7", "ff4161"}, Priority: 30},
	{Code: "CELESTIAL", Name: "Celestial", Colors: []string{"e0f3ff", "bfdeff", "96c6ff", "6895d6"}, Priority: 31},
	{Code: "ABSOLUTE", Name: "Absolute", Colors: []string{"f200ff", "972a6e", "632f59", "dd57bc"}, Priority: 32},
	{Code: "IMPERIAL", Name: "Imperial", Colors: []string{"fdbd05", "ffa630", "fffabd", "fdbd05"}, Priority: 33},
	{Code: "ULTIMATE", Name: "Ultimate", Colors: []string{"4f4f4f", "737272", "fbf7ff", "3a3a3a"}, Priority: 34},
	{Code: "VIME", Name: "Vime", Colors: []string{"2599d4", "1d7cab"}, Priority: 35},
	{Code: "JRBUILDER", Name: "Мл. Билдер", Colors: []string{"bdecb6", "67ff54"}, Priority: 42},
	{Code: "BUILDER", Name: "Билдер", Colors: []string{"67ff54", "57c22d"}, Priority: 43},
	{Code: "SRBUILDER", Name: "Ст. Билдер", Colors: []string{"57c22d", "55961a"}, Priority: 44},
	{Code: "MAPLEAD", Name: "Гл. Билдер", Colors: []string{"55961a", "3f6e13"}, Priority: 45},
	{Code: "YOUTUBE", Name: "Media", Colors: []string{"bf2dff", "f33fd7"}, Priority: 40},
	{Code: "DEV", Name: "Разработчик", Colors: []string{"d61753"}, Priority: 50},
	{Code: "ORGANIZER", Name: "Организатор", Colors: []string{"0d83ae", "00c0eb"}, Priority: 55},
	{Code: "HELPER", Name: "Хелпер", Colors: []string{"76a6ff"}, Priority: 60},
	{Code: "MODER", Name: "Модератор", Colors: []string{"4e62eb"}, Priority: 70},
	{Code: "WARDEN", Name: "Пр. Модератор", Colors: []string{"3c36de"}, Priority: 80},
	{Code: "CHIEF", Name: "Админ", Colors: []string{"ff5e43", "db2100"}, Priority: 90},
	{Code: "ADMIN", Name: "Гл. Админ", Colors: []string{"ff2030", "d40048", "c1006b"}, Priority: 100},
}

var byCode = func() map[string]int {
	m := make(map[string]int, len(catalog))
	for i, d := range catalog {
		m[d.Code] = i
	}
	return m
}()

// Info returns the descriptor for code. Unknown or empty codes resolve to PLAYER.
func Info(code string) Descriptor {
	idx, ok := byCode[code]
	if !ok {
		idx = byCode["PLAYER"]
	}
	return clone(catalog[idx])
}

// Colors returns the rank colors, never empty
func Colors(code string) []string {
	colors := Info(code).Colors
	if len(colors) == 0 {
		return []string{NeutralColor}
	}
	return colors
}

// Name returns the localized display name of the rank
func Name(code string) string {
	return Info(code).Name
}

// Priority returns the sort priority of the rank; unknown codes are 0
func Priority(code string) int {
	idx, ok := byCode[code]
	if !ok {
		return 0
	}
	return catalog[idx].Priority
}

// IsValid reports whether code is a known rank
func IsValid(code string) bool {
	_, ok := byCode[code]
	return ok
}

// AllCodes returns every rank code in catalog order
func AllCodes() []string {
	codes := make([]string, len(catalog))
	for i, d := range catalog {
		codes[i] = d.Code
	}
	return codes
}

// All returns a copy of the whole catalog in catalog order
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		out[i] = clone(d)
	}
	return out
}

// SortByPriority orders codes from the most to the least important rank.
// Codes with equal priority keep their relative order.
func SortByPriority(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		return Priority(codes[i]) > Priority(codes[j])
	})
}

func clone(d Descriptor) Descriptor {
	colors := make([]string, len(d.Colors))
	copy(colors, d.Colors)
	d.Colors = colors
	return d
}
