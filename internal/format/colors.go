package format

import "strings"

// Background renders a hex color list as a CSS background value: a solid
// color for one entry, a left-to-right gradient for several. An empty list
// yields an empty string.
func Background(colors []string) string {
	switch len(colors) {
	case 0:
		return ""
	case 1:
		return "#" + colors[0]
	}
	hexes := make([]string, len(colors))
	for i, c := range colors {
		hexes[i] = "#" + c
	}
	return "linear-gradient(to right, " + strings.Join(hexes, ", ") + ")"
}

// NameStyle is how a player's nickname is painted
type NameStyle struct {
	Color    string `json:"color,omitempty"`
	Gradient string `json:"gradient,omitempty"`
}

// NameStyleFor builds the nickname style from custom colors: one color paints
// the text, several paint a clipped gradient, none leaves the default.
func NameStyleFor(colors []string) NameStyle {
	switch len(colors) {
	case 0:
		return NameStyle{}
	case 1:
		return NameStyle{Color: "#" + colors[0]}
	}
	return NameStyle{Gradient: Background(colors)}
}

// SplitColors splits a comma-joined color string, dropping blank entries
func SplitColors(raw string) []string {
	return CompactColors(strings.Split(raw, ","))
}

// CompactColors trims every color and drops the blank ones
func CompactColors(in []string) []string {
	var out []string
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
