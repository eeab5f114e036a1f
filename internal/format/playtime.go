// Package format renders playtime and rank colors the way the portal shows them.
package format

import (
	"fmt"
	"strings"
)

var (
	daysForms    = [3]string{"день", "дня", "дней"}
	hoursForms   = [3]string{"час", "часа", "часов"}
	minutesForms = [3]string{"минута", "минуты", "минут"}
	secondsForms = [3]string{"секунда", "секунды", "секунд"}
)

// Ending picks the Russian plural form for n: forms[0] for 1, forms[1] for 2-4,
// forms[2] for everything else including 0 and 11-19.
func Ending(n int64, forms [3]string) string {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return forms[2]
	}
	lastDigit := n % 10
	lastTwo := n % 100

	if lastTwo >= 11 && lastTwo <= 19 {
		return forms[2]
	}
	if lastDigit == 1 {
		return forms[0]
	}
	if lastDigit >= 2 && lastDigit <= 4 {
		return forms[1]
	}
	return forms[2]
}

// Playtime formats seconds of playtime. The short form shows only the largest
// non-zero unit; the full form shows every unit from the largest non-zero one
// down to seconds.
func Playtime(seconds int64, full bool) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / (3600 * 24)
	hours := (seconds % (3600 * 24)) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if !full {
		switch {
		case days > 0:
			return unit(days, daysForms)
		case hours > 0:
			return unit(hours, hoursForms)
		case minutes > 0:
			return unit(minutes, minutesForms)
		default:
			return unit(secs, secondsForms)
		}
	}

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, unit(days, daysForms))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, unit(hours, hoursForms))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, unit(minutes, minutesForms))
	}
	parts = append(parts, unit(secs, secondsForms))
	return strings.Join(parts, " ")
}

// PlaytimeShort is the compact directory column format: "0ч", "5ч", "3д 4ч".
func PlaytimeShort(seconds int64) string {
	if seconds <= 0 {
		return "0ч"
	}
	hours := seconds / 3600
	days := hours / 24
	if days > 0 {
		return fmt.Sprintf("%dд %dч", days, hours%24)
	}
	return fmt.Sprintf("%dч", hours)
}

func unit(n int64, forms [3]string) string {
	return fmt.Sprintf("%d %s", n, Ending(n, forms))
}
