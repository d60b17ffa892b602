// Package format holds the pure text helpers used to render frames: sizes,
// durations, ANSI coloring and name shortening.
package format

import (
	"fmt"
	"strings"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Yellow = "\033[33m"
)

// Threshold colors a value yellow at or above Yellow and red at or above
// Red. A zero threshold never colors.
type Threshold struct {
	Yellow float64 `yaml:"yellow"`
	Red    float64 `yaml:"red"`
}

// ColorAnsi returns the escape pair to wrap around value.
func ColorAnsi(value float64, t Threshold) (string, string) {
	switch {
	case t.Red > 0 && value >= t.Red:
		return Red, Reset
	case t.Yellow > 0 && value >= t.Yellow:
		return Yellow, Reset
	}
	return "", ""
}

// ToColor formats an integer wrapped in the color picked by t.
func ToColor(value int64, t Threshold) string {
	start, end := ColorAnsi(float64(value), t)
	return fmt.Sprintf("%s%d%s", start, value, end)
}

// RedLine wraps msg in red.
func RedLine(msg string) string {
	return Red + msg + Reset
}

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
	tib = 1024 * gib
)

// SizeUnit renders bytes with a single-letter binary unit, e.g. 512, 1.5k, 20m.
func SizeUnit(bytes int64) string {
	if bytes < 0 {
		return "-" + SizeUnit(-bytes)
	}
	switch {
	case bytes < kib:
		return fmt.Sprintf("%d", bytes)
	case bytes < mib:
		return trimUnit(float64(bytes)/kib, "k")
	case bytes < gib:
		return trimUnit(float64(bytes)/mib, "m")
	case bytes < tib:
		return trimUnit(float64(bytes)/gib, "g")
	}
	return trimUnit(float64(bytes)/tib, "t")
}

func trimUnit(v float64, unit string) string {
	if v >= 100 {
		return fmt.Sprintf("%.0f%s", v, unit)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}

// FixLengthSizeUnit is SizeUnit right-aligned to five columns.
func FixLengthSizeUnit(bytes int64) string {
	return fmt.Sprintf("%5s", SizeUnit(bytes))
}

// TimeUnit renders a millisecond duration as a compact uptime string.
func TimeUnit(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	days, secs := secs/86400, secs%86400
	hours, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%02dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// ShortName fits name into width characters, keeping the last tail
// characters and eliding the middle with "..".
func ShortName(name string, width, tail int) string {
	runes := []rune(name)
	if width <= 0 || len(runes) <= width {
		return name
	}
	if tail > width-3 {
		tail = width - 3
	}
	if tail < 0 {
		tail = 0
	}
	head := width - tail - 2
	return string(runes[:head]) + ".." + string(runes[len(runes)-tail:])
}

// LeftStr truncates s to at most n characters.
func LeftStr(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
