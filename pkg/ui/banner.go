package ui

import (
	"fmt"
	"strings"

	"github.com/srodi/threadtop/pkg/types"
)

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	outlineGray = "\033[38;5;244m"
	beeYellow   = "\033[38;5;226m"
	honeyOrange = "\033[38;5;214m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	fuchsia     = "\033[38;5;177m"
	threadFlame = "\033[38;5;208m"
)

var gradient = []string{threadFlame, honeyOrange, beeYellow, mint, seafoam, cobalt, deepIndigo, fuchsia}

// Banner renders the colored threadtop wordmark.
func Banner() string {
	var b strings.Builder
	b.WriteString(bold)
	for i, r := range "threadtop" {
		b.WriteString(gradient[i%len(gradient)])
		b.WriteRune(r)
	}
	b.WriteString(reset)
	b.WriteString(outlineGray + "  •  per-thread cpu & allocation lens" + reset + "\n")
	return b.String()
}

// Welcome renders the block shown while the delta engine is being primed.
// Capability notes and vm arguments are only printed the first time.
type Welcome struct {
	shown bool
}

// Render returns the welcome text for summary.
func (w *Welcome) Render(summary types.ProcessSummary) string {
	var b strings.Builder
	if !w.shown {
		b.WriteString("\n " + Banner())
		caps := summary.Caps
		if !caps.Linux {
			b.WriteString("\n OS isn't linux, Process's MEMORY, THREAD, DISK data will be skipped.\n")
		}
		if !caps.IOData {
			fmt.Fprintf(&b, "\n /proc/%d/io is not readable, Process's DISK data will be skipped.\n", summary.PID)
		}
		if !caps.PerfData {
			b.WriteString("\n Runtime perf counters are not available, SAFE-POINT data will be skipped.\n")
		}
		if !caps.CPUTime {
			b.WriteString("\n Thread CPU telemetry is not available, cpu modes are disabled.\n")
		}
		if !caps.Allocation {
			b.WriteString("\n Thread allocation telemetry is not available, memory modes are disabled.\n")
		}
		fmt.Fprintf(&b, "\n VMARGS: %s\n\n", summary.VMArgs)
		w.shown = true
	}
	b.WriteString("\n Collecting data, please wait ......\n\n")
	return b.String()
}
