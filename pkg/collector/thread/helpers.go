// Package thread reads per-thread counters of one process from procfs.
package thread

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/srodi/threadtop/pkg/types"
)

// userHZ is the tick rate of utime/stime in /proc/<pid>/task/<tid>/stat.
const userHZ = 100

// procReadFile allows tests to stub reading /proc/PID/task/TID/stack.
var procReadFile = os.ReadFile

// Sample is one read of a thread's stat file. Alive is false when the
// thread exited between listing and reading.
type Sample struct {
	Tid    types.Tid
	Name   string
	State  string
	CPUNs  int64
	UserNs int64
	Alive  bool
}

func ticksToNs(ticks uint) int64 {
	return int64(ticks) * (1_000_000_000 / userHZ)
}

// StateName maps a kernel task state letter to the displayed state.
func StateName(letter string) string {
	switch letter {
	case "R":
		return "RUNNABLE"
	case "S":
		return "SLEEPING"
	case "D":
		return "BLOCKED"
	case "T":
		return "STOPPED"
	case "t":
		return "TRACED"
	case "Z":
		return "ZOMBIE"
	case "X", "x":
		return "TERMINATED"
	case "I":
		return "IDLE"
	}
	return "UNKNOWN"
}

// parseStack turns the kernel stack file into at most depth frames.
// Lines look like "[<0>] futex_wait_queue+0x60/0xa0".
func parseStack(data []byte, depth int) []string {
	var frames []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		if depth > 0 && len(frames) >= depth {
			break
		}
		frame := strings.TrimSpace(string(line))
		if i := strings.Index(frame, "] "); strings.HasPrefix(frame, "[<") && i > 0 {
			frame = strings.TrimSpace(frame[i+2:])
		}
		if frame == "" {
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

func threadName(comm string, tid types.Tid) string {
	if comm = strings.TrimSpace(comm); comm != "" {
		return comm
	}
	return fmt.Sprintf("thread-%d", tid)
}
