// Package control holds the interactive control surface shared between the
// input goroutine and the sampler.
package control

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/srodi/threadtop/pkg/types"
)

// State is written by the input goroutine and latched by the sampler at the
// top of every tick. Every field is published independently.
type State struct {
	mode         atomic.Int32
	threadLimit  atomic.Int32
	interval     atomic.Int64
	filter       atomic.Pointer[string]
	commandHints atomic.Bool
	collecting   atomic.Bool
	shouldExit   atomic.Bool
	paused       atomic.Bool
	resetRequest atomic.Bool
}

// Settings is a consistent-enough copy of State taken once per tick.
type Settings struct {
	Mode         types.Mode
	ThreadLimit  int
	Interval     time.Duration
	NameFilter   string
	CommandHints bool
}

// NewState seeds the control surface.
func NewState(mode types.Mode, limit int, interval time.Duration) *State {
	s := &State{}
	s.SetMode(mode)
	s.SetThreadLimit(limit)
	s.SetInterval(interval)
	s.collecting.Store(true)
	return s
}

// Latch copies the current values.
func (s *State) Latch() Settings {
	return Settings{
		Mode:         s.Mode(),
		ThreadLimit:  s.ThreadLimit(),
		Interval:     s.Interval(),
		NameFilter:   s.NameFilter(),
		CommandHints: s.commandHints.Load(),
	}
}

func (s *State) Mode() types.Mode { return types.Mode(s.mode.Load()) }

// SetMode panics on an invalid mode.
func (s *State) SetMode(m types.Mode) {
	if !m.Valid() {
		panic(fmt.Sprintf("unknown mode %d", int(m)))
	}
	s.mode.Store(int32(m))
}

func (s *State) ThreadLimit() int { return int(s.threadLimit.Load()) }

// SetThreadLimit stores n, raising values below 1 to 1 and capping it at
// math.MaxInt32.
func (s *State) SetThreadLimit(n int) {
	if n < 1 {
		n = 1
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	s.threadLimit.Store(int32(n))
}

func (s *State) Interval() time.Duration { return time.Duration(s.interval.Load()) }

// SetInterval stores d, raising values below one second to one second.
func (s *State) SetInterval(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	s.interval.Store(int64(d))
}

// NameFilter returns the lower-cased filter text, "" when unset.
func (s *State) NameFilter() string {
	if p := s.filter.Load(); p != nil {
		return *p
	}
	return ""
}

// SetNameFilter replaces the filter; blank text clears it.
func (s *State) SetNameFilter(f string) {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "" {
		s.filter.Store(nil)
		return
	}
	s.filter.Store(&f)
}

func (s *State) CommandHints() bool       { return s.commandHints.Load() }
func (s *State) SetCommandHints(on bool)  { s.commandHints.Store(on) }
func (s *State) CollectingData() bool     { return s.collecting.Load() }
func (s *State) SetCollectingData(b bool) { s.collecting.Store(b) }
func (s *State) ShouldExit() bool         { return s.shouldExit.Load() }

// RequestExit asks the sampler to stop at the next tick boundary.
func (s *State) RequestExit() { s.shouldExit.Store(true) }

func (s *State) Paused() bool { return s.paused.Load() }

// TogglePause flips the pause flag and returns the new value. Resuming
// requests a history reset since deltas across a pause are meaningless.
func (s *State) TogglePause() bool {
	for {
		old := s.paused.Load()
		if s.paused.CompareAndSwap(old, !old) {
			if old {
				s.RequestReset()
			}
			return !old
		}
	}
}

// RequestReset asks the sampler to drop its delta history before the next tick.
func (s *State) RequestReset() { s.resetRequest.Store(true) }

// TakeReset consumes a pending reset request.
func (s *State) TakeReset() bool { return s.resetRequest.Swap(false) }
