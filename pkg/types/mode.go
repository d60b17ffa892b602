package types

import (
	"fmt"
	"strings"
)

// Mode selects the ranking key of the thread table.
type Mode int

const (
	ModeCPU Mode = iota + 1
	ModeSysCPU
	ModeTotalCPU
	ModeTotalSysCPU
	ModeMemory
	ModeTotalMemory
)

var modeNames = map[Mode]string{
	ModeCPU:         "cpu",
	ModeSysCPU:      "syscpu",
	ModeTotalCPU:    "totalcpu",
	ModeTotalSysCPU: "totalsyscpu",
	ModeMemory:      "memory",
	ModeTotalMemory: "totalmemory",
}

// Modes lists every mode in menu order.
func Modes() []Mode {
	return []Mode{ModeCPU, ModeSysCPU, ModeTotalCPU, ModeTotalSysCPU, ModeMemory, ModeTotalMemory}
}

// ParseMode accepts a menu digit ("1".."6") or a mode name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '1' && s[0] <= '6' {
		return Mode(s[0] - '0'), nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Valid reports whether m is one of the six defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func (m Mode) String() string {
	name, ok := modeNames[m]
	if !ok {
		panic(fmt.Sprintf("unknown mode %d", int(m)))
	}
	return name
}

// IsCPUFamily reports whether the mode ranks CPU counters, as opposed to
// allocation counters.
func (m Mode) IsCPUFamily() bool {
	switch m {
	case ModeCPU, ModeSysCPU, ModeTotalCPU, ModeTotalSysCPU:
		return true
	case ModeMemory, ModeTotalMemory:
		return false
	}
	panic(fmt.Sprintf("unknown mode %d", int(m)))
}
