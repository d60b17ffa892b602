// Package delta turns cumulative per-thread counters into per-interval
// deltas by correlating consecutive snapshots.
package delta

import (
	"errors"
	"fmt"

	"github.com/srodi/threadtop/pkg/types"
)

// ErrMisaligned is returned when a counter slice does not match the tid slice.
var ErrMisaligned = errors.New("counter array not aligned with thread ids")

// ThreadDelta carries one thread's cumulative counters and, when the Has*
// flag is set, its delta over the last interval.
type ThreadDelta struct {
	Tid             types.Tid
	CPUTotalNs      int64
	SysCPUTotalNs   int64
	AllocBytesTotal int64

	DCPUNs      int64
	DSysCPUNs   int64
	DAllocBytes int64
	HasDCPU     bool
	HasDSysCPU  bool
	HasDAlloc   bool
}

// Frame is the result of one Advance.
type Frame struct {
	// Primer marks the seeding frame: no deltas, nothing to render.
	Primer bool

	DeltaUpMs          int64
	CoreCount          int
	MinDeltaCPUNs      int64
	MinDeltaAllocBytes int64

	// Order keeps the snapshot order of tids; Threads is keyed by tid.
	Order   []types.Tid
	Threads map[types.Tid]ThreadDelta

	SumDCPUNs          int64
	SumDSysCPUNs       int64
	SumDAllocBytes     int64
	SumAllocBytesTotal int64
}

// Thread returns the entry for tid.
func (f *Frame) Thread(tid types.Tid) (ThreadDelta, bool) {
	d, ok := f.Threads[tid]
	return d, ok
}

// MinDeltaCPUNs is the CPU noise floor: 0.05% of one core over the interval.
func MinDeltaCPUNs(deltaUpMs int64) int64 {
	return clampUp(deltaUpMs) * 1_000_000 / 2000
}

// MinDeltaAllocBytes is the allocation noise floor: 1 KiB per second.
func MinDeltaAllocBytes(deltaUpMs int64) int64 {
	return clampUp(deltaUpMs) * 1024 / 1000
}

func clampUp(deltaUpMs int64) int64 {
	if deltaUpMs < 1 {
		return 1
	}
	return deltaUpMs
}

// Engine holds the previous tick's counters. It is not safe for concurrent
// use; the sampler goroutine owns it.
type Engine struct {
	primed  bool
	lastCPU map[types.Tid]int64
	lastSys map[types.Tid]int64
	lastMem map[types.Tid]int64
}

// NewEngine returns an empty engine; its first Advance yields a primer.
func NewEngine() *Engine {
	return &Engine{}
}

// Primed reports whether a prior snapshot is held.
func (e *Engine) Primed() bool {
	return e.primed
}

// Reset drops the prior snapshot so the next Advance behaves as the first.
func (e *Engine) Reset() {
	e.primed = false
	e.lastCPU = nil
	e.lastSys = nil
	e.lastMem = nil
}

// Advance computes the deltas between the held snapshot and s, then
// replaces the held snapshot with s. On a misaligned snapshot the engine
// state is left untouched.
func (e *Engine) Advance(s types.ThreadSnapshot) (*Frame, error) {
	if err := checkAligned(s); err != nil {
		return nil, err
	}

	n := len(s.Tids)
	deltaUpMs := clampUp(s.DeltaUpMs)
	frame := &Frame{
		Primer:             !e.primed,
		DeltaUpMs:          deltaUpMs,
		CoreCount:          s.CoreCount,
		MinDeltaCPUNs:      MinDeltaCPUNs(deltaUpMs),
		MinDeltaAllocBytes: MinDeltaAllocBytes(deltaUpMs),
		Order:              make([]types.Tid, 0, n),
		Threads:            make(map[types.Tid]ThreadDelta, n),
	}

	cpu := make(map[types.Tid]int64, n)
	sys := make(map[types.Tid]int64, n)
	mem := make(map[types.Tid]int64, n)

	for i, tid := range s.Tids {
		if _, dup := frame.Threads[tid]; dup {
			continue
		}
		d := ThreadDelta{Tid: tid}

		if s.CPUTotalNs != nil {
			d.CPUTotalNs = s.CPUTotalNs[i]
			cpu[tid] = d.CPUTotalNs
			// total and user are read non-atomically
			d.SysCPUTotalNs = max(0, s.CPUTotalNs[i]-s.UserCPUNs[i])
			sys[tid] = d.SysCPUTotalNs
		}
		if s.AllocBytes != nil {
			d.AllocBytesTotal = s.AllocBytes[i]
			mem[tid] = d.AllocBytesTotal
			frame.SumAllocBytesTotal += d.AllocBytesTotal
		}

		if e.primed {
			if prev, ok := e.lastCPU[tid]; ok && s.CPUTotalNs != nil {
				if v := d.CPUTotalNs - prev; v >= 0 && v >= frame.MinDeltaCPUNs {
					d.DCPUNs, d.HasDCPU = v, true
					frame.SumDCPUNs += v
				}
			}
			if prev, ok := e.lastSys[tid]; ok && s.CPUTotalNs != nil {
				if v := d.SysCPUTotalNs - prev; v >= 0 && v >= frame.MinDeltaCPUNs {
					d.DSysCPUNs, d.HasDSysCPU = v, true
					frame.SumDSysCPUNs += v
				}
			}
			if prev, ok := e.lastMem[tid]; ok && s.AllocBytes != nil {
				if v := d.AllocBytesTotal - prev; v >= 0 && v >= frame.MinDeltaAllocBytes {
					d.DAllocBytes, d.HasDAlloc = v, true
					frame.SumDAllocBytes += v
				}
			}
		}

		frame.Order = append(frame.Order, tid)
		frame.Threads[tid] = d
	}

	e.lastCPU, e.lastSys, e.lastMem = cpu, sys, mem
	e.primed = true
	return frame, nil
}

func checkAligned(s types.ThreadSnapshot) error {
	n := len(s.Tids)
	if s.CPUTotalNs != nil && len(s.CPUTotalNs) != n {
		return fmt.Errorf("cpu time: %w (%d values for %d tids)", ErrMisaligned, len(s.CPUTotalNs), n)
	}
	if s.CPUTotalNs != nil && len(s.UserCPUNs) != n {
		return fmt.Errorf("user time: %w (%d values for %d tids)", ErrMisaligned, len(s.UserCPUNs), n)
	}
	if s.AllocBytes != nil && len(s.AllocBytes) != n {
		return fmt.Errorf("allocated bytes: %w (%d values for %d tids)", ErrMisaligned, len(s.AllocBytes), n)
	}
	return nil
}
