package report

import (
	"github.com/srodi/threadtop/pkg/delta"
	"github.com/srodi/threadtop/pkg/format"
	"github.com/srodi/threadtop/pkg/types"
)

// Name tails kept when a thread name is shortened to the column width.
const (
	cpuNameTail    = 20
	memoryNameTail = 12
)

// CPURow is one rendered line of the CPU table.
type CPURow struct {
	Tid             types.Tid
	Name            string
	State           string
	CPUPercent      float64
	SysCPUPercent   float64
	TotalPercent    float64
	TotalSysPercent float64
}

// MemoryRow is one rendered line of the allocation table.
type MemoryRow struct {
	Tid             types.Tid
	Name            string
	State           string
	RateBytesPerSec int64
	Share           float64
	TotalBytes      int64
	TotalShare      float64
}

// CPUTotals summarises all threads whose cpu delta passed the noise floor.
type CPUTotals struct {
	CPUPercent  float64
	UserPercent float64
	SysPercent  float64
	Active      int
}

// MemoryTotals summarises all threads whose allocation delta passed the floor.
type MemoryTotals struct {
	RateBytesPerSec int64
	Active          int
}

// Load is the share of one core used by deltaNs over deltaUpMs, in percent.
func Load(deltaNs, deltaUpMs int64) float64 {
	if deltaUpMs < 1 {
		deltaUpMs = 1
	}
	return float64(deltaNs) * 100 / (float64(deltaUpMs) * 1e6)
}

// Share is part/total in percent, 0 when total is 0.
func Share(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

// Rate converts a byte delta over deltaUpMs into bytes per second.
func Rate(bytes, deltaUpMs int64) int64 {
	if deltaUpMs < 1 {
		deltaUpMs = 1
	}
	return bytes * 1000 / deltaUpMs
}

// NameFilter matches thread names case-insensitively; an empty filter
// matches everything.
type NameFilter string

// Matches reports whether name contains the filter text.
func (f NameFilter) Matches(name string) bool {
	if f == "" {
		return true
	}
	return format.ContainsFold(name, string(f))
}

// Keep returns a ranking predicate matching f against each thread's name as
// the table for mode displays it. Threads missing from infos are dropped.
func (f NameFilter) Keep(infos map[types.Tid]*types.ThreadInfo, nameWidth int, mode types.Mode) func(types.Tid) bool {
	tail := memoryNameTail
	if mode.IsCPUFamily() {
		tail = cpuNameTail
	}
	return func(tid types.Tid) bool {
		info, ok := infos[tid]
		return ok && f.Matches(format.ShortName(info.Name, nameWidth, tail))
	}
}

// CPURows builds rows for the given thread infos, which are expected in
// display order.
func CPURows(frame *delta.Frame, infos []*types.ThreadInfo, processCPUNs int64, nameWidth int) []CPURow {
	rows := make([]CPURow, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		name := format.ShortName(info.Name, nameWidth, cpuNameTail)
		d, _ := frame.Thread(info.Tid)
		rows = append(rows, CPURow{
			Tid:             info.Tid,
			Name:            name,
			State:           info.State,
			CPUPercent:      Load(d.DCPUNs, frame.DeltaUpMs),
			SysCPUPercent:   Load(d.DSysCPUNs, frame.DeltaUpMs),
			TotalPercent:    Share(d.CPUTotalNs, processCPUNs),
			TotalSysPercent: Share(d.SysCPUTotalNs, processCPUNs),
		})
	}
	return rows
}

// MemoryRows builds allocation rows, mirroring CPURows.
func MemoryRows(frame *delta.Frame, infos []*types.ThreadInfo, nameWidth int) []MemoryRow {
	rows := make([]MemoryRow, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		name := format.ShortName(info.Name, nameWidth, memoryNameTail)
		d, _ := frame.Thread(info.Tid)
		rows = append(rows, MemoryRow{
			Tid:             info.Tid,
			Name:            name,
			State:           info.State,
			RateBytesPerSec: Rate(d.DAllocBytes, frame.DeltaUpMs),
			Share:           Share(d.DAllocBytes, frame.SumDAllocBytes),
			TotalBytes:      d.AllocBytesTotal,
			TotalShare:      Share(d.AllocBytesTotal, frame.SumAllocBytesTotal),
		})
	}
	return rows
}

// CPUSummary aggregates the frame's cpu deltas.
func CPUSummary(frame *delta.Frame, active int) CPUTotals {
	total := Load(frame.SumDCPUNs, frame.DeltaUpMs)
	sys := Load(frame.SumDSysCPUNs, frame.DeltaUpMs)
	return CPUTotals{CPUPercent: total, UserPercent: total - sys, SysPercent: sys, Active: active}
}

// MemorySummary aggregates the frame's allocation deltas.
func MemorySummary(frame *delta.Frame, active int) MemoryTotals {
	return MemoryTotals{RateBytesPerSec: Rate(frame.SumDAllocBytes, frame.DeltaUpMs), Active: active}
}
