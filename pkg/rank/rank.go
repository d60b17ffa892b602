// Package rank orders the threads of a delta frame for display.
package rank

import (
	"fmt"
	"sort"

	"github.com/srodi/threadtop/pkg/delta"
	"github.com/srodi/threadtop/pkg/types"
)

// Ranking is the outcome of ranking a frame under one mode.
type Ranking struct {
	Mode types.Mode
	// Top holds at most K tids in display order, before name filtering.
	Top []types.Tid
	// Noteable counts tids eligible for the mode before truncation.
	Noteable int
}

type entry struct {
	tid types.Tid
	key int64
}

// Rank returns the top k tids of frame under mode. Ties are broken by
// ascending tid. k <= 0 means no limit.
func Rank(frame *delta.Frame, mode types.Mode, k int) Ranking {
	entries := make([]entry, 0, len(frame.Threads))
	for _, tid := range frame.Order {
		d := frame.Threads[tid]
		switch mode {
		case types.ModeCPU:
			if d.HasDCPU {
				entries = append(entries, entry{tid, d.DCPUNs})
			}
		case types.ModeSysCPU:
			if d.HasDSysCPU {
				entries = append(entries, entry{tid, d.DSysCPUNs})
			}
		case types.ModeTotalCPU:
			entries = append(entries, entry{tid, d.CPUTotalNs})
		case types.ModeTotalSysCPU:
			entries = append(entries, entry{tid, d.SysCPUTotalNs})
		case types.ModeMemory:
			if d.HasDAlloc {
				entries = append(entries, entry{tid, d.DAllocBytes})
			}
		case types.ModeTotalMemory:
			entries = append(entries, entry{tid, d.AllocBytesTotal})
		default:
			panic(fmt.Sprintf("unknown mode %d", int(mode)))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key == entries[j].key {
			return entries[i].tid < entries[j].tid
		}
		return entries[i].key > entries[j].key
	})

	r := Ranking{Mode: mode, Noteable: len(entries)}
	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	r.Top = make([]types.Tid, len(entries))
	for i, e := range entries {
		r.Top[i] = e.tid
	}
	return r
}

// Filter returns the tids of Top that keep accepts, preserving order. It
// never pulls in threads from outside Top.
func (r Ranking) Filter(keep func(types.Tid) bool) []types.Tid {
	if keep == nil {
		return append([]types.Tid(nil), r.Top...)
	}
	visible := make([]types.Tid, 0, len(r.Top))
	for _, tid := range r.Top {
		if keep(tid) {
			visible = append(visible, tid)
		}
	}
	return visible
}
