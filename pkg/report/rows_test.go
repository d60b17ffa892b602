package report

import (
	"math"
	"testing"

	"github.com/srodi/threadtop/pkg/delta"
	"github.com/srodi/threadtop/pkg/types"
)

func TestCPURowsPercentages(t *testing.T) {
	e := delta.NewEngine()
	tids := []types.Tid{10, 11}
	e.Advance(types.ThreadSnapshot{Tids: tids, CPUTotalNs: []int64{1_000_000, 2_000_000}, UserCPUNs: []int64{1_000_000, 2_000_000}, DeltaUpMs: 1000})
	frame, err := e.Advance(types.ThreadSnapshot{Tids: tids, CPUTotalNs: []int64{1_000_400, 9_000_000}, UserCPUNs: []int64{1_000_400, 9_000_000}, DeltaUpMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := []*types.ThreadInfo{{Tid: 11, Name: "worker-1", State: "RUNNABLE"}, nil}
	rows := CPURows(frame, infos, 10_000_000, 52)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if math.Abs(row.CPUPercent-0.70) > 1e-9 {
		t.Fatalf("expected 0.70%% cpu, got %.4f", row.CPUPercent)
	}
	if math.Abs(row.TotalPercent-90) > 1e-9 {
		t.Fatalf("expected 90%% of process cpu, got %.4f", row.TotalPercent)
	}
	if row.SysCPUPercent != 0 || row.TotalSysPercent != 0 {
		t.Fatalf("unexpected sys share %+v", row)
	}

	if rows := CPURows(frame, infos, 0, 52); rows[0].TotalPercent != 0 {
		t.Fatalf("zero process cpu must not divide, got %+v", rows[0])
	}
}

func TestMemoryRowsRateAndShare(t *testing.T) {
	e := delta.NewEngine()
	tids := []types.Tid{10, 11}
	e.Advance(types.ThreadSnapshot{Tids: tids, AllocBytes: []int64{0, 0}, DeltaUpMs: 2000})
	frame, _ := e.Advance(types.ThreadSnapshot{Tids: tids, AllocBytes: []int64{20_000, 60_000}, DeltaUpMs: 2000})

	infos := []*types.ThreadInfo{{Tid: 11, Name: "b"}, {Tid: 10, Name: "a"}}
	rows := MemoryRows(frame, infos, 52)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].RateBytesPerSec != 10_000 {
		t.Fatalf("expected 10000 B/s, got %d", rows[1].RateBytesPerSec)
	}
	if math.Abs(rows[0].Share-75) > 1e-9 || math.Abs(rows[1].TotalShare-25) > 1e-9 {
		t.Fatalf("unexpected shares %+v", rows)
	}
	if got := MemorySummary(frame, 2).RateBytesPerSec; got != 40_000 {
		t.Fatalf("expected aggregate 40000 B/s, got %d", got)
	}
}

func TestKeepMatchesDisplayedName(t *testing.T) {
	infos := map[types.Tid]*types.ThreadInfo{
		1: {Tid: 1, Name: "worker-1"},
		2: {Tid: 2, Name: "worker-2"},
		3: {Tid: 3, Name: "http-nio-1"},
	}
	count := func(keep func(types.Tid) bool) int {
		n := 0
		for _, tid := range []types.Tid{1, 2, 3, 4} {
			if keep(tid) {
				n++
			}
		}
		return n
	}
	if n := count(NameFilter("gc").Keep(infos, 52, types.ModeCPU)); n != 0 {
		t.Fatalf("expected no matches, got %d", n)
	}
	if n := count(NameFilter("worker").Keep(infos, 52, types.ModeMemory)); n != 2 {
		t.Fatalf("expected 2 matches, got %d", n)
	}
	if n := count(NameFilter("").Keep(infos, 52, types.ModeCPU)); n != 3 {
		t.Fatalf("empty filter keeps every thread with info, got %d", n)
	}
}

func TestAggregateEqualsSumOfRows(t *testing.T) {
	e := delta.NewEngine()
	tids := []types.Tid{1, 2, 3, 4}
	e.Advance(types.ThreadSnapshot{Tids: tids, CPUTotalNs: []int64{0, 0, 0, 0}, UserCPUNs: []int64{0, 0, 0, 0}, DeltaUpMs: 1500})
	frame, _ := e.Advance(types.ThreadSnapshot{
		Tids:       tids,
		CPUTotalNs: []int64{3_333_333, 100, 7_777_777, 1_234_567},
		UserCPUNs:  []int64{1_000_000, 100, 7_000_000, 0},
		DeltaUpMs:  1500,
	})

	var sum, sysSum float64
	active := 0
	for _, d := range frame.Threads {
		if d.HasDCPU {
			sum += Load(d.DCPUNs, frame.DeltaUpMs)
			active++
		}
		if d.HasDSysCPU {
			sysSum += Load(d.DSysCPUNs, frame.DeltaUpMs)
		}
	}
	totals := CPUSummary(frame, active)
	if math.Abs(totals.CPUPercent-sum) > 1e-12 {
		t.Fatalf("aggregate %.15f differs from row sum %.15f", totals.CPUPercent, sum)
	}
	if math.Abs(totals.SysPercent-sysSum) > 1e-12 {
		t.Fatalf("sys aggregate %.15f differs from row sum %.15f", totals.SysPercent, sysSum)
	}
	if active != 3 {
		t.Fatalf("expected 3 active threads, got %d", active)
	}
}

func TestNameFilter(t *testing.T) {
	if !NameFilter("").Matches("anything") {
		t.Fatalf("empty filter must match")
	}
	if !NameFilter("Nio").Matches("http-nio-1") {
		t.Fatalf("expected case-insensitive match")
	}
}
