package replay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
)

const sample = `
pid: 4242
cores: 8
capabilities:
  cpuTime: true
  allocation: true
vmArgs: -Xmx2g
summary:
  - " PROCESS: recorded"
ticks:
  - upMs: 1000
    processCpuNs: 5000000
    threads:
      - {tid: 1, name: main, state: RUNNABLE, cpuNs: 1000000, userNs: 900000, allocBytes: 4096}
      - {tid: 2, name: gc, cpuNs: 10, userNs: 10, stack: [a, b, c]}
  - upMs: 2000
    processCpuNs: 9000000
    threads:
      - {tid: 1, name: main, state: RUNNABLE, cpuNs: 8000000, userNs: 6000000, allocBytes: 8192}
`

func decodeSample(t *testing.T) *Recording {
	t.Helper()
	rec, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return rec
}

func TestReplaySourceWalksTicks(t *testing.T) {
	ctx := context.Background()
	src := NewSource(decodeSample(t), zerolog.Nop())

	first, err := src.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if first.PID != 4242 || first.DeltaUpMs != 1000 || first.CoreCount != 8 || !first.Caps.Allocation {
		t.Fatalf("unexpected summary %+v", first)
	}
	if len(first.Lines) != 2 || !strings.Contains(first.Lines[0], "replay tick 1/2") || first.Lines[1] != " PROCESS: recorded" {
		t.Fatalf("unexpected lines %q", first.Lines)
	}

	tids, _ := src.AllThreadIDs(ctx)
	if len(tids) != 2 || tids[0] != 1 || tids[1] != 2 {
		t.Fatalf("unexpected tids %v", tids)
	}
	infos, _ := src.ThreadInfo(ctx, []types.Tid{2, 7}, 2)
	if infos[0].Name != "gc" || infos[0].State != "UNKNOWN" || len(infos[0].Stack) != 2 {
		t.Fatalf("unexpected info %+v", infos[0])
	}
	if infos[1] != nil {
		t.Fatalf("unknown tid should be nil")
	}

	second, err := src.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if second.DeltaUpMs != 1000 || second.DeltaProcessCPUNs() != 4000000 {
		t.Fatalf("unexpected interval %+v", second)
	}
	cpu, _ := src.ThreadCPUTime(ctx, []types.Tid{1, 2})
	if cpu[0] != 8000000 || cpu[1] != 0 {
		t.Fatalf("vanished tid should read 0, got %v", cpu)
	}

	if _, err := src.Update(ctx); !errors.Is(err, source.ErrDetached) {
		t.Fatalf("expected ErrDetached at the end, got %v", err)
	}
}

func TestReplayLoopRestarts(t *testing.T) {
	rec := decodeSample(t)
	rec.Loop = true
	src := NewSource(rec, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := src.Update(ctx); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	again, err := src.Update(ctx)
	if err != nil {
		t.Fatalf("loop should restart, got %v", err)
	}
	if again.UpMs != 1000 || again.DeltaUpMs != 1000 {
		t.Fatalf("expected first tick again, got %+v", again)
	}
}

func TestReplayEmptyAndCapabilities(t *testing.T) {
	src := NewSource(&Recording{PID: 1}, zerolog.Nop())
	if _, err := src.Update(context.Background()); !errors.Is(err, source.ErrAttachFailed) {
		t.Fatalf("empty recording should fail to attach, got %v", err)
	}
	if _, err := src.ThreadAllocatedBytes(context.Background(), nil); !errors.Is(err, source.ErrCapabilityMissing) {
		t.Fatalf("expected ErrCapabilityMissing, got %v", err)
	}
}

func TestDecodeRejectsBadRecordings(t *testing.T) {
	cases := map[string]string{
		"backwards": "ticks:\n  - upMs: 2000\n  - upMs: 1000\n",
		"duplicate": "ticks:\n  - upMs: 1\n    threads: [{tid: 1}, {tid: 1}]\n",
		"syntax":    "ticks: [",
	}
	for name, doc := range cases {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	src := NewSource(decodeSample(t), zerolog.Nop())
	// asks for more ticks than recorded: stops on detach
	if err := Record(context.Background(), src, 5, time.Millisecond, &buf); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.PID != 4242 || rec.Cores != 8 || len(rec.Ticks) != 2 {
		t.Fatalf("unexpected recording %+v", rec)
	}
	first := rec.Ticks[0].Threads[0]
	if first.Name != "main" || first.CPUNs != 1000000 || first.UserNs != 900000 || first.AllocBytes != 4096 {
		t.Fatalf("unexpected thread %+v", first)
	}
	if gc := rec.Ticks[0].Threads[1]; gc.Name != "gc" || len(gc.Stack) != 3 || gc.Stack[2] != "c" {
		t.Fatalf("expected the recorded stack, got %+v", gc)
	}
}

func TestRecordStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Record(ctx, NewSource(decodeSample(t), zerolog.Nop()), 3, time.Hour, &buf); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rec.Ticks) > 1 {
		t.Fatalf("expected at most one tick after cancel, got %d", len(rec.Ticks))
	}
}
