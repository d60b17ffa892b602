package view

import (
	"context"
	"strings"
	"testing"

	"github.com/srodi/threadtop/pkg/types"
)

func commandSource() *fakeSource {
	threads := []fakeThread{
		{tid: 10, name: "worker-1", cpu: 1, user: 1},
		{tid: 11, name: "worker-2", cpu: 9e6, user: 9e6},
		{tid: 12, name: "http-nio-1", cpu: 2, user: 2},
	}
	return newFakeSource(cpuOnly,
		fakeTick{deltaUpMs: 1000, threads: threads},
		fakeTick{deltaUpMs: 1000, threads: []fakeThread{
			{tid: 10, name: "worker-1", cpu: 1, user: 1},
			{tid: 11, name: "worker-2", cpu: 20e6, user: 20e6},
			{tid: 12, name: "http-nio-1", cpu: 2, user: 2},
		}},
	)
}

func TestPrintStack(t *testing.T) {
	v, _, out := newTestView(commandSource(), types.ModeCPU)
	tick(t, v, out)
	out.Reset()

	if err := v.PrintStack(context.Background(), 10); err != nil {
		t.Fatalf("PrintStack: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, " Stack trace of thread 10:") || !strings.Contains(got, "\tat frame-0") || !strings.Contains(got, "Thread.State: RUNNABLE") {
		t.Fatalf("unexpected stack output:\n%s", got)
	}

	out.Reset()
	if err := v.PrintStack(context.Background(), 99); err != nil {
		t.Fatalf("PrintStack: %v", err)
	}
	if !strings.Contains(out.String(), " TID not exist:99") {
		t.Fatalf("expected missing tid notice:\n%s", out.String())
	}
}

func TestPrintTopStackUsesLastRanking(t *testing.T) {
	v, _, out := newTestView(commandSource(), types.ModeCPU)
	out.Reset()
	if err := v.PrintTopStack(context.Background()); err != nil {
		t.Fatalf("PrintTopStack: %v", err)
	}
	if !strings.Contains(out.String(), "No ranked threads yet") {
		t.Fatalf("expected empty notice:\n%s", out.String())
	}

	tick(t, v, out)
	tick(t, v, out)
	out.Reset()
	if err := v.PrintTopStack(context.Background()); err != nil {
		t.Fatalf("PrintTopStack: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, ` 11: "worker-2"`) {
		t.Fatalf("expected the ranked thread:\n%s", got)
	}
	if strings.Contains(got, `"worker-1"`) || strings.Contains(got, `"http-nio-1"`) {
		t.Fatalf("only ranked threads should be printed:\n%s", got)
	}
}

func TestPrintAllThreadsHonoursFilter(t *testing.T) {
	v, state, out := newTestView(commandSource(), types.ModeCPU)
	tick(t, v, out)
	tick(t, v, out)
	state.SetNameFilter("WORKER")
	out.Reset()

	if err := v.PrintAllThreads(context.Background()); err != nil {
		t.Fatalf("PrintAllThreads: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, " 10\t: \"worker-1\" (RUNNABLE)") || !strings.Contains(got, " 11\t: \"worker-2\"") {
		t.Fatalf("expected worker threads:\n%s", got)
	}
	if strings.Contains(got, "http-nio-1") {
		t.Fatalf("filtered thread listed:\n%s", got)
	}
	if !strings.Contains(got, " Thread name filter is:worker") {
		t.Fatalf("expected filter footer:\n%s", got)
	}

	// commands never move the delta history
	if v.Phase() != PhaseStreaming {
		t.Fatalf("expected streaming, got %s", v.Phase())
	}
}

func TestNotifyWritesLine(t *testing.T) {
	v, _, out := newTestView(commandSource(), types.ModeCPU)
	v.Notify(" Resumed")
	if out.String() != " Resumed\n" {
		t.Fatalf("unexpected notify output %q", out.String())
	}
}
