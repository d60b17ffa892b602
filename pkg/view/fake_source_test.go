package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/srodi/threadtop/pkg/types"
)

type fakeThread struct {
	tid   types.Tid
	name  string
	cpu   int64
	user  int64
	alloc int64
}

type fakeTick struct {
	deltaUpMs    int64
	processCPUNs int64
	threads      []fakeThread
}

// fakeSource replays ticks; every Update moves to the next tick and
// sticks at the last one.
type fakeSource struct {
	mu        sync.Mutex
	ticks     []fakeTick
	next      int
	caps      types.Capabilities
	updateErr error
	threadErr error
	updates   int
}

func newFakeSource(caps types.Capabilities, ticks ...fakeTick) *fakeSource {
	return &fakeSource{ticks: ticks, caps: caps}
}

func (f *fakeSource) current() fakeTick {
	i := f.next - 1
	if i < 0 {
		i = 0
	}
	return f.ticks[i]
}

func (f *fakeSource) Update(context.Context) (types.ProcessSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if err := f.updateErr; err != nil {
		f.updateErr = nil
		return types.ProcessSummary{Lines: []string{" PID: 7 partial"}}, err
	}
	if f.next < len(f.ticks) {
		f.next++
	}
	tick := f.current()
	return types.ProcessSummary{
		PID:          7,
		DeltaUpMs:    tick.deltaUpMs,
		ProcessCPUNs: tick.processCPUNs,
		CoreCount:    4,
		Caps:         f.caps,
		VMArgs:       "-Xmx1g",
		Lines:        []string{" PID: 7 summary"},
	}, nil
}

func (f *fakeSource) lookup(tid types.Tid) (fakeThread, bool) {
	for _, th := range f.current().threads {
		if th.tid == tid {
			return th, true
		}
	}
	return fakeThread{}, false
}

func (f *fakeSource) AllThreadIDs(context.Context) ([]types.Tid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.threadErr; err != nil {
		f.threadErr = nil
		return nil, err
	}
	var tids []types.Tid
	for _, th := range f.current().threads {
		tids = append(tids, th.tid)
	}
	return tids, nil
}

func (f *fakeSource) counters(tids []types.Tid, pick func(fakeThread) int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(tids))
	for i, tid := range tids {
		if th, ok := f.lookup(tid); ok {
			out[i] = pick(th)
		}
	}
	return out
}

func (f *fakeSource) ThreadCPUTime(_ context.Context, tids []types.Tid) ([]int64, error) {
	return f.counters(tids, func(th fakeThread) int64 { return th.cpu }), nil
}

func (f *fakeSource) ThreadUserTime(_ context.Context, tids []types.Tid) ([]int64, error) {
	return f.counters(tids, func(th fakeThread) int64 { return th.user }), nil
}

func (f *fakeSource) ThreadAllocatedBytes(_ context.Context, tids []types.Tid) ([]int64, error) {
	if !f.caps.Allocation {
		return nil, errors.New("allocation unsupported")
	}
	return f.counters(tids, func(th fakeThread) int64 { return th.alloc }), nil
}

func (f *fakeSource) ThreadInfo(_ context.Context, tids []types.Tid, depth int) ([]*types.ThreadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]*types.ThreadInfo, len(tids))
	for i, tid := range tids {
		th, ok := f.lookup(tid)
		if !ok {
			continue
		}
		info := &types.ThreadInfo{Tid: tid, Name: th.name, State: "RUNNABLE"}
		for d := 0; d < depth && d < 2; d++ {
			info.Stack = append(info.Stack, fmt.Sprintf("frame-%d", d))
		}
		infos[i] = info
	}
	return infos, nil
}

func (f *fakeSource) Capabilities() types.Capabilities { return f.caps }
func (f *fakeSource) Close() error                     { return nil }
