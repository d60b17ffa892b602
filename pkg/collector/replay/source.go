package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/srodi/threadtop/pkg/format"
	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
)

// Source serves a Recording one tick per Update.
type Source struct {
	rec *Recording
	log zerolog.Logger

	mu     sync.Mutex
	next   int
	cur    *Tick
	prev   *Tick
	byTid  map[types.Tid]*Thread
	passes int
}

// NewSource returns a Source positioned before the first tick.
func NewSource(rec *Recording, log zerolog.Logger) *Source {
	return &Source{rec: rec, log: log}
}

func (s *Source) Update(context.Context) (types.ProcessSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rec.Ticks) == 0 {
		return types.ProcessSummary{}, fmt.Errorf("recording of pid %d has no ticks: %w", s.rec.PID, source.ErrAttachFailed)
	}
	if s.next >= len(s.rec.Ticks) {
		if !s.rec.Loop {
			return types.ProcessSummary{}, fmt.Errorf("recording of pid %d ended: %w", s.rec.PID, source.ErrDetached)
		}
		// counters go back to the first tick, which regresses every delta once
		s.next, s.cur = 0, nil
		s.passes++
		s.log.Debug().Int("pass", s.passes).Msg("recording restarted")
	}

	s.prev = s.cur
	s.cur = &s.rec.Ticks[s.next]
	s.next++
	s.byTid = make(map[types.Tid]*Thread, len(s.cur.Threads))
	for i := range s.cur.Threads {
		s.byTid[s.cur.Threads[i].Tid] = &s.cur.Threads[i]
	}
	return s.summary(), nil
}

func (s *Source) summary() types.ProcessSummary {
	sum := types.ProcessSummary{
		PID:          s.rec.PID,
		UpMs:         s.cur.UpMs,
		DeltaUpMs:    s.cur.UpMs,
		ProcessCPUNs: s.cur.ProcessCPUNs,
		CoreCount:    s.rec.Cores,
		Caps:         s.rec.Capabilities,
		VMArgs:       s.rec.VMArgs,
	}
	if s.prev != nil {
		sum.DeltaUpMs = s.cur.UpMs - s.prev.UpMs
		sum.PrevCPUNs = s.prev.ProcessCPUNs
	}
	sum.Lines = append(sum.Lines, fmt.Sprintf(" PID: %d - replay tick %d/%d, UPTIME: %s, %d thread",
		s.rec.PID, s.next, len(s.rec.Ticks), format.TimeUnit(s.cur.UpMs), len(s.cur.Threads)))
	sum.Lines = append(sum.Lines, s.rec.Summary...)
	return sum
}

func (s *Source) AllThreadIDs(context.Context) ([]types.Tid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, fmt.Errorf("no tick replayed yet: %w", source.ErrSnapshotFailed)
	}
	tids := make([]types.Tid, len(s.cur.Threads))
	for i, th := range s.cur.Threads {
		tids[i] = th.Tid
	}
	return tids, nil
}

// counters looks up one field of every tid in the current tick. Unknown
// tids report 0.
func (s *Source) counters(tids []types.Tid, pick func(*Thread) int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]int64, len(tids))
	for i, tid := range tids {
		if th, ok := s.byTid[tid]; ok {
			values[i] = pick(th)
		}
	}
	return values
}

func (s *Source) ThreadCPUTime(_ context.Context, tids []types.Tid) ([]int64, error) {
	if !s.rec.Capabilities.CPUTime {
		return nil, source.ErrCapabilityMissing
	}
	return s.counters(tids, func(th *Thread) int64 { return th.CPUNs }), nil
}

func (s *Source) ThreadUserTime(_ context.Context, tids []types.Tid) ([]int64, error) {
	if !s.rec.Capabilities.CPUTime {
		return nil, source.ErrCapabilityMissing
	}
	return s.counters(tids, func(th *Thread) int64 { return th.UserNs }), nil
}

func (s *Source) ThreadAllocatedBytes(_ context.Context, tids []types.Tid) ([]int64, error) {
	if !s.rec.Capabilities.Allocation {
		return nil, source.ErrCapabilityMissing
	}
	return s.counters(tids, func(th *Thread) int64 { return th.AllocBytes }), nil
}

func (s *Source) ThreadInfo(_ context.Context, tids []types.Tid, stackDepth int) ([]*types.ThreadInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]*types.ThreadInfo, len(tids))
	for i, tid := range tids {
		th, ok := s.byTid[tid]
		if !ok {
			continue
		}
		info := &types.ThreadInfo{Tid: tid, Name: th.Name, State: th.State, Daemon: th.Daemon}
		if info.State == "" {
			info.State = "UNKNOWN"
		}
		if stackDepth > 0 {
			n := min(stackDepth, len(th.Stack))
			info.Stack = append([]string(nil), th.Stack[:n]...)
		}
		infos[i] = info
	}
	return infos, nil
}

func (s *Source) Capabilities() types.Capabilities { return s.rec.Capabilities }
func (s *Source) Close() error                     { return nil }
