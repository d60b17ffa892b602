// Package live attaches to a running process through procfs and gopsutil.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/srodi/threadtop/pkg/collector/process"
	"github.com/srodi/threadtop/pkg/collector/thread"
	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
)

// threadReader is what Source needs from thread.Collector.
type threadReader interface {
	Tids() ([]types.Tid, error)
	Sample(tids []types.Tid) []thread.Sample
	Stack(tid types.Tid, depth int) []string
}

// summaryReader is what Source needs from process.Collector.
type summaryReader interface {
	Summary(ctx context.Context, threads int) (types.ProcessSummary, error)
	Capabilities() types.Capabilities
	Updates() int
}

// Source implements source.Source for a live pid.
type Source struct {
	pid    int
	log    zerolog.Logger
	opener func(ctx context.Context) (threadReader, summaryReader, error)

	attachMu sync.Mutex
	threads  threadReader
	summary  summaryReader

	// samples holds the stat reads of the current tick so total and user
	// cpu come from the same read.
	mu      sync.Mutex
	samples map[types.Tid]thread.Sample
}

// New returns a Source for pid. Nothing is read until the first Update,
// which reports source.ErrAttachFailed if the process cannot be reached.
func New(pid int, procRoot string, log zerolog.Logger) *Source {
	return &Source{
		pid: pid,
		log: log,
		opener: func(ctx context.Context) (threadReader, summaryReader, error) {
			tc, err := thread.NewCollector(procRoot, pid)
			if err != nil {
				return nil, nil, err
			}
			pc, err := process.NewCollector(ctx, pid)
			if err != nil {
				return nil, nil, err
			}
			return tc, pc, nil
		},
	}
}

func (s *Source) attach(ctx context.Context) (threadReader, summaryReader, error) {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.summary != nil {
		return s.threads, s.summary, nil
	}
	tc, pc, err := s.opener(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pid %d: %v: %w", s.pid, err, source.ErrAttachFailed)
	}
	s.threads, s.summary = tc, pc
	s.log.Info().Int("pid", s.pid).Msg("attached")
	return tc, pc, nil
}

// Update refreshes the process summary and drops the cached stat reads.
func (s *Source) Update(ctx context.Context) (types.ProcessSummary, error) {
	_, pc, err := s.attach(ctx)
	if err != nil {
		return types.ProcessSummary{}, err
	}
	s.mu.Lock()
	s.samples = nil
	s.mu.Unlock()

	sum, err := pc.Summary(ctx, 0)
	if err != nil {
		return sum, classify(err, pc.Updates())
	}
	return sum, nil
}

// classify maps a collector error to the source sentinels.
func classify(err error, updates int) error {
	gone := errors.Is(err, process.ErrGone) || errors.Is(err, thread.ErrNoProcess)
	switch {
	case gone && updates == 0:
		return fmt.Errorf("%v: %w", err, source.ErrAttachFailed)
	case gone:
		return fmt.Errorf("%v: %w", err, source.ErrDetached)
	}
	return fmt.Errorf("%v: %w", err, source.ErrSnapshotFailed)
}

func (s *Source) AllThreadIDs(ctx context.Context) ([]types.Tid, error) {
	tc, pc, err := s.attach(ctx)
	if err != nil {
		return nil, err
	}
	tids, err := tc.Tids()
	if err != nil {
		return nil, classify(err, pc.Updates())
	}
	return tids, nil
}

// read returns the samples of tids, reusing reads made since the last Update.
func (s *Source) read(tc threadReader, tids []types.Tid) []thread.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == nil {
		s.samples = make(map[types.Tid]thread.Sample, len(tids))
	}
	out := make([]thread.Sample, len(tids))
	var missing []types.Tid
	for i, tid := range tids {
		sample, ok := s.samples[tid]
		if !ok {
			missing = append(missing, tid)
			continue
		}
		out[i] = sample
	}
	if len(missing) > 0 {
		for _, sample := range tc.Sample(missing) {
			s.samples[sample.Tid] = sample
		}
		for i, tid := range tids {
			out[i] = s.samples[tid]
		}
	}
	return out
}

// ThreadCPUTime returns user+system cpu ns. Threads that exited report 0.
func (s *Source) ThreadCPUTime(ctx context.Context, tids []types.Tid) ([]int64, error) {
	tc, _, err := s.attach(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]int64, len(tids))
	for i, sample := range s.read(tc, tids) {
		values[i] = sample.CPUNs
	}
	return values, nil
}

func (s *Source) ThreadUserTime(ctx context.Context, tids []types.Tid) ([]int64, error) {
	tc, _, err := s.attach(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]int64, len(tids))
	for i, sample := range s.read(tc, tids) {
		values[i] = sample.UserNs
	}
	return values, nil
}

// ThreadAllocatedBytes is not available from procfs.
func (s *Source) ThreadAllocatedBytes(context.Context, []types.Tid) ([]int64, error) {
	return nil, fmt.Errorf("thread allocation on pid %d: %w", s.pid, source.ErrCapabilityMissing)
}

// ThreadInfo always reads fresh so commands see current names and states.
func (s *Source) ThreadInfo(ctx context.Context, tids []types.Tid, stackDepth int) ([]*types.ThreadInfo, error) {
	tc, _, err := s.attach(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]*types.ThreadInfo, len(tids))
	for i, sample := range tc.Sample(tids) {
		if !sample.Alive {
			continue
		}
		info := &types.ThreadInfo{Tid: sample.Tid, Name: sample.Name, State: sample.State}
		if stackDepth > 0 {
			info.Stack = tc.Stack(sample.Tid, stackDepth)
		}
		infos[i] = info
	}
	return infos, nil
}

// Capabilities is empty until the first successful attach.
func (s *Source) Capabilities() types.Capabilities {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.summary == nil {
		return types.Capabilities{}
	}
	return s.summary.Capabilities()
}

func (s *Source) Close() error {
	s.log.Debug().Int("pid", s.pid).Msg("source closed")
	return nil
}
