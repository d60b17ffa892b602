package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
)

// Record samples src n times, interval apart, and writes the recording to
// w. Cancelling ctx or the target exiting stops early; the ticks captured
// so far are still written.
func Record(ctx context.Context, src source.Source, n int, interval time.Duration, w io.Writer) error {
	rec := &Recording{}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for len(rec.Ticks) < n {
		select {
		case <-ctx.Done():
			return Encode(w, rec)
		case <-timer.C:
		}

		tick, sum, err := capture(ctx, src)
		switch {
		case errors.Is(err, source.ErrDetached):
			return Encode(w, rec)
		case err != nil:
			return err
		}
		if len(rec.Ticks) == 0 {
			rec.PID = sum.PID
			rec.Cores = sum.CoreCount
			rec.Capabilities = sum.Caps
			rec.VMArgs = sum.VMArgs
		}
		rec.Ticks = append(rec.Ticks, tick)
		timer.Reset(interval)
	}
	return Encode(w, rec)
}

func capture(ctx context.Context, src source.Source) (Tick, types.ProcessSummary, error) {
	sum, err := src.Update(ctx)
	if err != nil {
		return Tick{}, sum, err
	}
	tids, err := src.AllThreadIDs(ctx)
	if err != nil {
		return Tick{}, sum, fmt.Errorf("listing threads: %w", err)
	}

	var cpu, user, alloc []int64
	if sum.Caps.CPUTime {
		if cpu, err = src.ThreadCPUTime(ctx, tids); err != nil {
			return Tick{}, sum, err
		}
		if user, err = src.ThreadUserTime(ctx, tids); err != nil {
			return Tick{}, sum, err
		}
	}
	if sum.Caps.Allocation {
		if alloc, err = src.ThreadAllocatedBytes(ctx, tids); err != nil {
			return Tick{}, sum, err
		}
	}
	infos, err := src.ThreadInfo(ctx, tids, types.DefaultStackDepth)
	if err != nil {
		return Tick{}, sum, err
	}

	tick := Tick{UpMs: sum.UpMs, ProcessCPUNs: sum.ProcessCPUNs}
	for i, tid := range tids {
		if i >= len(infos) || infos[i] == nil {
			continue
		}
		th := Thread{
			Tid:    tid,
			Name:   infos[i].Name,
			State:  infos[i].State,
			Daemon: infos[i].Daemon,
			Stack:  infos[i].Stack,
		}
		if cpu != nil {
			th.CPUNs, th.UserNs = cpu[i], user[i]
		}
		if alloc != nil {
			th.AllocBytes = alloc[i]
		}
		tick.Threads = append(tick.Threads, th)
	}
	return tick, sum, nil
}
