// Package source defines the telemetry contract between the sampler and
// whatever is attached to the observed process.
package source

import (
	"context"
	"errors"

	"github.com/srodi/threadtop/pkg/types"
)

var (
	// ErrAttachFailed means the target could not be reached at all. Fatal.
	ErrAttachFailed = errors.New("could not attach to process")
	// ErrDetached means the target was attached but has since gone away.
	ErrDetached = errors.New("target process exited")
	// ErrSnapshotFailed is a transient failure; the next tick may succeed.
	ErrSnapshotFailed = errors.New("snapshot failed")
	// ErrCapabilityMissing is returned for counters the platform cannot provide.
	ErrCapabilityMissing = errors.New("telemetry not available")
)

// Source supplies process-wide and per-thread telemetry of one target.
//
// Counter slices returned by the Thread* methods are aligned with the tids
// argument. Total and user CPU are read by separate calls and therefore
// are not sampled atomically: user may exceed total by a few quanta.
// ThreadInfo may hold nil entries for threads that exited meanwhile.
type Source interface {
	// Update refreshes process-wide state and returns the new summary.
	Update(ctx context.Context) (types.ProcessSummary, error)
	AllThreadIDs(ctx context.Context) ([]types.Tid, error)
	ThreadCPUTime(ctx context.Context, tids []types.Tid) ([]int64, error)
	ThreadUserTime(ctx context.Context, tids []types.Tid) ([]int64, error)
	ThreadAllocatedBytes(ctx context.Context, tids []types.Tid) ([]int64, error)
	// ThreadInfo fetches name and state; stackDepth > 0 also fetches up
	// to that many stack frames.
	ThreadInfo(ctx context.Context, tids []types.Tid, stackDepth int) ([]*types.ThreadInfo, error)
	Capabilities() types.Capabilities
	Close() error
}
