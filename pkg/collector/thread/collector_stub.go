//go:build !linux
// +build !linux

package thread

import (
	"errors"

	"github.com/srodi/threadtop/pkg/types"
)

var (
	errUnsupported = errors.New("thread collector requires linux")

	// ErrNoProcess is returned when the task directory of the pid is gone.
	ErrNoProcess = errors.New("process not found")
)

// Collector is a placeholder on non-Linux platforms.
type Collector struct{}

// NewCollector returns an error because procfs is only available on Linux.
func NewCollector(mountPoint string, pid int) (*Collector, error) {
	return nil, errUnsupported
}

// Tids always fails on unsupported platforms.
func (c *Collector) Tids() ([]types.Tid, error) {
	return nil, errUnsupported
}

// Sample reports every thread as gone.
func (c *Collector) Sample(tids []types.Tid) []Sample {
	return make([]Sample, len(tids))
}

// Stack has no frames on unsupported platforms.
func (c *Collector) Stack(tid types.Tid, depth int) []string {
	return nil
}
