//go:build linux
// +build linux

package thread

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/srodi/threadtop/pkg/types"
)

// ErrNoProcess is returned when the task directory of the pid is gone.
var ErrNoProcess = errors.New("process not found")

// Collector reads the task directory of one pid.
type Collector struct {
	fs   procfs.FS
	root string
	pid  int
}

// NewCollector opens procfs at mountPoint (procfs.DefaultMountPoint when
// empty) for pid.
func NewCollector(mountPoint string, pid int) (*Collector, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", mountPoint, err)
	}
	return &Collector{fs: fs, root: mountPoint, pid: pid}, nil
}

// Tids lists the live threads in ascending order.
func (c *Collector) Tids() ([]types.Tid, error) {
	if _, err := os.Stat(filepath.Join(c.root, strconv.Itoa(c.pid))); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("pid %d: %w", c.pid, ErrNoProcess)
	}
	procs, err := c.fs.AllThreads(c.pid)
	if err != nil {
		return nil, fmt.Errorf("listing threads of pid %d: %w", c.pid, err)
	}
	tids := make([]types.Tid, 0, len(procs))
	for _, p := range procs {
		tids = append(tids, types.Tid(p.PID))
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	return tids, nil
}

// Sample reads the stat file of every tid. Threads that cannot be read
// come back with Alive unset and zero counters.
func (c *Collector) Sample(tids []types.Tid) []Sample {
	samples := make([]Sample, len(tids))
	for i, tid := range tids {
		samples[i] = c.sample(tid)
	}
	return samples
}

func (c *Collector) sample(tid types.Tid) Sample {
	s := Sample{Tid: tid}
	p, err := c.fs.Thread(c.pid, int(tid))
	if err != nil {
		return s
	}
	stat, err := p.Stat()
	if err != nil {
		return s
	}
	s.Name = threadName(stat.Comm, tid)
	s.State = StateName(stat.State)
	s.UserNs = ticksToNs(stat.UTime)
	s.CPUNs = ticksToNs(stat.UTime + stat.STime)
	s.Alive = true
	return s
}

// Stack returns up to depth kernel frames of tid. An unreadable stack file
// (it needs CAP_SYS_ADMIN) yields no frames.
func (c *Collector) Stack(tid types.Tid, depth int) []string {
	path := filepath.Join(c.root, strconv.Itoa(c.pid), "task", strconv.FormatInt(int64(tid), 10), "stack")
	data, err := procReadFile(path)
	if err != nil {
		return nil
	}
	return parseStack(data, depth)
}
