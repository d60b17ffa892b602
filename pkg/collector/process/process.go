// Package process builds the process-wide summary block from gopsutil.
package process

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/threadtop/pkg/format"
	"github.com/srodi/threadtop/pkg/types"
)

// ErrGone is returned once the process is no longer running.
var ErrGone = errors.New("process is not running")

const maxArgsLen = 400

// Thresholds for the rendered summary lines.
var (
	CPUWarning    = format.Threshold{Yellow: 50, Red: 70}
	ThreadWarning = format.Threshold{Yellow: 500, Red: 1000}
)

// handle is the subset of *process.Process the summary needs.
type handle interface {
	IsRunningWithContext(ctx context.Context) (bool, error)
	TimesWithContext(ctx context.Context) (*cpu.TimesStat, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
	NameWithContext(ctx context.Context) (string, error)
	UsernameWithContext(ctx context.Context) (string, error)
	CmdlineWithContext(ctx context.Context) (string, error)
	NumThreadsWithContext(ctx context.Context) (int32, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
	IOCountersWithContext(ctx context.Context) (*process.IOCountersStat, error)
}

// Package-level hooks so tests can replace gopsutil.
var (
	newHandle = func(ctx context.Context, pid int32) (handle, error) {
		return process.NewProcessWithContext(ctx, pid)
	}
	logicalCores = func(ctx context.Context) (int, error) {
		return cpu.CountsWithContext(ctx, true)
	}
	now = time.Now
)

// Collector tracks one process between calls to Summary.
type Collector struct {
	pid     int
	proc    handle
	cores   int
	created time.Time
	name    string
	user    string
	args    string

	updates   atomic.Int64
	prevUpMs  int64
	prevCPUNs int64
	prevIO    *process.IOCountersStat
	ioOK      bool
}

// NewCollector attaches to pid. The static fields (name, user, command
// line, start time) are read once here.
func NewCollector(ctx context.Context, pid int) (*Collector, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := newHandle(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("attaching to pid %d: %w", pid, err)
	}
	createdMs, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading start time of pid %d: %w", pid, err)
	}
	cores, err := logicalCores(ctx)
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}

	c := &Collector{pid: pid, proc: p, cores: cores, created: time.UnixMilli(createdMs)}
	c.name, _ = p.NameWithContext(ctx)
	c.user, _ = p.UsernameWithContext(ctx)
	c.args, _ = p.CmdlineWithContext(ctx)
	_, ioErr := p.IOCountersWithContext(ctx)
	c.ioOK = ioErr == nil
	return c, nil
}

// Capabilities reports what the platform exposes for this process. Thread
// allocation counters are never available from procfs.
func (c *Collector) Capabilities() types.Capabilities {
	return types.Capabilities{
		CPUTime:    true,
		Allocation: false,
		Linux:      runtime.GOOS == "linux",
		PerfData:   false,
		IOData:     c.ioOK,
	}
}

// Summary reads the process counters and renders the summary lines. The
// first call reports the whole lifetime as its interval.
func (c *Collector) Summary(ctx context.Context, threads int) (types.ProcessSummary, error) {
	running, err := c.proc.IsRunningWithContext(ctx)
	if err != nil {
		return types.ProcessSummary{}, fmt.Errorf("checking pid %d: %w", c.pid, err)
	}
	if !running {
		return types.ProcessSummary{}, fmt.Errorf("pid %d: %w", c.pid, ErrGone)
	}
	times, err := c.proc.TimesWithContext(ctx)
	if err != nil {
		return types.ProcessSummary{}, fmt.Errorf("reading cpu times of pid %d: %w", c.pid, err)
	}

	wall := now()
	upMs := wall.Sub(c.created).Milliseconds()
	cpuNs := int64((times.User + times.System) * float64(time.Second))

	s := types.ProcessSummary{
		PID:          c.pid,
		WallTime:     wall,
		UpMs:         upMs,
		DeltaUpMs:    upMs - c.prevUpMs,
		ProcessCPUNs: cpuNs,
		PrevCPUNs:    c.prevCPUNs,
		CoreCount:    c.cores,
		Caps:         c.Capabilities(),
		VMArgs:       format.LeftStr(c.args, maxArgsLen),
	}
	if threads <= 0 {
		if n, err := c.proc.NumThreadsWithContext(ctx); err == nil {
			threads = int(n)
		}
	}

	s.Lines = append(s.Lines, c.headerLine(s), c.cpuLine(s, threads))
	if line, ok := c.memoryLine(ctx); ok {
		s.Lines = append(s.Lines, line)
	}
	if line, ok := c.diskLine(ctx, s.DeltaUpMs); ok {
		s.Lines = append(s.Lines, line)
	}

	c.updates.Add(1)
	c.prevUpMs = upMs
	c.prevCPUNs = cpuNs
	return s, nil
}

// Updates counts successful calls to Summary. Safe for concurrent use.
func (c *Collector) Updates() int {
	return int(c.updates.Load())
}

func (c *Collector) headerLine(s types.ProcessSummary) string {
	user := c.user
	if user == "" {
		user = "?"
	}
	return fmt.Sprintf(" PID: %d - %s, COMMAND: %s, USER: %s, UPTIME: %s",
		s.PID, s.WallTime.Format("15:04:05"), c.name, user, format.TimeUnit(s.UpMs))
}

func (c *Collector) cpuLine(s types.ProcessSummary, threads int) string {
	load := cpuLoad(s.DeltaProcessCPUNs(), s.DeltaUpMs)
	start, end := format.ColorAnsi(load, CPUWarning)
	perCore := 0.0
	if c.cores > 0 {
		perCore = load / float64(c.cores)
	}
	return fmt.Sprintf(" PROCESS: %s%5.2f%%%s cpu(%5.2f%% of %d core), %s thread",
		start, load, end, perCore, c.cores, format.ToColor(int64(threads), ThreadWarning))
}

func (c *Collector) memoryLine(ctx context.Context) (string, bool) {
	mem, err := c.proc.MemoryInfoWithContext(ctx)
	if err != nil || mem == nil {
		return "", false
	}
	return fmt.Sprintf(" MEMORY: rss %s, vms %s, swap %s",
		format.SizeUnit(int64(mem.RSS)), format.SizeUnit(int64(mem.VMS)), format.SizeUnit(int64(mem.Swap))), true
}

func (c *Collector) diskLine(ctx context.Context, deltaUpMs int64) (string, bool) {
	if !c.ioOK {
		return "", false
	}
	io, err := c.proc.IOCountersWithContext(ctx)
	if err != nil || io == nil {
		return "", false
	}
	prev := c.prevIO
	c.prevIO = io
	if prev == nil || deltaUpMs <= 0 {
		return "", false
	}
	read := rate(io.ReadBytes, prev.ReadBytes, deltaUpMs)
	write := rate(io.WriteBytes, prev.WriteBytes, deltaUpMs)
	return fmt.Sprintf(" DISK: read %s/s, write %s/s", format.SizeUnit(read), format.SizeUnit(write)), true
}

// cpuLoad is the percentage of one core used over deltaUpMs.
func cpuLoad(deltaNs, deltaUpMs int64) float64 {
	if deltaUpMs <= 0 {
		return 0
	}
	return float64(deltaNs) * 100 / (float64(deltaUpMs) * 1e6)
}

func rate(cur, prev uint64, deltaUpMs int64) int64 {
	if cur < prev {
		return 0
	}
	return int64(cur-prev) * 1000 / deltaUpMs
}
