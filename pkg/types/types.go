package types

import "time"

// DefaultTopK controls how many threads are displayed per frame.
const DefaultTopK = 10

// DefaultStackDepth bounds the number of frames fetched per thread stack.
const DefaultStackDepth = 20

// Tid identifies a thread inside the observed process. Stable for the
// lifetime of the thread, possibly reused after the thread exits.
type Tid int64

// ThreadSnapshot holds one tick's cumulative per-thread counters. The
// counter slices are aligned with Tids; a nil slice means the source does
// not support that counter family.
type ThreadSnapshot struct {
	Tids       []Tid
	CPUTotalNs []int64
	UserCPUNs  []int64
	AllocBytes []int64
	DeltaUpMs  int64
	CoreCount  int
}

// ThreadInfo describes a live thread. Stack is only filled when a stack
// depth was requested.
type ThreadInfo struct {
	Tid    Tid
	Name   string
	State  string
	Daemon bool
	Stack  []string
}

// Capabilities reports which telemetry families the source can provide.
type Capabilities struct {
	CPUTime    bool `yaml:"cpuTime"`
	Allocation bool `yaml:"allocation"`
	Linux      bool `yaml:"linux"`
	PerfData   bool `yaml:"perfData"`
	IOData     bool `yaml:"ioData"`
}

// ProcessSummary is the process-wide sample taken at the start of a tick.
type ProcessSummary struct {
	PID          int
	WallTime     time.Time
	UpMs         int64
	DeltaUpMs    int64
	ProcessCPUNs int64
	PrevCPUNs    int64
	CoreCount    int
	Caps         Capabilities
	VMArgs       string
	// Lines is the pre-rendered runtime summary block, printed verbatim.
	Lines []string
}

// DeltaProcessCPUNs is the process CPU consumed since the previous tick.
func (s ProcessSummary) DeltaProcessCPUNs() int64 {
	if s.ProcessCPUNs < s.PrevCPUNs {
		return 0
	}
	return s.ProcessCPUNs - s.PrevCPUNs
}
