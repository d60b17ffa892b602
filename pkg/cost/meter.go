// Package cost measures what each sampling iteration costs the sampler
// itself, separately from the observed process.
package cost

import (
	"fmt"
	"time"
)

// Sample is the cost of one iteration.
type Sample struct {
	Wall     time.Duration
	CPU      time.Duration
	Other    time.Duration
	Total    time.Duration
	CPUShare float64 // percent of Wall spent on CPU
}

// Meter tracks the sampler's own CPU usage across iterations. Begin and
// End must be called from the sampler goroutine.
type Meter struct {
	now      func() time.Time
	cpuTime  func() (time.Duration, error)
	metrics  *Metrics
	start    time.Time
	startCPU time.Duration
	lastCPU  time.Duration
}

// NewMeter returns a meter reading the calling process's CPU time. metrics
// may be nil.
func NewMeter(metrics *Metrics) *Meter {
	return &Meter{now: time.Now, cpuTime: selfCPUTime, metrics: metrics}
}

// Begin marks the start of an iteration.
func (m *Meter) Begin() {
	m.start = m.now()
	if cpu, err := m.cpuTime(); err == nil {
		m.startCPU = cpu
	}
}

// End closes the iteration started by Begin. Other is the CPU the sampler
// spent between the previous End and this Begin.
func (m *Meter) End() Sample {
	cpu, err := m.cpuTime()
	if err != nil {
		cpu = m.startCPU
	}
	s := Sample{
		Wall:  m.now().Sub(m.start),
		CPU:   cpu - m.startCPU,
		Other: m.startCPU - m.lastCPU,
	}
	s.Total = s.CPU + s.Other
	if s.Wall > 0 {
		s.CPUShare = float64(s.CPU) * 100 / float64(s.Wall)
	}
	m.lastCPU = cpu
	m.metrics.observeCost(s)
	return s
}

// Line renders s as the debug cost footer.
func (s Sample) Line() string {
	return fmt.Sprintf(" Cost %5.2f%% cpu in %dms, other is %dms, total is %dms",
		s.CPUShare, s.Wall.Milliseconds(), s.Other.Milliseconds(), s.Total.Milliseconds())
}
