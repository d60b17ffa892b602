// Package replay plays back and records YAML telemetry recordings, so a
// session can be replayed without a live process.
package replay

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/srodi/threadtop/pkg/types"
)

// Recording is the on-disk document.
type Recording struct {
	PID          int                `yaml:"pid"`
	Cores        int                `yaml:"cores"`
	Capabilities types.Capabilities `yaml:"capabilities"`
	VMArgs       string             `yaml:"vmArgs,omitempty"`
	Summary      []string           `yaml:"summary,omitempty"`

	// Loop restarts from the first tick instead of detaching at the end.
	Loop  bool   `yaml:"loop,omitempty"`
	Ticks []Tick `yaml:"ticks"`
}

// Tick holds cumulative counters as read at UpMs since process start.
type Tick struct {
	UpMs         int64    `yaml:"upMs"`
	ProcessCPUNs int64    `yaml:"processCpuNs"`
	Threads      []Thread `yaml:"threads"`
}

type Thread struct {
	Tid        types.Tid `yaml:"tid"`
	Name       string    `yaml:"name"`
	State      string    `yaml:"state,omitempty"`
	Daemon     bool      `yaml:"daemon,omitempty"`
	CPUNs      int64     `yaml:"cpuNs"`
	UserNs     int64     `yaml:"userNs"`
	AllocBytes int64     `yaml:"allocBytes,omitempty"`
	Stack      []string  `yaml:"stack,omitempty"`
}

// Decode reads and validates a recording.
func Decode(r io.Reader) (*Recording, error) {
	var rec Recording
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Open decodes the recording at path.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes rec as YAML.
func Encode(w io.Writer, rec *Recording) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding recording: %w", err)
	}
	return enc.Close()
}

func (r *Recording) validate() error {
	for i, tick := range r.Ticks {
		if i > 0 && tick.UpMs < r.Ticks[i-1].UpMs {
			return fmt.Errorf("tick %d: upMs %d goes backwards", i, tick.UpMs)
		}
		seen := make(map[types.Tid]struct{}, len(tick.Threads))
		for _, th := range tick.Threads {
			if _, dup := seen[th.Tid]; dup {
				return fmt.Errorf("tick %d: duplicate tid %d", i, th.Tid)
			}
			seen[th.Tid] = struct{}{}
		}
	}
	return nil
}
