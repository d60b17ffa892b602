// Package view drives one sampling iteration per tick: it pulls telemetry,
// advances the delta engine, ranks threads and renders a text frame.
package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/srodi/threadtop/pkg/control"
	"github.com/srodi/threadtop/pkg/cost"
	"github.com/srodi/threadtop/pkg/delta"
	"github.com/srodi/threadtop/pkg/format"
	"github.com/srodi/threadtop/pkg/rank"
	"github.com/srodi/threadtop/pkg/report"
	"github.com/srodi/threadtop/pkg/source"
	"github.com/srodi/threadtop/pkg/types"
	"github.com/srodi/threadtop/pkg/ui"
)

const (
	DefaultWidth = 100
	MinWidth     = 80

	clearScreen = "\033[H\033[2J"
)

// Phase is the rendering state of the view.
type Phase int32

const (
	PhaseInitial Phase = iota
	PhaseCollecting
	PhaseStreaming
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseCollecting:
		return "collecting"
	case PhaseStreaming:
		return "streaming"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Warnings colors per-thread percentages.
type Warnings struct {
	CPU    format.Threshold `yaml:"cpu"`
	SysCPU format.Threshold `yaml:"syscpu"`
}

// DefaultWarnings mirrors the thresholds used for process-level cpu.
var DefaultWarnings = Warnings{
	CPU:    format.Threshold{Yellow: 50, Red: 70},
	SysCPU: format.Threshold{Yellow: 20, Red: 40},
}

// Config wires a View.
type Config struct {
	Source      source.Source
	State       *control.State
	Out         io.Writer
	Width       int
	Debug       bool
	ClearScreen bool
	Warnings    Warnings
	Metrics     *cost.Metrics
	Logger      zerolog.Logger
}

// View owns the delta engine. Tick, Run and CleanupHistory must be called
// from a single sampler goroutine; the Print* commands and Notify may be
// called from any goroutine.
type View struct {
	src      source.Source
	state    *control.State
	out      io.Writer
	width    int
	debug    bool
	clear    bool
	warnings Warnings
	metrics  *cost.Metrics
	log      zerolog.Logger

	engine  *delta.Engine
	welcome ui.Welcome
	meter   *cost.Meter

	outMu        sync.Mutex
	phase        atomic.Int32
	topTids      atomic.Pointer[[]types.Tid]
	attachFailed atomic.Bool
}

// New builds a View from cfg. Width is clamped to MinWidth; zero selects
// DefaultWidth.
func New(cfg Config) *View {
	return &View{
		src:      cfg.Source,
		state:    cfg.State,
		out:      cfg.Out,
		width:    clampWidth(cfg.Width),
		debug:    cfg.Debug,
		clear:    cfg.ClearScreen,
		warnings: cfg.Warnings,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		engine:   delta.NewEngine(),
		meter:    cost.NewMeter(cfg.Metrics),
	}
}

func clampWidth(w int) int {
	switch {
	case w == 0:
		return DefaultWidth
	case w < MinWidth:
		return MinWidth
	}
	return w
}

func (v *View) nameWidth() int {
	return v.width - 48
}

// Phase reports the current rendering phase.
func (v *View) Phase() Phase {
	return Phase(v.phase.Load())
}

// AttachFailed reports whether the view stopped because the target could
// not be reached.
func (v *View) AttachFailed() bool {
	return v.attachFailed.Load()
}

// CleanupHistory drops the delta history; the next tick primes again.
func (v *View) CleanupHistory() {
	v.engine.Reset()
	v.state.SetCollectingData(true)
	v.phase.Store(int32(PhaseCollecting))
	v.log.Debug().Msg("thread history cleaned up")
}

// TopTids returns the ranking of the last rendered frame, before name filtering.
func (v *View) TopTids() []types.Tid {
	if p := v.topTids.Load(); p != nil {
		return *p
	}
	return nil
}

// Tick runs one iteration and writes one frame. Transient telemetry
// failures are rendered and swallowed; ErrAttachFailed and ErrDetached are
// returned after requesting exit.
func (v *View) Tick(ctx context.Context) error {
	set := v.state.Latch()
	if v.state.TakeReset() {
		v.CleanupHistory()
	}
	v.meter.Begin()

	var buf bytes.Buffer
	if v.clear {
		buf.WriteString(clearScreen)
	}
	defer v.write(&buf)

	summary, err := v.src.Update(ctx)
	switch {
	case errors.Is(err, source.ErrAttachFailed):
		buf.WriteString("\n" + format.RedLine("ERROR: Could not attach to process, exit now.") + "\n")
		v.log.Error().Err(err).Msg("attach failed")
		v.attachFailed.Store(true)
		v.state.RequestExit()
		return err
	case errors.Is(err, source.ErrDetached):
		buf.WriteString("\n" + format.RedLine("Target process exited, exit now.") + "\n")
		v.log.Info().Err(err).Msg("target detached")
		v.state.RequestExit()
		return err
	}

	for _, line := range summary.Lines {
		buf.WriteString(line + "\n")
	}
	if err != nil {
		fmt.Fprintf(&buf, "\n %s\n", format.RedLine("ERROR: Could not fetch data from the process - "+err.Error()))
		v.snapshotFailed(err)
		v.meter.End()
		return nil
	}

	v.threadSection(ctx, &buf, set, summary)

	if sample := v.meter.End(); v.debug {
		buf.WriteString(sample.Line() + "\n")
	}
	if set.CommandHints {
		buf.WriteString(" Input command (h for help):")
	}
	return nil
}

func (v *View) threadSection(ctx context.Context, buf *bytes.Buffer, set control.Settings, summary types.ProcessSummary) {
	cpuFamily := set.Mode.IsCPUFamily()
	if cpuFamily && !summary.Caps.CPUTime {
		buf.WriteString("\n -Thread CPU telemetries are not available on the monitored process-\n")
		return
	}
	if !cpuFamily && !summary.Caps.Allocation {
		buf.WriteString("\n -Thread Memory Allocated telemetries are not available on the monitored process-\n")
		return
	}

	snapshot, err := v.snapshot(ctx, summary)
	if err != nil {
		v.threadError(buf, err)
		return
	}
	frame, err := v.engine.Advance(snapshot)
	if err != nil {
		v.threadError(buf, err)
		return
	}

	if frame.Primer {
		buf.WriteString(v.welcome.Render(summary))
		v.state.SetCollectingData(true)
		v.phase.Store(int32(PhaseCollecting))
		return
	}
	v.state.SetCollectingData(false)
	v.phase.Store(int32(PhaseStreaming))

	ranking := rank.Rank(frame, set.Mode, set.ThreadLimit)
	top := ranking.Top
	v.topTids.Store(&top)

	var infos []*types.ThreadInfo
	if len(top) > 0 {
		infos, err = v.src.ThreadInfo(ctx, top, 0)
		if err != nil {
			v.threadError(buf, err)
			return
		}
	}

	shown := v.shown(set, ranking, infos)
	if cpuFamily {
		v.renderCPU(buf, set, summary, frame, ranking, shown)
	} else {
		v.renderMemory(buf, set, frame, ranking, shown)
	}
}

// shown applies the name filter to the ranked threads, keeping rank order.
func (v *View) shown(set control.Settings, ranking rank.Ranking, infos []*types.ThreadInfo) []*types.ThreadInfo {
	byTid := make(map[types.Tid]*types.ThreadInfo, len(infos))
	for _, info := range infos {
		if info != nil {
			byTid[info.Tid] = info
		}
	}
	tids := ranking.Filter(report.NameFilter(set.NameFilter).Keep(byTid, v.nameWidth(), set.Mode))
	shown := make([]*types.ThreadInfo, len(tids))
	for i, tid := range tids {
		shown[i] = byTid[tid]
	}
	return shown
}

// snapshot reads every counter family the source supports, so switching
// between cpu and memory modes keeps a primed history.
func (v *View) snapshot(ctx context.Context, summary types.ProcessSummary) (types.ThreadSnapshot, error) {
	s := types.ThreadSnapshot{DeltaUpMs: summary.DeltaUpMs, CoreCount: summary.CoreCount}
	tids, err := v.src.AllThreadIDs(ctx)
	if err != nil {
		return s, err
	}
	s.Tids = tids
	v.metrics.SetThreads(len(tids))

	if summary.Caps.CPUTime {
		if s.CPUTotalNs, err = v.src.ThreadCPUTime(ctx, tids); err != nil {
			return s, err
		}
		if s.UserCPUNs, err = v.src.ThreadUserTime(ctx, tids); err != nil {
			return s, err
		}
	}
	if summary.Caps.Allocation {
		if s.AllocBytes, err = v.src.ThreadAllocatedBytes(ctx, tids); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (v *View) threadError(buf *bytes.Buffer, err error) {
	fmt.Fprintf(buf, "\n%s\n", format.RedLine("ERROR: Exception happen when fetch thread information - "+err.Error()))
	v.snapshotFailed(err)
}

func (v *View) snapshotFailed(err error) {
	v.metrics.SnapshotFailed()
	v.log.Warn().Err(err).Msg("snapshot failed")
}

func (v *View) renderCPU(buf *bytes.Buffer, set control.Settings, summary types.ProcessSummary, frame *delta.Frame, ranking rank.Ranking, infos []*types.ThreadInfo) {
	nw := v.nameWidth()
	titleFormat := fmt.Sprintf(" %%6s %%-%ds %%10s %%6s %%6s %%6s %%6s\n", nw)
	dataFormat := fmt.Sprintf(" %%6d %%-%ds %%10s %%s%%5.2f%%%%%%s %%s%%5.2f%%%%%%s %%5.2f%%%% %%5.2f%%%%\n", nw)
	fmt.Fprintf(buf, "\n\n"+titleFormat, "TID", "NAME  ", "STATE", "CPU", "SYSCPU", " TOTAL", "TOLSYS")

	if ranking.Noteable == 0 {
		buf.WriteString("\n -Every thread use cpu lower than 0.05%-\n")
	}

	for _, row := range report.CPURows(frame, infos, summary.ProcessCPUNs, nw) {
		cpuStart, cpuEnd := format.ColorAnsi(row.CPUPercent, v.warnings.CPU)
		sysStart, sysEnd := format.ColorAnsi(row.SysCPUPercent, v.warnings.SysCPU)
		fmt.Fprintf(buf, dataFormat, row.Tid, row.Name, format.LeftStr(row.State, 10),
			cpuStart, row.CPUPercent, cpuEnd, sysStart, row.SysCPUPercent, sysEnd,
			row.TotalPercent, row.TotalSysPercent)
	}

	totals := report.CPUSummary(frame, ranking.Noteable)
	fmt.Fprintf(buf, "\n Total  : %5.2f%% cpu(user=%5.2f%%, sys=%5.2f%%) by %d active threads(which cpu>0.05%%)\n",
		totals.CPUPercent, totals.UserPercent, totals.SysPercent, totals.Active)
	v.settingsLine(buf, set)
}

func (v *View) renderMemory(buf *bytes.Buffer, set control.Settings, frame *delta.Frame, ranking rank.Ranking, infos []*types.ThreadInfo) {
	nw := v.nameWidth()
	titleFormat := fmt.Sprintf(" %%6s %%-%ds %%10s %%14s %%18s\n", nw)
	dataFormat := fmt.Sprintf(" %%6d %%-%ds %%10s %%5s/s(%%5.2f%%%%) %%10s(%%5.2f%%%%)\n", nw)
	fmt.Fprintf(buf, "\n\n"+titleFormat, "TID", "NAME  ", "STATE", "MEMORY", "TOTAL-ALLOCATED")

	if ranking.Noteable == 0 {
		buf.WriteString("\n -Every thread allocate memory slower than 1k/s-\n")
	}

	for _, row := range report.MemoryRows(frame, infos, nw) {
		fmt.Fprintf(buf, dataFormat, row.Tid, row.Name, format.LeftStr(row.State, 10),
			format.FixLengthSizeUnit(row.RateBytesPerSec), row.Share,
			format.FixLengthSizeUnit(row.TotalBytes), row.TotalShare)
	}

	totals := report.MemorySummary(frame, ranking.Noteable)
	fmt.Fprintf(buf, "\n Total  : %5s/s memory allocated by %d active threads(which >1k/s)\n",
		format.FixLengthSizeUnit(totals.RateBytesPerSec), totals.Active)
	v.settingsLine(buf, set)
}

func (v *View) settingsLine(buf *bytes.Buffer, set control.Settings) {
	filter := ""
	if set.NameFilter != "" {
		filter = " filter by " + set.NameFilter
	}
	fmt.Fprintf(buf, " Setting: top %d threads order by %s%s, flush every %ds\n",
		set.ThreadLimit, strings.ToUpper(set.Mode.String()), filter, int64(set.Interval.Seconds()))
}

func (v *View) write(buf *bytes.Buffer) {
	v.outMu.Lock()
	defer v.outMu.Unlock()
	if _, err := v.out.Write(buf.Bytes()); err != nil {
		v.log.Warn().Err(err).Msg("writing frame")
	}
}
