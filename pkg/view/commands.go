package view

import (
	"bytes"
	"context"
	"fmt"

	"github.com/srodi/threadtop/pkg/report"
	"github.com/srodi/threadtop/pkg/types"
)

// PrintStack prints the stack of one thread. The delta engine is not touched.
func (v *View) PrintStack(ctx context.Context, tid types.Tid) error {
	infos, err := v.src.ThreadInfo(ctx, []types.Tid{tid}, types.DefaultStackDepth)
	if err != nil {
		return fmt.Errorf("fetching stack of thread %d: %w", tid, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n Stack trace of thread %d:\n", tid)
	if len(infos) == 0 || infos[0] == nil {
		fmt.Fprintf(&buf, " TID not exist:%d\n", tid)
	} else {
		writeStack(&buf, infos[0])
	}
	v.write(&buf)
	return nil
}

// PrintTopStack prints the stacks of the threads ranked by the last frame.
func (v *View) PrintTopStack(ctx context.Context) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n Stack trace of top %d threads:\n", v.state.ThreadLimit())

	tids := v.TopTids()
	if len(tids) == 0 {
		buf.WriteString(" No ranked threads yet, wait for the next refresh.\n")
		v.write(&buf)
		return nil
	}
	infos, err := v.src.ThreadInfo(ctx, tids, types.DefaultStackDepth)
	if err != nil {
		return fmt.Errorf("fetching top stacks: %w", err)
	}
	for _, info := range infos {
		if info != nil {
			writeStack(&buf, info)
		}
	}
	v.write(&buf)
	return nil
}

// PrintAllThreads lists id, name and state of every live thread matching
// the current name filter. No stacks are fetched.
func (v *View) PrintAllThreads(ctx context.Context) error {
	tids, err := v.src.AllThreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing threads: %w", err)
	}
	infos, err := v.src.ThreadInfo(ctx, tids, 0)
	if err != nil {
		return fmt.Errorf("fetching thread info: %w", err)
	}

	filter := v.state.NameFilter()
	var buf bytes.Buffer
	buf.WriteString("\n Thread Id and name for all live threads:\n")
	for _, info := range infos {
		if info == nil || !report.NameFilter(filter).Matches(info.Name) {
			continue
		}
		fmt.Fprintf(&buf, " %d\t: \"%s\" (%s)\n", info.Tid, info.Name, info.State)
	}
	if filter != "" {
		fmt.Fprintf(&buf, " Thread name filter is:%s\n", filter)
	}
	v.write(&buf)
	return nil
}

// Notify prints a one-off message between frames.
func (v *View) Notify(msg string) {
	var buf bytes.Buffer
	buf.WriteString(msg + "\n")
	v.write(&buf)
}

func writeStack(buf *bytes.Buffer, info *types.ThreadInfo) {
	fmt.Fprintf(buf, " %d: \"%s\"\n   Thread.State: %s\n", info.Tid, info.Name, info.State)
	for _, frame := range info.Stack {
		fmt.Fprintf(buf, "\tat %s\n", frame)
	}
}
