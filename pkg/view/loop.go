package view

import (
	"context"
	"time"

	"github.com/srodi/threadtop/pkg/source"
)

// Run ticks immediately and then once per interval until ctx is done or an
// exit is requested. The interval is re-read after every tick. It returns
// source.ErrAttachFailed when the target could not be reached.
func (v *View) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if v.state.ShouldExit() {
			return v.exitErr()
		}
		// Tick only fails after requesting exit, handled below.
		if !v.state.Paused() {
			_ = v.Tick(ctx)
		}
		if v.state.ShouldExit() {
			return v.exitErr()
		}
		timer.Reset(v.state.Interval())
	}
}

func (v *View) exitErr() error {
	if v.AttachFailed() {
		return source.ErrAttachFailed
	}
	return nil
}
