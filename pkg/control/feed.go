package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/srodi/threadtop/pkg/types"
)

// Printer services the one-shot commands. Implementations must serialise
// their output with the sampler's frames.
type Printer interface {
	PrintStack(ctx context.Context, tid types.Tid) error
	PrintTopStack(ctx context.Context) error
	PrintAllThreads(ctx context.Context) error
	Notify(msg string)
}

// Help lists the interactive commands.
const Help = ` Commands:
  m <1-6|name>  change mode (1:cpu 2:syscpu 3:totalcpu 4:totalsyscpu 5:memory 6:totalmemory)
  l <n>         show top n threads
  i <seconds>   change flush interval
  f [text]      filter thread names, no text clears the filter
  t <tid>       print stack of one thread
  s             print stacks of the current top threads
  a             list all live threads
  p             pause / resume sampling
  r             reset delta history
  h             this help
  q             quit
  <enter>       toggle the command prompt`

// maxIntervalSeconds is the largest interval a time.Duration can hold.
const maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// Feed reads line commands and applies them to a State.
type Feed struct {
	State   *State
	Printer Printer
	Logger  zerolog.Logger
}

// Run consumes commands from r until EOF, a quit command or ctx is done.
func (f *Feed) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if quit := f.Execute(ctx, scanner.Text()); quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}

// Execute applies one command line and reports whether it asked to quit.
func (f *Feed) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		f.State.SetCommandHints(!f.State.CommandHints())
		return false
	}
	cmd, args := fields[0], fields[1:]
	arg := strings.Join(args, " ")

	switch cmd {
	case "q", "quit":
		f.Logger.Info().Msg("quit requested")
		f.State.RequestExit()
		return true
	case "h", "help":
		f.Printer.Notify(Help)
	case "m":
		mode, err := types.ParseMode(arg)
		if err != nil {
			f.Printer.Notify(" " + err.Error())
			return false
		}
		f.State.SetMode(mode)
		f.Logger.Info().Stringer("mode", mode).Msg("mode changed")
		f.Printer.Notify(" Mode changed to " + strings.ToUpper(mode.String()))
	case "l":
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 || n > math.MaxInt32 {
			f.Printer.Notify(" Invalid thread limit: " + arg)
			return false
		}
		f.State.SetThreadLimit(n)
		f.Logger.Info().Int("limit", n).Msg("thread limit changed")
	case "i":
		secs, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || secs <= 0 || secs > maxIntervalSeconds {
			f.Printer.Notify(" Invalid interval: " + arg)
			return false
		}
		f.State.SetInterval(time.Duration(secs) * time.Second)
		f.Logger.Info().Int64("seconds", secs).Msg("interval changed")
	case "f":
		f.State.SetNameFilter(arg)
		f.Logger.Info().Str("filter", f.State.NameFilter()).Msg("name filter changed")
	case "t":
		tid, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			f.Printer.Notify(" Invalid thread id: " + arg)
			return false
		}
		f.report(f.Printer.PrintStack(ctx, types.Tid(tid)))
	case "s":
		f.report(f.Printer.PrintTopStack(ctx))
	case "a":
		f.report(f.Printer.PrintAllThreads(ctx))
	case "p":
		if f.State.TogglePause() {
			f.Printer.Notify(" Paused, p to resume")
		} else {
			f.Printer.Notify(" Resumed")
		}
	case "r":
		f.State.RequestReset()
	default:
		f.Printer.Notify(fmt.Sprintf(" Unknown command %q, h for help", cmd))
	}
	return false
}

func (f *Feed) report(err error) {
	if err == nil {
		return
	}
	f.Logger.Warn().Err(err).Msg("command failed")
	f.Printer.Notify(" ERROR: " + err.Error())
}
