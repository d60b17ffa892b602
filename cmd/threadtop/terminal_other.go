//go:build !linux

package main

import (
	"fmt"

	"github.com/rs/zerolog"
)

// enableSingleView switches to the alternate buffer and hides the cursor.
// Echo control needs linux termios, so suppressEcho is ignored here.
func enableSingleView(suppressEcho bool, log zerolog.Logger) func() {
	fmt.Print("\033[?1049h")
	fmt.Print("\033[?25l")
	return func() {
		fmt.Print("\033[?25h")
		fmt.Print("\033[?1049l")
	}
}
