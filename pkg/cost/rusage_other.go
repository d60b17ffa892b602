//go:build !unix

package cost

import (
	"errors"
	"time"
)

func selfCPUTime() (time.Duration, error) {
	return 0, errors.New("process cpu time requires a unix platform")
}
