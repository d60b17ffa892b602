// Package logging sets up the file logger. The terminal is owned by the
// rendered frames, so diagnostics never go to stdout.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	logDirEnvVar   = "THREADTOP_LOG_DIR"
	logFileEnvVar  = "THREADTOP_LOG_FILE"
	defaultLogName = "threadtop.log"
)

var (
	executable = os.Executable
	getwd      = os.Getwd
	tempDir    = os.TempDir
)

// Setup opens the log file and returns a logger writing to it. An empty
// path resolves from the environment, then the first writable directory of
// the executable's directory, the working directory and the temp directory.
func Setup(path string, debug bool) (zerolog.Logger, func() error, string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = defaultPaths()
	}
	logFile, path, err := openFirst(candidates)
	if err != nil {
		return zerolog.Nop(), nil, "", err
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(logFile).Level(level).With().Timestamp().Logger()

	closeFn := func() error {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
		return nil
	}
	return logger, closeFn, path, nil
}

// defaultPaths lists log locations in order of preference. A location
// named by the environment is the only candidate.
func defaultPaths() []string {
	if path := os.Getenv(logFileEnvVar); path != "" {
		return []string{path}
	}
	if dir := os.Getenv(logDirEnvVar); dir != "" {
		return []string{filepath.Join(dir, defaultLogName)}
	}

	var dirs []string
	if exe, err := executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if cwd, err := getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	dirs = append(dirs, tempDir())

	paths := make([]string, len(dirs))
	for i, dir := range dirs {
		paths[i] = filepath.Join(dir, defaultLogName)
	}
	return paths
}

// openFirst opens the first path whose directory can be created and whose
// file can be appended to.
func openFirst(paths []string) (*os.File, string, error) {
	var errs []error
	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("creating log dir: %w", err))
			continue
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			errs = append(errs, fmt.Errorf("opening log file: %w", err))
			continue
		}
		return f, path, nil
	}
	return nil, "", errors.Join(errs...)
}
