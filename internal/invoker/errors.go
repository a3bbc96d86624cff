package invoker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout      = errors.New("tool timed out")
	ErrSpawnFailure = errors.New("tool could not be spawned")
	ErrNonZeroExit  = errors.New("tool exited with failure")
	// ErrEmptyOutput is a kind of ErrNonZeroExit: the tool "succeeded" without producing anything.
	ErrEmptyOutput = fmt.Errorf("%w: empty output", ErrNonZeroExit)
)

// ExitError is returned when a tool exits with a non-zero code, carrying whatever it wrote to stderr.
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   []byte
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(string(e.Stderr))
	if stderr == "" {
		stderr = "unknown error"
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, stderr)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrNonZeroExit
}
