// Package invoker runs short-lived external tools (resolver, transcoder) with a bounded lifetime.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

// Invocation describes one run of an external tool.
type Invocation struct {
	Tool    string
	Args    []string
	Timeout time.Duration
	// Tools that write files instead of stdout need this, otherwise empty stdout is a failure.
	AllowEmptyOutput bool
	// Path overrides the Invoker's PathResolver for this call.
	Path PathResolver
}

type Invoker struct {
	paths          PathResolver
	defaultTimeout time.Duration
}

type Option func(*Invoker)

func WithDefaultTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		i.defaultTimeout = d
	}
}

func New(paths PathResolver, opts ...Option) *Invoker {
	if paths == nil {
		paths = ToolPaths{}
	}
	i := &Invoker{
		paths:          paths,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Paths returns the default PathResolver.
func (i *Invoker) Paths() PathResolver {
	return i.paths
}

// Check reports every tool that can't be resolved with the default PathResolver.
func (i *Invoker) Check(tools ...string) error {
	return Check(i.paths, tools...)
}

// Run the tool to completion, returning its full stdout. Exactly one of the ErrTimeout, ErrSpawnFailure or
// ErrNonZeroExit families is returned on failure (or the parent context's error if it was cancelled).
func (i *Invoker) Run(ctx context.Context, inv Invocation) (stdout []byte, err error) {
	start := time.Now()
	defer func() {
		metrics.ToolInvocations.WithLabelValues(inv.Tool, metrics.OutcomeOf(err, isTimeout)).Inc()
		metrics.ToolDuration.WithLabelValues(inv.Tool).Observe(time.Since(start).Seconds())
	}()

	resolver := inv.Path
	if resolver == nil {
		resolver = i.paths
	}
	path, err := resolver.ResolvePath(inv.Tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, inv.Tool, err)
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = i.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	cmd := exec.Command(path, inv.Args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	log := video_wall.Logger(ctx).Sugar().Named("invoker").With("tool", inv.Tool)
	log.Debugf("running %s %v", path, inv.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, inv.Tool, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		if killErr := KillGroup(cmd); killErr != nil {
			log.Warnf("failed to kill process group: %v", killErr)
		}
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warnf("timed out after %v", timeout)
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, inv.Tool, timeout)
		}
		return nil, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Tool: inv.Tool, ExitCode: exitErr.ExitCode(), Stderr: errBuf.Bytes()}
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, inv.Tool, err)
	}
	if !inv.AllowEmptyOutput && len(bytes.TrimSpace(outBuf.Bytes())) == 0 {
		return nil, fmt.Errorf("%w from %s", ErrEmptyOutput, inv.Tool)
	}
	log.Debugf("completed in %v", time.Since(start))
	return outBuf.Bytes(), nil
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
