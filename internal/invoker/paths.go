package invoker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// A PathResolver maps a bare tool name to the executable to run.
type PathResolver interface {
	ResolvePath(tool string) (string, error)
}

// PathResolverFunc adapts a function to PathResolver.
type PathResolverFunc func(tool string) (string, error)

func (f PathResolverFunc) ResolvePath(tool string) (string, error) {
	return f(tool)
}

// ToolPaths prefers an executable bundled in BundleDir, falling back to the search path. Overrides maps a tool name
// to an explicit path, and wins over both.
type ToolPaths struct {
	BundleDir string
	Overrides map[string]string
}

func (p ToolPaths) ResolvePath(tool string) (string, error) {
	if path, ok := p.Overrides[tool]; ok && path != "" {
		return exec.LookPath(path)
	}
	if p.BundleDir != "" {
		bundled := filepath.Join(p.BundleDir, tool)
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return bundled, nil
		}
	}
	return exec.LookPath(tool)
}

// Check resolves every tool, returning one aggregated error naming all that are missing.
func Check(resolver PathResolver, tools ...string) error {
	var result error
	for _, tool := range tools {
		if _, err := resolver.ResolvePath(tool); err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, tool, err))
		}
	}
	return result
}
