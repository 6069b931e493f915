// Package runtime provides the local project runtime: a workspace
// directory for materialized files plus shell execution for the project's
// install/build/dev commands.
//
// LocalRuntime is the boundary implementation of the runner's Runtime
// interface. A sandboxed container runtime would implement the same
// interface; nothing above this package knows which one is in use.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
	"github.com/qcjiangqianchen/bolt.diy/internal/runner"
)

// ErrOutsideWorkspace is returned when a path escapes the workspace root.
var ErrOutsideWorkspace = errors.New("path escapes workspace")

// maxSnapshotFileSize skips files larger than this from Snapshot; project
// sources are small, anything bigger is build output or media.
const maxSnapshotFileSize = 1 << 20

// killGracePeriod is how long a canceled command may linger before the
// process group is forcibly killed.
const killGracePeriod = 5 * time.Second

// DefaultIgnoreDirs are directory names excluded from snapshots.
var DefaultIgnoreDirs = []string{"node_modules", ".git", "dist", ".next", "build", "__pycache__", ".venv"}

// LocalRuntime executes actions against a workspace directory on the
// local machine.
type LocalRuntime struct {
	root   string
	logger *slog.Logger
}

var _ runner.Runtime = (*LocalRuntime)(nil)

// NewLocal creates a LocalRuntime rooted at dir, creating it if needed.
// A nil logger falls back to slog.Default().
func NewLocal(dir string, logger *slog.Logger) (*LocalRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", dir, err)
	}
	return &LocalRuntime{root: abs, logger: logger}, nil
}

// Root returns the absolute workspace directory.
func (l *LocalRuntime) Root() string { return l.root }

// resolve maps a workspace-relative path to an absolute one, rejecting
// anything that would land outside the root.
func (l *LocalRuntime) resolve(path string) (string, error) {
	if err := artifact.ValidateFilePath(path); err != nil {
		return "", err
	}
	abs := filepath.Join(l.root, filepath.FromSlash(path))
	if abs != l.root && !strings.HasPrefix(abs, l.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideWorkspace, path)
	}
	return abs, nil
}

// WriteFile creates or overwrites a workspace file, creating parent
// directories as needed.
func (l *LocalRuntime) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return fmt.Errorf("creating parent of %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the content of a workspace file.
func (l *LocalRuntime) ReadFile(path string) (string, error) {
	abs, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// command builds the exec.Cmd for a shell command rooted in the
// workspace. Cancellation kills the whole process group so children of
// the shell (dev servers spawn plenty) die too.
func (l *LocalRuntime) command(ctx context.Context, command string, out io.Writer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = l.root
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = killGracePeriod
	setProcGroup(cmd)
	return cmd
}

// Run executes a one-shot command and returns its exit code. A non-zero
// exit is reported via the code, not the error.
func (l *LocalRuntime) Run(ctx context.Context, command string, out io.Writer) (int, error) {
	cmd := l.command(ctx, command, out)
	l.logger.Debug("exec", "command", command, "dir", l.root)
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("exec %q: %w", command, err)
	}
}

// Start launches a long-running command and returns its handle.
func (l *LocalRuntime) Start(ctx context.Context, command string, out io.Writer) (runner.Process, error) {
	cmd := l.command(ctx, command, out)
	l.logger.Info("starting process", "command", command, "dir", l.root)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	return &localProcess{cmd: cmd}, nil
}

type localProcess struct {
	cmd *exec.Cmd
}

func (p *localProcess) Wait() error { return p.cmd.Wait() }

func (p *localProcess) Kill() error {
	return killProcGroup(p.cmd)
}

// Snapshot collects the workspace files as a path→content map, skipping
// the given directory names (DefaultIgnoreDirs when nil) and files over
// maxSnapshotFileSize. Paths use forward slashes relative to the root.
func (l *LocalRuntime) Snapshot(ignoreDirs []string) (map[string]string, error) {
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	skip := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		skip[d] = true
	}

	files := make(map[string]string)
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxSnapshotFileSize {
			l.logger.Debug("snapshot skipping large file", "path", path, "size", info.Size())
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", l.root, err)
	}
	return files, nil
}
