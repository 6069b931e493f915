package deploy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// CommandRunner executes one subprocess with its output forwarded to out
// line by line as it arrives. Implementations return the process exit
// code; err is reserved for failures to run at all.
type CommandRunner interface {
	Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) (int, error)
}

// execRunner is the os/exec-backed CommandRunner.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", name, err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	forward := func(r io.Reader) {
		defer wg.Done()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			mu.Lock()
			fmt.Fprintln(out, sc.Text())
			mu.Unlock()
		}
	}
	wg.Add(2)
	go forward(stdout)
	go forward(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait %s: %w", name, err)
	}
	return 0, nil
}
