package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
	"github.com/qcjiangqianchen/bolt.diy/internal/parser"
)

var (
	// ErrUnknownAction is returned when an action id was never registered.
	ErrUnknownAction = errors.New("unknown action")

	// ErrCommandFailed is returned when a shell or build command exits
	// non-zero.
	ErrCommandFailed = errors.New("command failed")

	// ErrNoDeployTrigger is returned when a deploy action arrives but no
	// trigger was configured.
	ErrNoDeployTrigger = errors.New("no deploy trigger configured")
)

// Runtime is the external file-system and process-execution service the
// runner drives. Implementations must honor context cancellation by
// terminating the underlying process, not merely returning early.
type Runtime interface {
	// WriteFile creates or overwrites a workspace-relative file.
	WriteFile(ctx context.Context, path, content string) error

	// Run executes a one-shot command, forwarding combined output to out,
	// and returns its exit code. A non-zero exit is not an error here;
	// err reports only failures to run at all.
	Run(ctx context.Context, command string, out io.Writer) (int, error)

	// Start launches a long-running command and returns a handle to it.
	Start(ctx context.Context, command string, out io.Writer) (Process, error)
}

// Process is a handle to a long-running runtime process.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error
	// Kill terminates the process and its children.
	Kill() error
}

// DeployTrigger is invoked for deploy actions. The runner itself knows
// nothing about deployment; the orchestrator is wired in at setup.
type DeployTrigger func(ctx context.Context, artifactID string, action artifact.DeployAction) error

// Option configures a Runner.
type Option func(*Runner)

// WithDeployTrigger wires the deployment callback.
func WithDeployTrigger(fn DeployTrigger) Option {
	return func(r *Runner) { r.deploy = fn }
}

// WithOutput sets the writer receiving command output. Default: io.Discard.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// record is one entry of the action table. Only the runner mutates it.
type record struct {
	id         string
	artifactID string
	action     artifact.Action
	status     artifact.Status
	err        error
	proc       Process
}

// Runner owns the action table and the execution of actions.
// It is safe for concurrent use.
type Runner struct {
	mu        sync.Mutex
	actions   map[string]*record
	order     []string
	artifacts map[string]*sync.Mutex // per-artifact execution lock
	watchers  sync.WaitGroup         // start-process wait goroutines

	rt     Runtime
	deploy DeployTrigger
	out    io.Writer
	logger *slog.Logger
}

// New creates a Runner. A nil logger falls back to slog.Default().
func New(rt Runtime, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		actions:   make(map[string]*record),
		artifacts: make(map[string]*sync.Mutex),
		rt:        rt,
		out:       io.Discard,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAction registers an action in the table. Registration is idempotent
// per action id: a duplicate updates the payload of a still-pending record
// and never causes a second execution.
func (r *Runner) AddAction(ev parser.ActionOpen) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.actions[ev.ActionID]; ok {
		if rec.status == artifact.StatusPending {
			rec.action = ev.Action
		}
		return
	}
	r.actions[ev.ActionID] = &record{
		id:         ev.ActionID,
		artifactID: ev.ArtifactID,
		action:     ev.Action,
		status:     artifact.StatusPending,
	}
	r.order = append(r.order, ev.ActionID)
	r.logger.Debug("action registered",
		"action_id", ev.ActionID, "artifact_id", ev.ArtifactID, "type", string(ev.Action.Type()))
}

// Apply routes a parser event to the matching runner operation. It is the
// single-subscriber entry point used by the chat handler; artifact events
// are not the runner's concern and pass through unchanged.
func (r *Runner) Apply(ctx context.Context, ev parser.Event) error {
	switch e := ev.(type) {
	case parser.ActionOpen:
		r.AddAction(e)
		return nil
	case parser.ActionStream:
		return r.RunAction(ctx, e.ActionID, artifact.FileAction{
			FilePath: r.filePath(e.ActionID),
			Content:  e.Content,
		}, true)
	case parser.ActionClose:
		return r.RunAction(ctx, e.ActionID, e.Action, false)
	default:
		return nil
	}
}

func (r *Runner) filePath(actionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.actions[actionID]; ok {
		if f, ok := rec.action.(artifact.FileAction); ok {
			return f.FilePath
		}
	}
	return ""
}

// RunAction executes an action against the runtime.
//
// For file actions with streaming=true the full accumulated content so far
// is written (overwrite, not append) and the action stays running. With
// streaming=false the action receives its final payload: file actions
// write once more and complete; shell/build actions execute exactly once;
// start actions launch the managed process; deploy actions invoke the
// configured trigger.
//
// A failed command marks the action failed and returns an error wrapping
// ErrCommandFailed; the caller decides whether downstream actions still
// run (they should).
func (r *Runner) RunAction(ctx context.Context, actionID string, action artifact.Action, streaming bool) error {
	rec, lock, err := r.claim(actionID, action, streaming)
	if err != nil || rec == nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	switch a := rec.action.(type) {
	case artifact.FileAction:
		return r.runFile(ctx, rec, a, streaming)
	case artifact.ShellAction:
		return r.runCommand(ctx, rec, a.Command)
	case artifact.BuildAction:
		return r.runCommand(ctx, rec, a.Command)
	case artifact.StartAction:
		return r.runStart(ctx, rec, a.Command)
	case artifact.DeployAction:
		return r.runDeploy(ctx, rec, a)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
}

// claim validates the action and transitions it to running under the
// table lock. Returns a nil record for duplicate terminal deliveries,
// which are no-ops rather than errors.
func (r *Runner) claim(actionID string, action artifact.Action, streaming bool) (*record, *sync.Mutex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.actions[actionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
	if rec.status.Terminal() {
		r.logger.Debug("ignoring delivery for terminal action",
			"action_id", actionID, "status", string(rec.status))
		return nil, nil, nil
	}
	if _, isFile := rec.action.(artifact.FileAction); !isFile && streaming {
		return nil, nil, fmt.Errorf("streaming delivery for non-file action %q", actionID)
	}
	if rec.status == artifact.StatusRunning && !streaming {
		if _, isFile := rec.action.(artifact.FileAction); !isFile {
			// Exactly-once: a running command is never re-executed.
			return nil, nil, nil
		}
	}
	rec.action = action
	if rec.status == artifact.StatusPending {
		rec.status = artifact.StatusRunning
	}

	lock, ok := r.artifacts[rec.artifactID]
	if !ok {
		lock = &sync.Mutex{}
		r.artifacts[rec.artifactID] = lock
	}
	return rec, lock, nil
}

func (r *Runner) runFile(ctx context.Context, rec *record, a artifact.FileAction, streaming bool) error {
	if err := r.rt.WriteFile(ctx, a.FilePath, a.Content); err != nil {
		r.finish(rec, artifact.StatusFailed, err)
		return fmt.Errorf("write %s: %w", a.FilePath, err)
	}
	if !streaming {
		r.finish(rec, artifact.StatusComplete, nil)
	}
	return nil
}

func (r *Runner) runCommand(ctx context.Context, rec *record, command string) error {
	r.logger.Info("running command", "action_id", rec.id, "command", command)
	exit, err := r.rt.Run(ctx, command, r.out)
	if err != nil {
		r.finish(rec, artifact.StatusFailed, err)
		return fmt.Errorf("run %q: %w", command, err)
	}
	if exit != 0 {
		err := fmt.Errorf("%w: %q exited with code %d", ErrCommandFailed, command, exit)
		r.finish(rec, artifact.StatusFailed, err)
		return err
	}
	r.finish(rec, artifact.StatusComplete, nil)
	return nil
}

func (r *Runner) runStart(ctx context.Context, rec *record, command string) error {
	r.logger.Info("starting dev process", "action_id", rec.id, "command", command)
	proc, err := r.rt.Start(ctx, command, r.out)
	if err != nil {
		r.finish(rec, artifact.StatusFailed, err)
		return fmt.Errorf("start %q: %w", command, err)
	}

	r.mu.Lock()
	rec.proc = proc
	r.mu.Unlock()

	// The action stays running while the process lives; the watcher
	// records the terminal status when it exits.
	r.watchers.Add(1)
	go func() {
		defer r.watchers.Done()
		waitErr := proc.Wait()
		r.mu.Lock()
		defer r.mu.Unlock()
		if rec.status.Terminal() {
			return // aborted meanwhile
		}
		if waitErr != nil {
			rec.status = artifact.StatusFailed
			rec.err = waitErr
			r.logger.Warn("dev process exited with error", "action_id", rec.id, "error", waitErr)
			return
		}
		rec.status = artifact.StatusComplete
		r.logger.Info("dev process exited", "action_id", rec.id)
	}()
	return nil
}

func (r *Runner) runDeploy(ctx context.Context, rec *record, a artifact.DeployAction) error {
	if r.deploy == nil {
		r.finish(rec, artifact.StatusFailed, ErrNoDeployTrigger)
		return ErrNoDeployTrigger
	}
	if err := r.deploy(ctx, rec.artifactID, a); err != nil {
		r.finish(rec, artifact.StatusFailed, err)
		return fmt.Errorf("deploy: %w", err)
	}
	r.finish(rec, artifact.StatusComplete, nil)
	return nil
}

func (r *Runner) finish(rec *record, status artifact.Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.status.Terminal() {
		return
	}
	rec.status = status
	rec.err = err
}

// Status returns the current status of an action.
func (r *Runner) Status(actionID string) (artifact.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.actions[actionID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
	return rec.status, nil
}

// Err returns the recorded failure of an action, if any.
func (r *Runner) Err(actionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.actions[actionID]; ok {
		return rec.err
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
}

// Abort marks all non-terminal actions of an artifact aborted and kills
// their processes. Used when the user navigates away or restarts.
func (r *Runner) Abort(artifactID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		rec := r.actions[id]
		if rec.artifactID != artifactID || rec.status.Terminal() {
			continue
		}
		r.kill(rec)
	}
}

// Close aborts everything and waits for process watchers to drain.
func (r *Runner) Close() error {
	r.mu.Lock()
	for _, id := range r.order {
		if rec := r.actions[id]; !rec.status.Terminal() {
			r.kill(rec)
		}
	}
	r.mu.Unlock()
	r.watchers.Wait()
	return nil
}

// kill transitions a record to aborted and terminates its process.
// Caller must hold r.mu.
func (r *Runner) kill(rec *record) {
	rec.status = artifact.StatusAborted
	if rec.proc != nil {
		if err := rec.proc.Kill(); err != nil {
			r.logger.Warn("killing process", "action_id", rec.id, "error", err)
		}
	}
	r.logger.Debug("action aborted", "action_id", rec.id)
}
