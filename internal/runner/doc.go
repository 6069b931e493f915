// Package runner executes parsed actions against the project runtime.
//
// The runner consumes the parser's ordered action events and drives the
// external runtime: file actions are applied incrementally while their
// content is still streaming (each write carries the full accumulated
// content, overwrite semantics), while shell, build and start actions run
// exactly once, only after their body is complete.
//
// Ordering: the chat handler delivers events for one artifact in emission
// order and the runner executes them synchronously, so an install shell
// action has finished (or failed) before the start action launches the dev
// server. Actions of distinct artifacts may execute concurrently; a
// per-artifact lock serializes within one artifact.
//
// Failures are recorded on the action's status and surfaced to the caller,
// never swallowed; downstream actions are still attempted. Long-running
// start processes are tracked and killed on Abort/Close rather than
// abandoned.
package runner
