// Package artifact defines the project units emitted by the assistant.
//
// An Artifact is one assistant-generated project unit: an ordered list of
// Actions (file writes, shell commands, a start command, build and deploy
// triggers) plus identity and title. Artifacts are parsed out of the
// assistant's streamed markup by internal/parser and executed by
// internal/runner.
//
// The Action variants form a closed union: every action is exactly one of
// FileAction, ShellAction, StartAction, BuildAction or DeployAction, and
// each variant carries only its own fields. Switching on Action and
// handling the five concrete types covers all cases.
//
// Registry is the per-session, append-only table of artifacts. Artifacts
// are created on open, updated on duplicate open, closed on close, and
// never removed while the session lives.
//
// Thread safety: Registry is safe for concurrent use. Artifact and the
// Action variants are plain values; callers must not mutate an Artifact
// obtained from a Registry.
package artifact
