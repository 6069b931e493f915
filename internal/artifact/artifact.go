package artifact

// Kind distinguishes the artifact presentation type.
type Kind string

const (
	// KindNormal is a project artifact rendered inside the chat flow.
	KindNormal Kind = "normal"
	// KindStandalone is an artifact rendered as its own unit.
	KindStandalone Kind = "standalone"
)

// ActionType identifies one of the five action variants.
type ActionType string

const (
	TypeFile   ActionType = "file"
	TypeShell  ActionType = "shell"
	TypeStart  ActionType = "start"
	TypeBuild  ActionType = "build"
	TypeDeploy ActionType = "deploy"
)

// Action is the closed union over the five action variants.
//
// The only implementations are FileAction, ShellAction, StartAction,
// BuildAction and DeployAction; the unexported method keeps the set closed.
type Action interface {
	Type() ActionType
	isAction()
}

// FileAction writes a file into the live project.
// Content streams in while the assistant response is still arriving;
// each delivery carries the full accumulated content so far.
type FileAction struct {
	FilePath string
	Content  string
}

// ShellAction runs a one-shot shell command (installs, codegen, ...).
type ShellAction struct {
	Command string
}

// StartAction launches the project's long-running dev server.
// The assistant emits it last within an artifact.
type StartAction struct {
	Command string
}

// BuildAction runs the project build.
type BuildAction struct {
	Command string
}

// DeployAction triggers a deployment of the current project files.
type DeployAction struct {
	Source string // deployment source hint ("project" by default)
	Stage  string // target stage ("production", "preview", ...)
}

func (FileAction) Type() ActionType   { return TypeFile }
func (ShellAction) Type() ActionType  { return TypeShell }
func (StartAction) Type() ActionType  { return TypeStart }
func (BuildAction) Type() ActionType  { return TypeBuild }
func (DeployAction) Type() ActionType { return TypeDeploy }

func (FileAction) isAction()   {}
func (ShellAction) isAction()  {}
func (StartAction) isAction()  {}
func (BuildAction) isAction()  {}
func (DeployAction) isAction() {}

// Status is the execution lifecycle state of an action.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. Terminal states never transition; aborting is
// legal from any non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusAborted || next == StatusFailed
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

// Artifact is one assistant-emitted project unit.
type Artifact struct {
	ID        string
	MessageID string
	Title     string
	Kind      Kind
	Closed    bool

	// ActionIDs lists the artifact's actions in emission order.
	ActionIDs []string
}
