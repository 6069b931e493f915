// Package deploy drives a Fly.io deployment of a generated project:
// provision the app, run a remote build, and report the public URL,
// streaming flyctl output to the caller's log as it arrives.
package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	stdpath "path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/qcjiangqianchen/bolt.diy/internal/analytics"
	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
	"github.com/qcjiangqianchen/bolt.diy/internal/config"
	"github.com/qcjiangqianchen/bolt.diy/internal/deploygen"
	"github.com/qcjiangqianchen/bolt.diy/internal/detect"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

var (
	// ErrNoFiles is returned for a deploy request with an empty file set.
	ErrNoFiles = errors.New("deploy: no files to deploy")
	// ErrProvision is returned when the app could not be created.
	ErrProvision = errors.New("deploy: provisioning failed")
	// ErrDeploy is returned when the remote build failed.
	ErrDeploy = errors.New("deploy: build failed")
	// ErrTimeout is returned when the pipeline exceeded its deadline.
	ErrTimeout = errors.New("deploy: timed out")
)

// successPhrases gate deploy success: a zero flyctl exit code counts only
// when one of these appears in the accumulated output. Coupled to current
// flyctl wording; known fragility.
var successPhrases = []string{
	"visit your newly deployed app",
	"successfully deployed",
	"deployment is complete",
	"machine started",
}

// provisionExistsPhrases mark an idempotent re-create of an existing app.
var provisionExistsPhrases = []string{
	"already been taken",
	"already exists",
}

// Request describes one deploy invocation.
type Request struct {
	// AppName is the exact remote app name. When empty it is recovered
	// from StoredURL, or minted fresh from ImageName.
	AppName string
	// ImageName is the project slug used when minting a fresh name.
	ImageName string
	Region    string
	Files     map[string]string
	// CallbackOrigin, when set, has the page-view tracer injected into
	// the HTML entry point pointing back at it.
	CallbackOrigin string
	// StoredURL is the URL of a previous deploy of this project.
	StoredURL string
}

// Result is the structured outcome of a successful deploy.
type Result struct {
	AppName string `json:"appName"`
	URL     string `json:"url"`
	Status  string `json:"status"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCommandRunner replaces the subprocess backend. Tests use this.
func WithCommandRunner(r CommandRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// Orchestrator runs the provision, build and report pipeline.
type Orchestrator struct {
	cfg    config.DeployConfig
	runner CommandRunner
	logger log.Logger
}

// New creates an Orchestrator. A nil logger falls back to slog.Default().
func New(cfg config.DeployConfig, logger log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Deploy runs the full pipeline, streaming progress text to logw. The
// temp build dir is removed on every outcome. On failure a
// troubleshooting hint block is appended to the log before returning.
func (o *Orchestrator) Deploy(ctx context.Context, req Request, logw io.Writer) (result *Result, err error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	appName := o.resolveAppName(req)
	region := req.Region
	if region == "" {
		region = o.cfg.Region
	}

	dir := filepath.Join(os.TempDir(), "boltd-deploy-"+uuid.NewString())
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			o.logger.Warn("build dir cleanup failed", "dir", dir, "error", rmErr)
		}
		if err != nil {
			writeHint(logw, err)
		}
	}()

	o.logger.Info("deploy started", "app", appName, "region", region, "files", len(req.Files))
	fmt.Fprintf(logw, "Preparing %s for deployment...\n", appName)

	if err := o.writeBundle(dir, req, appName, region); err != nil {
		return nil, err
	}

	if err := o.provision(ctx, dir, appName, logw); err != nil {
		return nil, err
	}
	if err := o.build(ctx, dir, appName, logw); err != nil {
		return nil, err
	}

	url := "https://" + appName + "." + o.cfg.Domain
	fmt.Fprintf(logw, "\nDeployed: %s\n", url)
	o.logger.Info("deploy finished", "app", appName, "url", url)
	return &Result{AppName: appName, URL: url, Status: "success"}, nil
}

func (o *Orchestrator) resolveAppName(req Request) string {
	if req.AppName != "" {
		return req.AppName
	}
	if name := AppNameFromURL(req.StoredURL); name != "" {
		return name
	}
	return NewAppName(req.ImageName)
}

// isEntryHTML reports whether a bundle path is a servable entry point
// that should carry the analytics tracer. Paths are slash-separated;
// static bundles commonly nest the entry under public/ or src/.
func isEntryHTML(path string) bool {
	return stdpath.Base(path) == "index.html"
}

// writeBundle materializes the file set plus generated deployment
// artifacts into the build dir.
func (o *Orchestrator) writeBundle(dir string, req Request, appName, region string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}

	d := detect.Detect(req.Files)
	for path, content := range req.Files {
		if err := artifact.ValidateFilePath(path); err != nil {
			o.logger.Warn("skipping invalid path in deploy bundle", "path", path)
			continue
		}
		if req.CallbackOrigin != "" && isEntryHTML(path) {
			content = analytics.InjectTracer(content, req.CallbackOrigin, appName)
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o640); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	generated := map[string]string{
		"Dockerfile":    deploygen.Dockerfile(d),
		".dockerignore": deploygen.Dockerignore(),
		"fly.toml":      deploygen.FlyToml(appName, region, d),
	}
	for name, content := range generated {
		if _, provided := req.Files[name]; provided {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func (o *Orchestrator) provision(ctx context.Context, dir, appName string, logw io.Writer) error {
	fmt.Fprintf(logw, "Creating app %s...\n", appName)

	var buf bytes.Buffer
	exit, err := o.runner.Run(ctx, dir, io.MultiWriter(logw, &buf),
		o.cfg.FlyctlPath, "apps", "create", appName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvision, err)
	}
	if exit != 0 {
		if containsAny(buf.String(), provisionExistsPhrases) {
			fmt.Fprintf(logw, "App %s already exists, deploying update...\n", appName)
			return nil
		}
		return fmt.Errorf("%w: flyctl apps create exited %d", ErrProvision, exit)
	}
	return nil
}

func (o *Orchestrator) build(ctx context.Context, dir, appName string, logw io.Writer) error {
	fmt.Fprintln(logw, "Starting remote build...")

	var buf bytes.Buffer
	exit, err := o.runner.Run(ctx, dir, io.MultiWriter(logw, &buf),
		o.cfg.FlyctlPath, "deploy", "--remote-only", "--app", appName)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, o.cfg.Timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeploy, err)
	}
	if exit != 0 {
		return fmt.Errorf("%w: flyctl deploy exited %d", ErrDeploy, exit)
	}
	if !containsAny(buf.String(), successPhrases) {
		return fmt.Errorf("%w: flyctl exited 0 without reporting a deployment", ErrDeploy)
	}
	return nil
}

func containsAny(s string, phrases []string) bool {
	s = strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func writeHint(w io.Writer, err error) {
	fmt.Fprintf(w, "\nDeployment failed: %v\n", err)
	fmt.Fprintln(w, `
Troubleshooting:
  - Check that flyctl is installed and authenticated (flyctl auth whoami).
  - Confirm the app name is available or owned by your account.
  - Review the build log above for Dockerfile errors.
  - Retry; remote builders are occasionally flaky.`)
}
