package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/qcjiangqianchen/bolt.diy/internal/archive"
	"github.com/qcjiangqianchen/bolt.diy/internal/deploy"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// Deployer runs the deploy pipeline. Satisfied by *deploy.Orchestrator.
type Deployer interface {
	Deploy(ctx context.Context, req deploy.Request, logw io.Writer) (*deploy.Result, error)
}

// DeployConfig configures the deploy handler.
type DeployConfig struct {
	Logger log.Logger
	// Deployer runs remote builds. nil disables build/fly-deploy actions.
	Deployer Deployer
	// CallbackOrigin is this server's public origin, injected into the
	// analytics tracer of deployed pages.
	CallbackOrigin string
}

// Deploy handles POST /api/deploy.
type Deploy struct {
	logger   log.Logger
	deployer Deployer
	origin   string
}

// deployRequest is the POST /api/deploy body.
type deployRequest struct {
	Action     string            `json:"action"`
	ImageName  string            `json:"imageName"`
	Files      map[string]string `json:"files"`
	FlyAppName string            `json:"flyAppName"`
	FlyRegion  string            `json:"flyRegion"`
	BoltURL    string            `json:"boltUrl"`
}

// NewDeploy creates the deploy handler.
func NewDeploy(cfg DeployConfig) *Deploy {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Deploy{logger: logger, deployer: cfg.Deployer, origin: cfg.CallbackOrigin}
}

// RegisterRoutes registers the deploy routes on the given mux.
func (d *Deploy) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/deploy", d.Handle)
}

// Handle dispatches on the request's action field: package returns a
// gzip tar of the files, build and fly-deploy stream the deploy log as
// chunked text/plain.
func (d *Deploy) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "files is required")
		return
	}

	switch req.Action {
	case "package":
		d.servePackage(w, req)
	case "build", "fly-deploy":
		d.serveDeploy(w, r, req)
	case "":
		writeError(w, http.StatusBadRequest, "action is required")
	default:
		writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

func (d *Deploy) servePackage(w http.ResponseWriter, req deployRequest) {
	data, err := archive.Build(req.Files)
	if err != nil {
		d.logger.Error("package build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	name := req.ImageName
	if name == "" {
		name = "project"
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".tar.gz"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (d *Deploy) serveDeploy(w http.ResponseWriter, r *http.Request, req deployRequest) {
	if d.deployer == nil {
		writeError(w, http.StatusInternalServerError, "deployment is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logw := &flushWriter{w: w, flusher: flusher}
	result, err := d.deployer.Deploy(r.Context(), deploy.Request{
		AppName:        req.FlyAppName,
		ImageName:      req.ImageName,
		Region:         req.FlyRegion,
		Files:          req.Files,
		CallbackOrigin: d.origin,
		StoredURL:      req.BoltURL,
	}, logw)
	if err != nil {
		d.logger.Warn("deploy failed", "error", err)
		fmt.Fprintln(logw, "DEPLOY FAILED")
		return
	}
	fmt.Fprintf(logw, "DEPLOY SUCCEEDED %s\n", result.URL)
}

// flushWriter flushes after every write so log lines reach the client as
// they arrive.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.flusher.Flush()
	return n, err
}
