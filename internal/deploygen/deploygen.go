// Package deploygen renders deployment artifacts (Dockerfile, compose
// file, fly.toml) as text from a project detection.
package deploygen

import (
	"strings"
	"text/template"

	"github.com/qcjiangqianchen/bolt.diy/internal/detect"
)

var dockerfileNode = template.Must(template.New("dockerfile-node").Parse(`FROM node:20-slim

WORKDIR /app

COPY package*.json ./
{{- if .Lockfile}}
COPY {{.Lockfile}} ./
{{- end}}
RUN {{.InstallCommand}}

COPY . .
{{- if .HasBuildScript}}

RUN {{.BuildCommand}}
{{- end}}

ENV HOST=0.0.0.0
ENV PORT={{.Port}}
EXPOSE {{.Port}}

CMD [{{.CMD}}]
`))

var dockerfileStatic = template.Must(template.New("dockerfile-static").Parse(`FROM node:20-slim

WORKDIR /app

RUN npm install -g serve

COPY . .

ENV HOST=0.0.0.0
ENV PORT={{.Port}}
EXPOSE {{.Port}}

CMD ["serve", "-l", "{{.Port}}", "."]
`))

var dockerfilePython = template.Must(template.New("dockerfile-python").Parse(`FROM python:3.12-slim

WORKDIR /app

COPY . .
{{- if .InstallCommand}}
RUN {{.InstallCommand}}
{{- end}}

ENV HOST=0.0.0.0
ENV PORT={{.Port}}
EXPOSE {{.Port}}

CMD [{{.CMD}}]
`))

var composeTemplate = template.Must(template.New("compose").Parse(`services:
  {{.Service}}:
    build: .
    ports:
      - "{{.Port}}:{{.Port}}"
    environment:
      - HOST=0.0.0.0
      - PORT={{.Port}}
    restart: unless-stopped
`))

var flyTomlTemplate = template.Must(template.New("fly-toml").Parse(`app = "{{.App}}"
primary_region = "{{.Region}}"

[build]

[env]
  HOST = "0.0.0.0"
  PORT = "{{.Port}}"

[http_service]
  internal_port = {{.Port}}
  force_https = true
  auto_stop_machines = true
  auto_start_machines = true
  min_machines_running = 0

[[vm]]
  memory = "512mb"
  cpu_kind = "shared"
  cpus = 1
`))

type dockerfileData struct {
	Lockfile       string
	InstallCommand string
	BuildCommand   string
	HasBuildScript bool
	Port           int
	CMD            string
}

// Dockerfile renders a Dockerfile for the detected project.
func Dockerfile(d detect.Detection) string {
	data := dockerfileData{
		InstallCommand: d.InstallCommand,
		BuildCommand:   d.BuildCommand,
		HasBuildScript: d.HasBuildScript,
		Port:           port(d),
		CMD:            jsonCommand(startCommand(d)),
		Lockfile:       lockfile(d.PackageManager),
	}

	var b strings.Builder
	switch d.Type {
	case detect.TypeStatic:
		_ = dockerfileStatic.Execute(&b, data)
	case detect.TypePython:
		_ = dockerfilePython.Execute(&b, data)
	default:
		_ = dockerfileNode.Execute(&b, data)
	}
	return b.String()
}

// Compose renders a docker compose file for local runs of the bundle.
func Compose(d detect.Detection, appName string) string {
	service := appName
	if service == "" {
		service = "app"
	}
	var b strings.Builder
	_ = composeTemplate.Execute(&b, struct {
		Service string
		Port    int
	}{Service: service, Port: port(d)})
	return b.String()
}

// Dockerignore returns the standard ignore list bundled with every deploy.
func Dockerignore() string {
	return `node_modules
dist
.next
build
.git
.env
*.log
__pycache__
`
}

// FlyToml renders the Fly.io app config; internal_port matches the
// Dockerfile's EXPOSE.
func FlyToml(appName, region string, d detect.Detection) string {
	var b strings.Builder
	_ = flyTomlTemplate.Execute(&b, struct {
		App    string
		Region string
		Port   int
	}{App: appName, Region: region, Port: port(d)})
	return b.String()
}

func port(d detect.Detection) int {
	if d.Port > 0 {
		return d.Port
	}
	return 3000
}

func startCommand(d detect.Detection) string {
	if d.StartCommand != "" {
		return d.StartCommand
	}
	switch d.Type {
	case detect.TypePython:
		return "python main.py"
	default:
		return "npm run start"
	}
}

func lockfile(pm string) string {
	switch pm {
	case "pnpm":
		return "pnpm-lock.yaml"
	case "yarn":
		return "yarn.lock"
	case "bun":
		return "bun.lockb"
	default:
		return ""
	}
}

// jsonCommand renders a shell command as a Dockerfile exec-form CMD list.
func jsonCommand(command string) string {
	parts := strings.Fields(command)
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, `"`+p+`"`)
	}
	return strings.Join(quoted, ", ")
}
