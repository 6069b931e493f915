// Package detect infers a project's runtime from a file snapshot.
//
// Detection is a pure function of the file set: the same files always
// yield the same Detection. Deploys compute a fresh one from the current
// snapshot rather than mutating a stored result.
package detect

import "encoding/json"

// Type classifies the project runtime.
type Type string

const (
	TypeNode    Type = "node"
	TypeStatic  Type = "static"
	TypePython  Type = "python"
	TypeUnknown Type = "unknown"
)

// Detection describes the inferred project runtime. Read-only snapshot.
type Detection struct {
	Type           Type
	PackageManager string
	InstallCommand string
	BuildCommand   string
	StartCommand   string
	HasBuildScript bool
	BuildOutputDir string
	Port           int
}

// packageJSON is the subset of package.json the detector reads.
type packageJSON struct {
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Detect inspects a path→content snapshot and infers the project type and
// its install/build/start commands.
func Detect(files map[string]string) Detection {
	if raw, ok := files["package.json"]; ok {
		return detectNode(raw, files)
	}
	if _, ok := files["index.html"]; ok {
		return Detection{
			Type:         TypeStatic,
			StartCommand: "npx serve -l 8080 .",
			Port:         8080,
		}
	}
	if _, ok := files["requirements.txt"]; ok {
		return detectPython(files, true)
	}
	if _, ok := files["main.py"]; ok {
		return detectPython(files, false)
	}
	return Detection{Type: TypeUnknown}
}

func detectNode(raw string, files map[string]string) Detection {
	d := Detection{
		Type:           TypeNode,
		PackageManager: packageManager(files),
		Port:           3000,
	}
	d.InstallCommand = installCommand(d.PackageManager)

	var pkg packageJSON
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		// Unparseable manifest: still a node project, just without
		// script knowledge.
		return d
	}

	dep := func(name string) bool {
		_, a := pkg.Dependencies[name]
		_, b := pkg.DevDependencies[name]
		return a || b
	}

	if _, ok := pkg.Scripts["build"]; ok {
		d.HasBuildScript = true
		d.BuildCommand = runScript(d.PackageManager, "build")
	}
	switch {
	case dep("next"):
		d.BuildOutputDir = ".next"
	case d.HasBuildScript:
		// Vite and most bundlers emit dist by default.
		d.BuildOutputDir = "dist"
	}
	if dep("vite") {
		d.Port = 5173
		if d.HasBuildScript {
			d.BuildOutputDir = "dist"
		}
	}

	switch {
	case hasScript(pkg, "start"):
		d.StartCommand = runScript(d.PackageManager, "start")
	case hasScript(pkg, "dev"):
		d.StartCommand = runScript(d.PackageManager, "dev")
	}
	return d
}

func detectPython(files map[string]string, hasRequirements bool) Detection {
	d := Detection{
		Type:         TypePython,
		StartCommand: "python main.py",
		Port:         8000,
	}
	if hasRequirements {
		d.InstallCommand = "pip install -r requirements.txt"
	}
	if _, ok := files["app.py"]; ok {
		if _, mainExists := files["main.py"]; !mainExists {
			d.StartCommand = "python app.py"
		}
	}
	return d
}

func hasScript(pkg packageJSON, name string) bool {
	_, ok := pkg.Scripts[name]
	return ok
}

// packageManager picks the manager from the lockfile present.
func packageManager(files map[string]string) string {
	switch {
	case has(files, "pnpm-lock.yaml"):
		return "pnpm"
	case has(files, "yarn.lock"):
		return "yarn"
	case has(files, "bun.lockb"), has(files, "bun.lock"):
		return "bun"
	default:
		return "npm"
	}
}

func installCommand(pm string) string {
	if pm == "yarn" {
		return "yarn"
	}
	return pm + " install"
}

func runScript(pm, script string) string {
	if pm == "yarn" {
		return "yarn " + script
	}
	return pm + " run " + script
}

func has(files map[string]string, name string) bool {
	_, ok := files[name]
	return ok
}
