package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_ViteProject(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"package.json": `{
			"scripts": {"dev": "vite", "build": "vite build"},
			"devDependencies": {"vite": "^5.0.0"}
		}`,
		"index.html":   "<html></html>",
		"src/main.tsx": "export {}",
	}

	d := Detect(files)

	assert.Equal(t, TypeNode, d.Type)
	assert.Equal(t, "npm", d.PackageManager)
	assert.Equal(t, "npm install", d.InstallCommand)
	assert.True(t, d.HasBuildScript)
	assert.Equal(t, "npm run build", d.BuildCommand)
	assert.Equal(t, "dist", d.BuildOutputDir)
	assert.Equal(t, "npm run dev", d.StartCommand)
	assert.Equal(t, 5173, d.Port)
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"package.json": `{"scripts":{"build":"vite build"},"devDependencies":{"vite":"^5"}}`,
	}

	first := Detect(files)
	for range 10 {
		assert.Equal(t, first, Detect(files))
	}
	assert.Equal(t, "dist", first.BuildOutputDir)
	assert.True(t, first.HasBuildScript)
}

func TestDetect_PackageManagers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lockfile string
		pm       string
		install  string
		build    string
	}{
		{"pnpm", "pnpm-lock.yaml", "pnpm", "pnpm install", "pnpm run build"},
		{"yarn", "yarn.lock", "yarn", "yarn", "yarn build"},
		{"bun", "bun.lockb", "bun", "bun install", "bun run build"},
		{"npm fallback", "", "npm", "npm install", "npm run build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files := map[string]string{
				"package.json": `{"scripts":{"build":"tsc"}}`,
			}
			if tt.lockfile != "" {
				files[tt.lockfile] = ""
			}

			d := Detect(files)
			assert.Equal(t, tt.pm, d.PackageManager)
			assert.Equal(t, tt.install, d.InstallCommand)
			assert.Equal(t, tt.build, d.BuildCommand)
		})
	}
}

func TestDetect_Next(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{
		"package.json": `{
			"scripts": {"build": "next build", "start": "next start"},
			"dependencies": {"next": "14.0.0", "react": "18.0.0"}
		}`,
	})

	assert.Equal(t, TypeNode, d.Type)
	assert.Equal(t, ".next", d.BuildOutputDir)
	assert.Equal(t, 3000, d.Port)
	assert.Equal(t, "npm run start", d.StartCommand)
}

func TestDetect_StaticSite(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{
		"index.html": "<html><body>hi</body></html>",
		"style.css":  "body {}",
	})

	assert.Equal(t, TypeStatic, d.Type)
	assert.Equal(t, 8080, d.Port)
	assert.False(t, d.HasBuildScript)
	assert.Empty(t, d.PackageManager)
}

func TestDetect_Python(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{
		"requirements.txt": "flask\n",
		"main.py":          "print('hi')\n",
	})

	assert.Equal(t, TypePython, d.Type)
	assert.Equal(t, "pip install -r requirements.txt", d.InstallCommand)
	assert.Equal(t, "python main.py", d.StartCommand)
	assert.Equal(t, 8000, d.Port)
}

func TestDetect_PythonAppEntrypoint(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{"app.py": "", "requirements.txt": ""})
	assert.Equal(t, "python app.py", d.StartCommand)
}

func TestDetect_Unknown(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{"README.md": "# hi"})
	assert.Equal(t, TypeUnknown, d.Type)
}

func TestDetect_MalformedPackageJSON(t *testing.T) {
	t.Parallel()

	d := Detect(map[string]string{"package.json": "{not json"})
	assert.Equal(t, TypeNode, d.Type)
	assert.False(t, d.HasBuildScript)
	assert.Empty(t, d.StartCommand)
}
