package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/looplab/internal/domain"
)

// Fixed filenames inside the workspace. The test source imports the
// learner's code from SourceFileName, and the run config tells the test
// framework to write exactly one JSON report to ReportFileName.
const (
	SourceFileName = "loop.ts"
	TestFileName   = "loop.test.ts"
	ConfigFileName = "vitest.config.ts"
	ReportFileName = "report.json"
)

// runConfig is the execution-configuration file materialized into every
// workspace: single JSON reporter, fixed report path, no watch mode.
const runConfig = `import { defineConfig } from 'vitest/config'
export default defineConfig({
  test: {
    watch: false,
    reporters: ['json'],
    outputFile: '/workspace/` + ReportFileName + `',
  },
})
`

// Workspace is a fresh, private directory materialized for exactly one
// run and deleted afterwards. Workspaces are never shared or reused.
type Workspace struct {
	dir string
}

// NewWorkspace acquires an empty temporary directory
func NewWorkspace() (*Workspace, error) {
	dir, err := os.MkdirTemp("", "looplab-run-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// World-traversable so the container user can read the bind mount
	if err := os.Chmod(dir, 0o755); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("chmod workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace path on the host
func (w *Workspace) Dir() string {
	return w.dir
}

// Materialize writes the three run artifacts: the learner's source under
// its fixed name, the loop's hidden test source unmodified, and the run
// configuration.
func (w *Workspace) Materialize(loop *domain.Loop, sourceCode string) error {
	files := map[string]string{
		SourceFileName: sourceCode,
		TestFileName:   loop.TestCode,
		ConfigFileName: runConfig,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(w.dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// ReadReport reads the report file best-effort. A missing or invalid
// report yields nil; that is a degraded run, not a failure.
func (w *Workspace) ReadReport() json.RawMessage {
	data, err := os.ReadFile(filepath.Join(w.dir, ReportFileName))
	if err != nil {
		return nil
	}
	if !json.Valid(data) {
		return nil
	}
	return json.RawMessage(data)
}

// Release deletes the workspace and everything in it. Safe to call more
// than once.
func (w *Workspace) Release() {
	os.RemoveAll(w.dir)
}
