// Package loop loads exercise content from YAML files and serves it from
// an in-memory registry. Content is read-only for the grading pipeline;
// hidden test sources never leave the server.
package loop

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/looplab/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoopFile represents the YAML structure for a loop
type LoopFile struct {
	Title      string          `yaml:"title"`
	Spec       []string        `yaml:"spec"`
	Exports    []string        `yaml:"exports"`
	HintBudget int             `yaml:"hint_budget"`
	Docs       []domain.DocRef `yaml:"docs"`
	Starter    string          `yaml:"starter"`
	Tests      string          `yaml:"tests"`
}

// Loader handles loading loops from YAML files
type Loader struct {
	basePath string
}

// NewLoader creates a new loop loader
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadLoop loads a single loop. The id is the file's path relative to
// the base directory without its extension, e.g. "ts-v1/filter-adults".
func (l *Loader) LoadLoop(id string) (*domain.Loop, error) {
	path := filepath.Join(l.basePath, filepath.FromSlash(id)+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read loop file: %w", err)
	}

	var file LoopFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse loop file %s: %w", id, err)
	}

	if file.Tests == "" {
		return nil, fmt.Errorf("loop %s has no test source", id)
	}
	if file.HintBudget < 0 {
		return nil, fmt.Errorf("loop %s has a negative hint budget", id)
	}

	return &domain.Loop{
		ID:              id,
		Title:           file.Title,
		SpecLines:       file.Spec,
		ExpectedExports: file.Exports,
		HintBudget:      file.HintBudget,
		DocRefs:         file.Docs,
		StarterCode:     file.Starter,
		TestCode:        file.Tests,
	}, nil
}

// LoadAll walks the base directory and loads every .yaml file it finds
func (l *Loader) LoadAll() ([]*domain.Loop, error) {
	var loops []*domain.Loop

	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(strings.TrimSuffix(rel, ".yaml"))

		loop, err := l.LoadLoop(id)
		if err != nil {
			return fmt.Errorf("load loop %s: %w", id, err)
		}
		loops = append(loops, loop)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk loops directory: %w", err)
	}

	return loops, nil
}
