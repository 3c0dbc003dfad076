// Package catalog loads workflow definition YAML files, validates them, and
// provides the immutable catalog the evaluation loop runs against. Definitions
// are configuration-as-code: loaded once at process start, fatal on error,
// never mutated at runtime.
package catalog

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recoverops/dunning/model"
)

// File is one parsed workflow definition file.
type File struct {
	Workflows []model.WorkflowDefinition `yaml:"workflows"`

	// Checksum and SourceFile are computed at load time, not part of the YAML.
	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// Loader scans directories for YAML definition files and parses them.
type Loader struct{}

// NewLoader creates a new definition Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into a File.
func (l *Loader) LoadAll(directories []string) ([]File, error) {
	var files []File

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			f, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return files, nil
}

// LoadFile loads and parses a single YAML definition file, computing its
// SHA-256 checksum and recording the source path.
func (l *Loader) LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	f.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	f.SourceFile = path

	return f, nil
}
