package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/flowedit/pkg/flow"
	"github.com/dshills/flowedit/pkg/validation"
)

// FilesystemFlowRepository stores flows as YAML files named after the flow,
// under <base>/flows/
type FilesystemFlowRepository struct {
	baseDir string
}

// NewFilesystemFlowRepository creates a repository rooted at baseDir.
// It ensures the flows directory exists.
func NewFilesystemFlowRepository(baseDir string) (*FilesystemFlowRepository, error) {
	flowsDir := filepath.Join(baseDir, "flows")

	if err := os.MkdirAll(flowsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create flows directory: %w", err)
	}

	return &FilesystemFlowRepository{baseDir: flowsDir}, nil
}

// Dir returns the directory flow files are kept in
func (r *FilesystemFlowRepository) Dir() string {
	return r.baseDir
}

// Save writes the flow to <name>.yaml, replacing any previous version.
// The write is atomic: a temp file is renamed over the target.
func (r *FilesystemFlowRepository) Save(g *flow.Graph) error {
	if g == nil {
		return fmt.Errorf("cannot save nil flow")
	}
	if err := validation.ValidateName(g.Name); err != nil {
		return fmt.Errorf("invalid flow name: %w", err)
	}

	g.LastModified = time.Now().UTC()
	data, err := flow.Marshal(g)
	if err != nil {
		return err
	}

	filePath := r.flowPath(g.Name)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write flow file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save flow file: %w", err)
	}

	return nil
}

// Load reads the flow with the given name
func (r *FilesystemFlowRepository) Load(name string) (*flow.Graph, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("invalid flow name: %w", err)
	}

	data, err := os.ReadFile(r.flowPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", flow.ErrFlowNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	g, err := flow.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", name, err)
	}
	return g, nil
}

// Exists reports whether a flow with the given name is stored
func (r *FilesystemFlowRepository) Exists(name string) bool {
	if validation.ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(r.flowPath(name))
	return err == nil
}

// Delete removes the flow with the given name
func (r *FilesystemFlowRepository) Delete(name string) error {
	if err := validation.ValidateName(name); err != nil {
		return fmt.Errorf("invalid flow name: %w", err)
	}

	err := os.Remove(r.flowPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", flow.ErrFlowNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete flow file: %w", err)
	}
	return nil
}

// List returns the names of the stored flows in sorted order
func (r *FilesystemFlowRepository) List() ([]string, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flows directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		if validation.ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *FilesystemFlowRepository) flowPath(name string) string {
	return filepath.Join(r.baseDir, name+".yaml")
}
