// Package file stores graphs as documents in a local directory, one
// `<name>.json` or `<name>.yaml` file per graph.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// DefaultDir is used when New is given an empty path.
var DefaultDir = filepath.Join(".arbor", "graphs")

// Store implements ports.GraphStore on the local filesystem.
// New graphs are written in Format; existing files keep their own format.
type Store struct {
	BasePath string
	Format   codec.Format
}

// New creates a Store rooted at basePath, writing JSON by default.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath, Format: codec.FormatJSON}
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("graph name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid graph name %q", name)
	}
	return nil
}

// find returns the existing document for name, trying every known extension.
func (s *Store) find(name string) (string, bool) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.BasePath, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Save writes the graph atomically: temp file, fsync, then rename.
func (s *Store) Save(ctx context.Context, name string, g *domain.Graph) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure graph directory: %w", err)
	}

	destPath, ok := s.find(name)
	if !ok {
		destPath = filepath.Join(s.BasePath, name+"."+string(s.Format))
	}
	format, err := codec.FormatFromPath(destPath)
	if err != nil {
		return err
	}
	data, err := codec.MarshalFormat(g, format)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing graph file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the graph document stored under name.
func (s *Store) Load(ctx context.Context, name string) (*domain.Graph, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	path, ok := s.find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}
	return LoadFile(path)
}

// LoadFile reads a single graph document, picking the format from its extension.
func LoadFile(path string) (*domain.Graph, error) {
	format, err := codec.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, path)
		}
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	g, err := codec.UnmarshalFormat(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// SaveFile writes a single graph document, picking the format from its extension.
func SaveFile(path string, g *domain.Graph) error {
	format, err := codec.FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := codec.MarshalFormat(g, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Delete removes the graph document. A missing graph is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	path, ok := s.find(name)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete graph file: %w", err)
	}
	return nil
}

// List returns the names of every graph document, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := codec.FormatFromPath(entry.Name()); err != nil {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Watch implements ports.Watchable. It signals whenever a graph document in
// the directory is written, created, renamed or removed. Temp files written
// by Save are ignored; the final rename is what signals.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure graph directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("graph watcher: %w", err)
	}
	if err := w.Add(s.BasePath); err != nil {
		w.Close()
		return nil, fmt.Errorf("graph watcher add %s: %w", s.BasePath, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(ev) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func relevant(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if _, err := codec.FormatFromPath(base); err != nil {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
