package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnknownDirectory      = errors.New("unknown directory")
	ErrNoRootsConfigured     = errors.New("no paths configured for directory")
	ErrDestinationNotAllowed = errors.New("destination path is not allowed")
	ErrEmptyFilename         = errors.New("filename must not be empty")
)

// Registry maps logical model-type buckets ("checkpoints", "loras", ...)
// to their ordered candidate filesystem roots. Destination validation
// against these roots is the security boundary of the download endpoint.
type Registry struct {
	folders map[string][]string
}

// New builds a registry from a folders map, resolving every root to an
// absolute path. Buckets with no roots are rejected.
func New(folders map[string][]string) (*Registry, error) {
	resolved := make(map[string][]string, len(folders))

	for name, roots := range folders {
		if len(roots) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoRootsConfigured, name)
		}

		absRoots := make([]string, 0, len(roots))

		for _, root := range roots {
			abs, err := filepath.Abs(root)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
			}

			absRoots = append(absRoots, abs)
		}

		resolved[name] = absRoots
	}

	return &Registry{folders: resolved}, nil
}

// Lookup returns the ordered candidate roots for a logical directory.
func (r *Registry) Lookup(directory string) ([]string, error) {
	roots, ok := r.folders[directory]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDirectory, directory)
	}

	return roots, nil
}

// Directories returns all known logical directory names.
func (r *Registry) Directories() []string {
	names := make([]string, 0, len(r.folders))
	for name := range r.folders {
		names = append(names, name)
	}

	return names
}

// Resolve validates the requested destination against the roots of the
// logical directory and returns the absolute target file path. An empty
// destination falls back to the first configured root. The filename is
// reduced to its base name so a crafted name cannot escape the root.
func (r *Registry) Resolve(directory, destination, filename string) (string, error) {
	roots, err := r.Lookup(directory)
	if err != nil {
		return "", err
	}

	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", ErrEmptyFilename
	}

	destDir := roots[0]

	if destination != "" {
		destDir, err = filepath.Abs(destination)
		if err != nil {
			return "", fmt.Errorf("failed to resolve destination %q: %w", destination, err)
		}

		if !allowed(destDir, roots) {
			return "", fmt.Errorf("%w: %q", ErrDestinationNotAllowed, destination)
		}
	}

	return filepath.Join(destDir, base), nil
}

// allowed reports whether dir equals one of the roots or lies beneath one.
func allowed(dir string, roots []string) bool {
	for _, root := range roots {
		if dir == root {
			return true
		}

		rel, err := filepath.Rel(root, dir)
		if err != nil {
			continue
		}

		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}

	return false
}
