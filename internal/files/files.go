// Package files resolves stored attachment paths to readable local files.
package files

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver maps a stored attachment path to a readable local file path.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// LocalResolver resolves attachment paths under a fixed root directory.
type LocalResolver struct {
	root string
}

// NewLocalResolver constructs a LocalResolver rooted at dir.
func NewLocalResolver(dir string) *LocalResolver {
	return &LocalResolver{root: dir}
}

// Resolve joins the stored path onto the root, rejecting paths that would
// escape it.
func (r *LocalResolver) Resolve(_ context.Context, path string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	full := filepath.Join(r.root, cleaned)
	if !strings.HasPrefix(full, filepath.Clean(r.root)+string(filepath.Separator)) {
		return "", fmt.Errorf("files: path %q escapes the storage root", path)
	}
	return full, nil
}
