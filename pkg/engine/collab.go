package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

// FileStat resolves resource sizes. The file-size condition degrades to
// satisfied when no implementation is wired or the lookup fails.
type FileStat interface {
	Size(uri string) (int64, error)
}

// Workspace reports whether a resource lives under the workspace root.
// The workspace-root condition degrades to satisfied when no implementation
// is wired or the lookup fails.
type Workspace interface {
	Contains(uri string) (bool, error)
}

// ActivityLog is the lookback consulted by the recent-activity condition.
type ActivityLog interface {
	HasRecentActivity(uri string, op types.Operation, since time.Time) bool
}

// OSFileStat stats the local file system.
type OSFileStat struct{}

func (OSFileStat) Size(uri string) (int64, error) {
	fi, err := os.Stat(uriToPath(uri))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// RootWorkspace anchors workspace membership at a single root directory.
type RootWorkspace struct {
	root string
}

func NewRootWorkspace(root string) *RootWorkspace {
	return &RootWorkspace{root: filepath.Clean(root)}
}

// Contains checks that the path resolves inside the root, rejecting
// traversal out of it.
func (w *RootWorkspace) Contains(uri string) (bool, error) {
	if w.root == "" || w.root == "." {
		return false, fmt.Errorf("workspace root not configured")
	}

	path := filepath.Clean(uriToPath(uri))
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false, fmt.Errorf("invalid path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

// uriToPath strips a file:// prefix so both URIs and plain paths work.
func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
