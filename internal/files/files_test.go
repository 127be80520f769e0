package files

import (
	"context"
	"path/filepath"
	"testing"
)

func Test_LocalResolver_Resolve(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := NewLocalResolver(root)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "uploads/report.pdf")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(root, "uploads", "report.pdf"); got != want {
		t.Errorf("want %q, got %q", want, got)
	}

	// Leading slashes are treated as relative to the root.
	got, err = r.Resolve(ctx, "/uploads/report.pdf")
	if err != nil {
		t.Fatalf("resolve absolute-style: %v", err)
	}
	if want := filepath.Join(root, "uploads", "report.pdf"); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func Test_LocalResolver_ContainsTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := NewLocalResolver(root)
	ctx := context.Background()

	// Parent references are rooted, never allowed to climb out.
	got, err := r.Resolve(ctx, "../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(root, "etc", "passwd"); got != want {
		t.Errorf("traversal must stay under the root: got %q", got)
	}

	// Paths that collapse to the root itself are rejected.
	for _, path := range []string{"", "..", "a/../../.."} {
		if _, err := r.Resolve(ctx, path); err == nil {
			t.Errorf("path %q must be rejected", path)
		}
	}
}
