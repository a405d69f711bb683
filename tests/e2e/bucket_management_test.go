package e2e_test

import (
	"errors"
	"path"
	"slices"
	"testing"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/nbcli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
)

// TestBucketLifecycleViaCLI drives the full management-CLI bucket
// lifecycle: create, list, status, rename and re-path through update,
// then delete.
func TestBucketLifecycleViaCLI(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.accounts.Status(env.ctx, env.accountName)
	if err != nil {
		t.Fatalf("account status: %v", err)
	}
	baseDir := status.NSFSConfig.NewBucketsPath

	name := randutil.UniqueName("bucket")
	fsPath := path.Join(baseDir, name)
	if _, err := env.buckets.Create(env.ctx, name, env.accountName, fsPath); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	t.Cleanup(func() { _ = env.buckets.Cleanup(env.ctx) })

	names, err := env.buckets.List(env.ctx)
	if err != nil {
		t.Fatalf("list buckets: %v", err)
	}
	if !slices.Contains(names, name) {
		t.Fatalf("bucket %s not in list %v", name, names)
	}

	bs, err := env.buckets.Status(env.ctx, name)
	if err != nil {
		t.Fatalf("bucket status: %v", err)
	}
	if bs.Name != name {
		t.Errorf("status name = %q, want %q", bs.Name, name)
	}
	if bs.Owner != env.accountName {
		t.Errorf("status owner = %q, want %q", bs.Owner, env.accountName)
	}
	if bs.Path != fsPath {
		t.Errorf("status path = %q, want %q", bs.Path, fsPath)
	}

	// Rename, verify the old name is gone, then rename back.
	renamed := randutil.UniqueName("bucket")
	if err := env.buckets.Update(env.ctx, name, map[string]any{"new_name": renamed}); err != nil {
		t.Fatalf("rename bucket: %v", err)
	}
	if bs, err = env.buckets.Status(env.ctx, renamed); err != nil {
		t.Fatalf("status after rename: %v", err)
	}
	if bs.Name != renamed {
		t.Errorf("renamed status name = %q, want %q", bs.Name, renamed)
	}
	if _, err := env.buckets.Status(env.ctx, name); !errors.Is(err, nbcli.ErrBucketStatus) {
		t.Errorf("status of old name = %v, want ErrBucketStatus", err)
	}
	if err := env.buckets.Update(env.ctx, renamed, map[string]any{"new_name": name}); err != nil {
		t.Fatalf("rename back: %v", err)
	}

	// Point the bucket at a different directory.
	newPath := path.Join(baseDir, name+"-moved")
	if res, err := env.conn.Exec(env.ctx, "sudo mkdir -p "+newPath); err != nil || res.Code != 0 {
		t.Fatalf("create new path: %v %s", err, res.Stderr)
	}
	if err := env.buckets.Update(env.ctx, name, map[string]any{"path": newPath}); err != nil {
		t.Fatalf("update path: %v", err)
	}
	if bs, err = env.buckets.Status(env.ctx, name); err != nil {
		t.Fatalf("status after path update: %v", err)
	}
	if bs.Path != newPath {
		t.Errorf("updated path = %q, want %q", bs.Path, newPath)
	}

	if err := env.buckets.Delete(env.ctx, name); err != nil {
		t.Fatalf("delete bucket: %v", err)
	}
	names, err = env.buckets.List(env.ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if slices.Contains(names, name) {
		t.Errorf("deleted bucket %s still in list %v", name, names)
	}
}
