package e2e_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/nbcli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/policy"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/s3client"
)

// anonymousEnv deletes any pre-existing anonymous account and registers
// cleanup so anonymous state never leaks between tests.
func anonymousEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	if err := env.anonymous.Delete(env.ctx); err != nil {
		t.Fatalf("reset anonymous account: %v", err)
	}
	t.Cleanup(func() {
		_ = env.anonymous.Delete(env.ctx)
	})
	return env
}

func anonUID(v int) *int { return &v }

func TestAnonymousAccountLifecycle(t *testing.T) {
	env := anonymousEnv(t)

	id := nbcli.AnonymousIdentity{UID: anonUID(65534), GID: anonUID(65534)}
	if err := env.anonymous.Create(env.ctx, id); err != nil {
		t.Fatalf("create anonymous account: %v", err)
	}

	err := env.anonymous.Create(env.ctx, id)
	if !errors.Is(err, nbcli.ErrAccountNameTaken) {
		t.Errorf("duplicate create error = %v, want ErrAccountNameTaken", err)
	}

	if err := env.anonymous.Update(env.ctx, nbcli.AnonymousIdentity{UID: anonUID(1000), GID: anonUID(1000)}); err != nil {
		t.Fatalf("update anonymous account: %v", err)
	}
	status, err := env.anonymous.Status(env.ctx)
	if err != nil {
		t.Fatalf("anonymous status: %v", err)
	}
	if status == nil {
		t.Fatal("anonymous status = nil after create")
	}
	if status.NSFSConfig.UID != 1000 || status.NSFSConfig.GID != 1000 {
		t.Errorf("status uid/gid = %d/%d, want 1000/1000", status.NSFSConfig.UID, status.NSFSConfig.GID)
	}

	if err := env.anonymous.Delete(env.ctx); err != nil {
		t.Fatalf("delete anonymous account: %v", err)
	}
	status, err = env.anonymous.Status(env.ctx)
	if err != nil {
		t.Fatalf("anonymous status after delete: %v", err)
	}
	if status != nil {
		t.Errorf("anonymous status after delete = %+v, want nil", status)
	}

	// Deleting again is tolerated.
	if err := env.anonymous.Delete(env.ctx); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestAnonymousClientDeniedBucketCreation(t *testing.T) {
	env := anonymousEnv(t)
	if err := env.anonymous.Create(env.ctx, nbcli.AnonymousIdentity{UID: anonUID(65534), GID: anonUID(65534)}); err != nil {
		t.Fatalf("create anonymous account: %v", err)
	}

	anon := env.anonymousClient()
	_, err := anon.CreateBucket(env.ctx, "")
	if !errors.Is(err, s3client.ErrAccessDenied) {
		t.Errorf("anonymous bucket creation error = %v, want ErrAccessDenied", err)
	}
}

func TestAnonymousAllowedAfterAllowAllPolicy(t *testing.T) {
	env := anonymousEnv(t)
	if err := env.anonymous.Create(env.ctx, nbcli.AnonymousIdentity{UID: anonUID(65534), GID: anonUID(65534)}); err != nil {
		t.Fatalf("create anonymous account: %v", err)
	}
	bucket := env.createBucket()

	allowAll, err := policy.NewBuilder().
		AddAllowStatement().
		AddPrincipal("*").
		AddAction("*").
		AddResource(bucket).
		AddResource(bucket + "/*").
		Build()
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	if err := env.s3.PutBucketPolicy(env.ctx, bucket, allowAll.String()); err != nil {
		t.Fatalf("put bucket policy: %v", err)
	}

	anon := env.anonymousClient()
	key := uniqueKey()
	payload := []byte("anonymous data")

	if err := anon.PutObject(env.ctx, bucket, key, payload); err != nil {
		t.Fatalf("anonymous put: %v", err)
	}
	got, err := anon.GetObject(env.ctx, bucket, key)
	if err != nil {
		t.Fatalf("anonymous get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("anonymous round-trip data mismatch")
	}
	if _, err := anon.ListObjects(env.ctx, bucket); err != nil {
		t.Errorf("anonymous list: %v", err)
	}
	if err := anon.DeleteObject(env.ctx, bucket, key); err != nil {
		t.Errorf("anonymous delete: %v", err)
	}
}
