package e2e_test

import (
	"context"
	"testing"
	"time"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/wait"
)

// TestServiceRestartRecovers restarts the NSFS service and verifies the
// S3 endpoint serves existing buckets again once the unit is active.
func TestServiceRestartRecovers(t *testing.T) {
	env := newTestEnv(t)
	bucket := env.createBucket()

	if err := env.server.RestartService(env.ctx); err != nil {
		t.Fatalf("restart service: %v", err)
	}

	// The unit reports active before the endpoint accepts connections.
	err := wait.For(env.ctx, 2*time.Second, time.Minute, func(ctx context.Context) (bool, error) {
		exists, err := env.s3.BucketExists(ctx, bucket)
		if err != nil {
			return false, nil
		}
		return exists, nil
	})
	if err != nil {
		t.Fatalf("endpoint did not recover: %v", err)
	}
}
