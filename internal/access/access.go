// Package access answers "can this S3 client perform that operation on
// this bucket?" for bucket-policy tests. Each supported operation has a
// strategy that seeds whatever the call needs, performs it with the
// client under test, and restores the bucket afterwards.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/s3client"
)

// ErrUnsupportedOperation is returned for operation names with no
// registered strategy.
var ErrUnsupportedOperation = errors.New("operation not supported")

// Actor is the S3 surface the strategies drive, for both the privileged
// admin client and the client under test. *s3client.Client satisfies it.
type Actor interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket string) ([]string, error)
	DeleteBucket(ctx context.Context, bucket string) error
	PutBucketPolicy(ctx context.Context, bucket, policy string) error
	GetBucketPolicy(ctx context.Context, bucket string) (string, error)
	DeleteBucketPolicy(ctx context.Context, bucket string) error
}

var _ Actor = (*s3client.Client)(nil)

// strategy is one operation's test recipe. Setup and Cleanup run with the
// admin client, Do runs with the client under test.
type strategy interface {
	Setup(ctx context.Context, admin Actor, bucket string) error
	Do(ctx context.Context, client Actor, bucket string) error
	Cleanup(ctx context.Context, admin Actor, bucket string) error
}

// strategies maps S3 operation names to their recipes. The names match
// the Action names used in bucket policy documents, without the "s3:"
// prefix.
var strategies = map[string]func() strategy{
	"GetObject":          func() strategy { return &getObjectStrategy{} },
	"PutObject":          func() strategy { return &putObjectStrategy{} },
	"DeleteObject":       func() strategy { return &deleteObjectStrategy{} },
	"ListBucket":         func() strategy { return &listBucketStrategy{} },
	"DeleteBucket":       func() strategy { return &deleteBucketStrategy{} },
	"PutBucketPolicy":    func() strategy { return &putBucketPolicyStrategy{} },
	"GetBucketPolicy":    func() strategy { return &getBucketPolicyStrategy{} },
	"DeleteBucketPolicy": func() strategy { return &deleteBucketPolicyStrategy{} },
}

// SupportedOperations returns the operation names the tester knows.
func SupportedOperations() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	return names
}

// Tester checks operation access on buckets. The admin actor must have
// full access to the buckets under test; it seeds and restores state
// around each check.
type Tester struct {
	admin Actor
}

// NewTester returns a Tester using admin for setup and cleanup.
func NewTester(admin Actor) *Tester {
	return &Tester{admin: admin}
}

// Check reports whether client may perform the named operation on the
// bucket. A clean call means allowed; AccessDenied means denied; any
// other failure, in setup, the operation itself, or cleanup, is returned
// as an error.
func (t *Tester) Check(ctx context.Context, client Actor, bucket, operation string) (bool, error) {
	newStrategy, ok := strategies[operation]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperation, operation)
	}
	s := newStrategy()

	if err := s.Setup(ctx, t.admin, bucket); err != nil {
		return false, fmt.Errorf("setup %s: %w", operation, err)
	}

	opErr := s.Do(ctx, client, bucket)

	if err := s.Cleanup(ctx, t.admin, bucket); err != nil {
		return false, fmt.Errorf("cleanup %s: %w", operation, err)
	}

	switch {
	case opErr == nil:
		return true, nil
	case errors.Is(opErr, s3client.ErrAccessDenied):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", operation, opErr)
	}
}
