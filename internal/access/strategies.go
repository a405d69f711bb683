package access

import (
	"context"
	"errors"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/policy"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/s3client"
)

// seedBody is the payload of objects the object strategies create.
var seedBody = []byte("access check data")

// removeSeed deletes a strategy's seed object. The key may already be gone,
// and a policy under test may deny the admin actor itself (the admin is the
// bucket owner when a denial targets the owner); neither invalidates the
// classification Do produced, so both are tolerated.
func removeSeed(ctx context.Context, admin Actor, bucket, key string) error {
	err := admin.DeleteObject(ctx, bucket, key)
	if errors.Is(err, s3client.ErrNoSuchKey) || errors.Is(err, s3client.ErrAccessDenied) {
		return nil
	}
	return err
}

// getObjectStrategy seeds an object with the admin client, reads it with
// the client under test and deletes it afterwards.
type getObjectStrategy struct {
	key string
}

func (s *getObjectStrategy) Setup(ctx context.Context, admin Actor, bucket string) error {
	s.key = randutil.UniqueName("obj")
	return admin.PutObject(ctx, bucket, s.key, seedBody)
}

func (s *getObjectStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	_, err := client.GetObject(ctx, bucket, s.key)
	return err
}

func (s *getObjectStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return removeSeed(ctx, admin, bucket, s.key)
}

// putObjectStrategy uploads a fresh object with the client under test. If
// the upload went through, the admin client removes it.
type putObjectStrategy struct {
	key string
}

func (s *putObjectStrategy) Setup(context.Context, Actor, string) error {
	s.key = randutil.UniqueName("obj")
	return nil
}

func (s *putObjectStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	return client.PutObject(ctx, bucket, s.key, seedBody)
}

func (s *putObjectStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return removeSeed(ctx, admin, bucket, s.key)
}

// deleteObjectStrategy seeds an object and deletes it with the client
// under test. Cleanup removes the seed when the delete was denied.
type deleteObjectStrategy struct {
	key string
}

func (s *deleteObjectStrategy) Setup(ctx context.Context, admin Actor, bucket string) error {
	s.key = randutil.UniqueName("obj")
	return admin.PutObject(ctx, bucket, s.key, seedBody)
}

func (s *deleteObjectStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	return client.DeleteObject(ctx, bucket, s.key)
}

func (s *deleteObjectStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return removeSeed(ctx, admin, bucket, s.key)
}

type listBucketStrategy struct{}

func (listBucketStrategy) Setup(context.Context, Actor, string) error { return nil }

func (listBucketStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	_, err := client.ListObjects(ctx, bucket)
	return err
}

func (listBucketStrategy) Cleanup(context.Context, Actor, string) error { return nil }

// deleteBucketStrategy has no cleanup: when the delete is allowed the
// bucket is gone, and the caller owns recreating it.
type deleteBucketStrategy struct{}

func (deleteBucketStrategy) Setup(context.Context, Actor, string) error { return nil }

func (deleteBucketStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	return client.DeleteBucket(ctx, bucket)
}

func (deleteBucketStrategy) Cleanup(context.Context, Actor, string) error { return nil }

// policySnapshot saves the bucket's current policy document during Setup
// and restores it during Cleanup, so policy strategies don't clobber the
// policy the surrounding test is exercising.
type policySnapshot struct {
	saved     string
	hadPolicy bool
}

func (p *policySnapshot) take(ctx context.Context, admin Actor, bucket string) error {
	doc, err := admin.GetBucketPolicy(ctx, bucket)
	if errors.Is(err, s3client.ErrNoSuchBucketPolicy) {
		p.hadPolicy = false
		return nil
	}
	if err != nil {
		return err
	}
	p.saved = doc
	p.hadPolicy = true
	return nil
}

func (p *policySnapshot) restore(ctx context.Context, admin Actor, bucket string) error {
	if p.hadPolicy {
		return admin.PutBucketPolicy(ctx, bucket, p.saved)
	}
	err := admin.DeleteBucketPolicy(ctx, bucket)
	if errors.Is(err, s3client.ErrNoSuchBucketPolicy) {
		return nil
	}
	return err
}

type putBucketPolicyStrategy struct {
	snapshot policySnapshot
}

func (s *putBucketPolicyStrategy) Setup(ctx context.Context, admin Actor, bucket string) error {
	return s.snapshot.take(ctx, admin, bucket)
}

func (s *putBucketPolicyStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	return client.PutBucketPolicy(ctx, bucket, policy.DefaultTemplate().String())
}

func (s *putBucketPolicyStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return s.snapshot.restore(ctx, admin, bucket)
}

// getBucketPolicyStrategy makes sure a policy exists before reading it,
// so NoSuchBucketPolicy can't masquerade as a denial result.
type getBucketPolicyStrategy struct {
	snapshot policySnapshot
}

func (s *getBucketPolicyStrategy) Setup(ctx context.Context, admin Actor, bucket string) error {
	if err := s.snapshot.take(ctx, admin, bucket); err != nil {
		return err
	}
	if !s.snapshot.hadPolicy {
		return admin.PutBucketPolicy(ctx, bucket, policy.DefaultTemplate().String())
	}
	return nil
}

func (s *getBucketPolicyStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	_, err := client.GetBucketPolicy(ctx, bucket)
	return err
}

func (s *getBucketPolicyStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return s.snapshot.restore(ctx, admin, bucket)
}

type deleteBucketPolicyStrategy struct {
	snapshot policySnapshot
}

func (s *deleteBucketPolicyStrategy) Setup(ctx context.Context, admin Actor, bucket string) error {
	if err := s.snapshot.take(ctx, admin, bucket); err != nil {
		return err
	}
	if !s.snapshot.hadPolicy {
		return admin.PutBucketPolicy(ctx, bucket, policy.DefaultTemplate().String())
	}
	return nil
}

func (s *deleteBucketPolicyStrategy) Do(ctx context.Context, client Actor, bucket string) error {
	err := client.DeleteBucketPolicy(ctx, bucket)
	if errors.Is(err, s3client.ErrNoSuchBucketPolicy) {
		return nil
	}
	return err
}

func (s *deleteBucketPolicyStrategy) Cleanup(ctx context.Context, admin Actor, bucket string) error {
	return s.snapshot.restore(ctx, admin, bucket)
}
