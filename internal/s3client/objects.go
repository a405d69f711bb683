package s3client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
)

// uploadConcurrency bounds parallel object transfers.
const uploadConcurrency = 8

// PutRandomObjects uploads amount objects of random size within
// [minSize, maxSize] to the bucket and returns their keys, obj_0 through
// obj_N-1. When localDir is non-empty the generated files are kept there
// so tests can compare checksums after a download.
func (c *Client) PutRandomObjects(ctx context.Context, bucket string, amount int, minSize, maxSize string, localDir string) ([]string, error) {
	dir := localDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "putobjects")
		if err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	keys, err := randutil.RandomFiles(dir, amount, minSize, maxSize)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return c.PutObjectFromFile(ctx, bucket, key, filepath.Join(dir, key))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// DownloadBucketContents downloads every object in the bucket into dir,
// one file per key.
func (c *Client) DownloadBucketContents(ctx context.Context, bucket, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	keys, err := c.ListObjects(ctx, bucket)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			body, err := c.GetObject(ctx, bucket, key)
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, key), body, 0o644)
		})
	}
	return g.Wait()
}
