// Package s3client wraps the AWS SDK S3 client for talking to a NooBaa
// NSFS endpoint: path-style addressing, SigV4 with static (or anonymous)
// credentials, and a custom root CA for the endpoint's self-signed
// certificate. A handful of bulk helpers shell out to the AWS CLI.
package s3client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
)

// signingRegion is sent in the SigV4 scope. NSFS accepts any region.
const signingRegion = "us-east-1"

// maxRetryAttempts mirrors the request budget the suite has always used
// against a restarting endpoint.
const maxRetryAttempts = 10

// API is the subset of the S3 service the wrapper uses. *s3.Client
// satisfies it; tests inject stubs.
type API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	PutBucketPolicy(ctx context.Context, params *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
	DeleteBucketPolicy(ctx context.Context, params *s3.DeleteBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketPolicyOutput, error)
	PutBucketCors(ctx context.Context, params *s3.PutBucketCorsInput, optFns ...func(*s3.Options)) (*s3.PutBucketCorsOutput, error)
	GetBucketCors(ctx context.Context, params *s3.GetBucketCorsInput, optFns ...func(*s3.Options)) (*s3.GetBucketCorsOutput, error)
	DeleteBucketCors(ctx context.Context, params *s3.DeleteBucketCorsInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketCorsOutput, error)
}

// PresignAPI is the subset of the presign client the wrapper uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ API        = (*s3.Client)(nil)
	_ PresignAPI = (*s3.PresignClient)(nil)
)

// Options configures a Client.
type Options struct {
	// Endpoint is the S3 endpoint URL, e.g. "https://host:6443".
	Endpoint  string
	AccessKey string
	SecretKey string
	// Anonymous sends unsigned requests; AccessKey/SecretKey are ignored.
	Anonymous bool
	// CABundlePath verifies the endpoint's TLS certificate. When empty,
	// certificate verification is disabled (self-signed lab endpoints).
	CABundlePath string
	// AWSCLIPath is the `aws` binary used for Sync/RmRecursive.
	// Empty means "aws" on PATH.
	AWSCLIPath string
	// Runner executes the AWS CLI. Nil means a real subprocess runner.
	Runner CommandRunner
}

// Client is a blocking S3 client bound to one set of credentials.
type Client struct {
	api     API
	presign PresignAPI
	opts    Options
	runner  CommandRunner
}

// New builds a Client for the endpoint described by opts.
func New(ctx context.Context, opts Options) (*Client, error) {
	tlsCfg, err := tlsConfig(opts.CABundlePath)
	if err != nil {
		return nil, err
	}
	httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		tr.TLSClientConfig = tlsCfg
	})

	credsProvider := aws.CredentialsProvider(aws.AnonymousCredentials{})
	if !opts.Anonymous {
		credsProvider = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(signingRegion),
		awsconfig.WithCredentialsProvider(credsProvider),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxRetryAttempts
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	return &Client{
		api:     api,
		presign: s3.NewPresignClient(api),
		opts:    opts,
		runner:  runner,
	}, nil
}

// NewFromAPI builds a Client over preconstructed API implementations.
// Tests use it to inject stubs.
func NewFromAPI(api API, presign PresignAPI, opts Options) *Client {
	runner := opts.Runner
	if runner == nil {
		runner = execRunner{}
	}
	return &Client{api: api, presign: presign, opts: opts, runner: runner}
}

func tlsConfig(caBundlePath string) (*tls.Config, error) {
	if caBundlePath == "" {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}
	pem, err := os.ReadFile(caBundlePath)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", caBundlePath)
	}
	return &tls.Config{RootCAs: pool}, nil
}

// CreateBucket makes a bucket, generating a unique name when none is
// given, and returns the name.
func (c *Client) CreateBucket(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = randutil.UniqueName("bucket")
	}
	_, err := c.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		return "", translateError(err)
	}
	return name, nil
}

// DeleteBucket removes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	_, err := c.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	return translateError(err)
}

// BucketExists reports whether the bucket is visible to this client.
func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	if translated := translateError(err); errors.Is(translated, ErrNoSuchBucket) {
		return false, nil
	}
	return false, translateError(err)
}

// ListBuckets returns the names of all buckets visible to this client.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translateError(err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// ObjectInfo is summary metadata for one object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListObjects returns the keys of all objects in the bucket, following
// continuation tokens.
func (c *Client) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	infos, err := c.ListObjectsInfo(ctx, bucket)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}

// ListObjectsInfo returns key, size and last-modified for every object in
// the bucket.
func (c *Client) ListObjectsInfo(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	for {
		out, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, translateError(err)
		}
		for _, obj := range out.Contents {
			infos = append(infos, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return infos, nil
}

// PutObject uploads body under key.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return translateError(err)
}

// PutObjectFromFile uploads a local file under key.
func (c *Client) PutObjectFromFile(ctx context.Context, bucket, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return translateError(err)
}

// GetObject downloads an object and returns its body.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return body, nil
}

// CopyObject server-side copies srcBucket/srcKey to dstBucket/dstKey.
func (c *Client) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	return translateError(err)
}

// DeleteObject removes one object.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return translateError(err)
}

// DeleteObjects removes keys in one batch request. Per-key failures from
// the batch reply are folded into the returned error.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}
	out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: ids},
	})
	if err != nil {
		return translateError(err)
	}
	for _, e := range out.Errors {
		return fmt.Errorf("delete %s: %s: %s",
			aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
	}
	return nil
}

// PutBucketPolicy sets the bucket's policy document.
func (c *Client) PutBucketPolicy(ctx context.Context, bucket, policy string) error {
	_, err := c.api.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(policy),
	})
	return translateError(err)
}

// GetBucketPolicy returns the bucket's policy document.
func (c *Client) GetBucketPolicy(ctx context.Context, bucket string) (string, error) {
	out, err := c.api.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", translateError(err)
	}
	return aws.ToString(out.Policy), nil
}

// DeleteBucketPolicy removes the bucket's policy document.
func (c *Client) DeleteBucketPolicy(ctx context.Context, bucket string) error {
	_, err := c.api.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{Bucket: aws.String(bucket)})
	return translateError(err)
}

// PresignGetObject returns a presigned GET URL for the object, valid for
// the given duration.
func (c *Client) PresignGetObject(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", translateError(err)
	}
	return req.URL, nil
}
