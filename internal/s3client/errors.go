package s3client

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Typed errors for the S3 failure modes tests assert on. Every wrapper
// method passes SDK errors through translateError, so callers can use
// errors.Is instead of matching wire codes.
var (
	ErrNoSuchBucket        = errors.New("bucket does not exist")
	ErrNoSuchKey           = errors.New("object does not exist")
	ErrBucketNotEmpty      = errors.New("bucket is not empty")
	ErrBucketAlreadyExists = errors.New("bucket already exists")
	ErrAccessDenied        = errors.New("access denied")
	ErrMalformedPolicy     = errors.New("malformed bucket policy")
	ErrNoSuchBucketPolicy  = errors.New("bucket has no policy")
	ErrNoSuchCORSConfig    = errors.New("bucket has no CORS configuration")
)

// translateError maps S3 API error codes onto the package's typed errors.
// Errors without a known code are returned as-is.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrNoSuchBucket, err)
	case "NoSuchKey":
		return fmt.Errorf("%w: %v", ErrNoSuchKey, err)
	case "BucketNotEmpty":
		return fmt.Errorf("%w: %v", ErrBucketNotEmpty, err)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return fmt.Errorf("%w: %v", ErrBucketAlreadyExists, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	case "MalformedPolicy":
		return fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	case "NoSuchBucketPolicy":
		return fmt.Errorf("%w: %v", ErrNoSuchBucketPolicy, err)
	case "NoSuchCORSConfiguration":
		return fmt.Errorf("%w: %v", ErrNoSuchCORSConfig, err)
	default:
		return err
	}
}
