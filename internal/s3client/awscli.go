package s3client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// CommandRunner executes a local command with an explicit environment and
// returns combined output. Tests inject fakes to assert on the command
// line the wrapper assembles.
type CommandRunner interface {
	Run(ctx context.Context, name string, args, env []string) ([]byte, error)
}

// execRunner runs real subprocesses.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

func (c *Client) awsCLIPath() string {
	if c.opts.AWSCLIPath != "" {
		return c.opts.AWSCLIPath
	}
	return "aws"
}

// awsCLIEnv builds the credential and TLS environment for an AWS CLI
// invocation using this client's identity.
func (c *Client) awsCLIEnv() []string {
	env := []string{
		"AWS_ACCESS_KEY_ID=" + c.opts.AccessKey,
		"AWS_SECRET_ACCESS_KEY=" + c.opts.SecretKey,
	}
	if c.opts.CABundlePath != "" {
		env = append(env, "AWS_CA_BUNDLE="+c.opts.CABundlePath)
	}
	return env
}

func (c *Client) runAWSCLI(ctx context.Context, args ...string) error {
	args = append(args, "--endpoint-url", c.opts.Endpoint)
	if c.opts.CABundlePath == "" {
		args = append(args, "--no-verify-ssl")
	}
	out, err := c.runner.Run(ctx, c.awsCLIPath(), args, c.awsCLIEnv())
	if err != nil {
		return fmt.Errorf("aws %s: %w: %s", args[1], err, out)
	}
	return nil
}

// Sync mirrors src to dst with `aws s3 sync`. Either side may be a local
// path or an s3:// URL.
func (c *Client) Sync(ctx context.Context, src, dst string) error {
	return c.runAWSCLI(ctx, "s3", "sync", src, dst)
}

// RmRecursive deletes every object under the prefix with
// `aws s3 rm --recursive`. An empty prefix empties the bucket.
func (c *Client) RmRecursive(ctx context.Context, bucket, prefix string) error {
	target := "s3://" + bucket
	if prefix != "" {
		target += "/" + prefix
	}
	return c.runAWSCLI(ctx, "s3", "rm", target, "--recursive")
}
