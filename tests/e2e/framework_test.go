// Package e2e_test contains integration tests that drive a real standalone
// NooBaa server: admin operations over SSH through the management CLI, and
// data-plane operations over S3.
//
// The server address comes from the usual config file or NOOBAA_CI_*
// environment variables. When no host is configured every test skips, so
// `go test ./...` stays green on machines without a lab server.
package e2e_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/access"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/nbcli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/s3client"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/sshconn"
)

// testTimeout bounds each test's remote operations.
const testTimeout = 5 * time.Minute

// testEnv is one test's window onto the server: an SSH connection, the
// CLI-backed managers over it, and an S3 client for a dedicated fresh
// account. Everything it creates is torn down through t.Cleanup.
type testEnv struct {
	t   *testing.T
	ctx context.Context

	cfg       *config.Config
	conn      *sshconn.Connection
	accounts  *nbcli.AccountManager
	anonymous *nbcli.AnonymousManager
	buckets   *nbcli.BucketManager
	server    *nbcli.Server

	accountName string
	creds       nbcli.Credentials
	s3          *s3client.Client
}

// newTestEnv connects to the configured server and provisions a fresh
// account with an S3 client bound to it. Skips the test when no server is
// configured.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	configDir := os.Getenv("NOOBAA_CI_CONFIG_DIR")
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host == "" {
		t.Skip("no server configured (set NOOBAA_CI_HOST or the config file)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	conn, err := sshconn.Dial(cfg)
	if err != nil {
		t.Fatalf("connect to %s: %v", cfg.Host, err)
	}
	t.Cleanup(func() { conn.Close() })

	log := logging.Nop()
	env := &testEnv{
		t:         t,
		ctx:       ctx,
		cfg:       cfg,
		conn:      conn,
		accounts:  nbcli.NewAccountManager(conn, cfg, log),
		anonymous: nbcli.NewAnonymousManager(conn, cfg, log),
		buckets:   nbcli.NewBucketManager(conn, cfg, log),
		server:    nbcli.NewServer(conn, cfg, log),
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := env.buckets.Cleanup(cleanupCtx); err != nil {
			t.Logf("bucket cleanup: %v", err)
		}
		if err := env.accounts.Cleanup(cleanupCtx); err != nil {
			t.Logf("account cleanup: %v", err)
		}
	})

	env.accountName, env.creds = env.createAccount()
	env.s3 = env.clientFor(env.creds)
	return env
}

// createAccount provisions a fresh account and returns its name and keys.
func (e *testEnv) createAccount() (string, nbcli.Credentials) {
	e.t.Helper()
	name, creds, err := e.accounts.Create(e.ctx, "", nbcli.Credentials{}, nbcli.CreateOptions{})
	if err != nil {
		e.t.Fatalf("create account: %v", err)
	}
	return name, creds
}

// clientFor returns an S3 client signing with the given credentials.
func (e *testEnv) clientFor(creds nbcli.Credentials) *s3client.Client {
	e.t.Helper()
	client, err := s3client.New(e.ctx, s3client.Options{
		Endpoint:     e.cfg.Endpoint(),
		AccessKey:    creds.AccessKey,
		SecretKey:    creds.SecretKey,
		CABundlePath: e.cfg.TLSCertPath,
		AWSCLIPath:   e.cfg.AWSCLIPath,
	})
	if err != nil {
		e.t.Fatalf("build S3 client: %v", err)
	}
	return client
}

// anonymousClient returns an S3 client sending unsigned requests.
func (e *testEnv) anonymousClient() *s3client.Client {
	e.t.Helper()
	client, err := s3client.New(e.ctx, s3client.Options{
		Endpoint:     e.cfg.Endpoint(),
		Anonymous:    true,
		CABundlePath: e.cfg.TLSCertPath,
		AWSCLIPath:   e.cfg.AWSCLIPath,
	})
	if err != nil {
		e.t.Fatalf("build anonymous S3 client: %v", err)
	}
	return client
}

// createBucket makes a bucket through the S3 data plane with the env's
// account and registers deletion cleanup.
func (e *testEnv) createBucket() string {
	e.t.Helper()
	name, err := e.s3.CreateBucket(e.ctx, "")
	if err != nil {
		e.t.Fatalf("create bucket: %v", err)
	}
	e.t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = e.s3.RmRecursive(cleanupCtx, name, "")
		_ = e.s3.DeleteBucket(cleanupCtx, name)
	})
	return name
}

// accessTester returns a tester whose admin actor is this env's account.
func (e *testEnv) accessTester() *access.Tester {
	return access.NewTester(e.s3)
}

// uniqueKey returns a fresh object key.
func uniqueKey() string {
	return randutil.UniqueName("obj")
}
