package nbcli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
)

// Key lengths the server expects for S3 credentials.
const (
	AccessKeyLen = 20
	SecretKeyLen = 40
)

// DefaultFSBackend is the filesystem backend recorded on new accounts.
const DefaultFSBackend = "GPFS"

// AccountManager creates, lists, updates and deletes named accounts
// through the management CLI. It tracks the accounts it created so test
// fixtures can tear them down.
type AccountManager struct {
	runner Runner
	cfg    *config.Config
	log    logging.Logger

	created []string
}

// NewAccountManager returns a manager bound to the given remote runner.
// A nil logger disables operation logging.
func NewAccountManager(runner Runner, cfg *config.Config, log logging.Logger) *AccountManager {
	if log == nil {
		log = logging.Nop()
	}
	return &AccountManager{runner: runner, cfg: cfg, log: log}
}

// Credentials is an access/secret key pair owned by a test account.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// CreateOptions tunes account creation. The zero value gives a regular
// account allowed to create buckets on the default backend.
type CreateOptions struct {
	ConfigRoot         string
	FSBackend          string
	DenyBucketCreation bool
}

// accountSpec is the account definition JSON uploaded to the server and
// passed to `account add --from_file`.
type accountSpec struct {
	Name                string          `json:"name"`
	AccessKeys          []accessKeyPair `json:"access_keys"`
	NSFSConfig          nsfsSpec        `json:"nsfs_account_config"`
	AllowBucketCreation bool            `json:"allow_bucket_creation"`
}

type accessKeyPair struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

type nsfsSpec struct {
	UID            int    `json:"uid"`
	GID            int    `json:"gid"`
	NewBucketsPath string `json:"new_buckets_path"`
	FSBackend      string `json:"fs_backend,omitempty"`
}

// Create provisions a named account. Empty name or credentials are filled
// in with generated values, which are returned. The per-account bucket
// root directory is created on the remote filesystem first.
func (m *AccountManager) Create(ctx context.Context, name string, creds Credentials, opts CreateOptions) (string, Credentials, error) {
	if name == "" {
		name = randutil.UniqueName("account")
	}
	if creds.AccessKey == "" {
		creds.AccessKey = randutil.Hex(AccessKeyLen)
	}
	if creds.SecretKey == "" {
		creds.SecretKey = randutil.Hex(SecretKeyLen)
	}
	if opts.ConfigRoot == "" {
		opts.ConfigRoot = m.cfg.ConfigRoot
	}
	if opts.FSBackend == "" {
		opts.FSBackend = DefaultFSBackend
	}

	home, err := m.runner.HomeDir(ctx)
	if err != nil {
		return "", Credentials{}, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}
	bucketPath := path.Join(home, "fs_"+name)
	if res, err := m.runner.Exec(ctx, "sudo mkdir -p "+bucketPath); err != nil {
		return "", Credentials{}, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	} else if res.Code != 0 {
		return "", Credentials{}, fmt.Errorf("%w: create bucket path: %s", ErrAccountCreation, res.Stderr)
	}

	spec := accountSpec{
		Name:       name,
		AccessKeys: []accessKeyPair{{AccessKey: creds.AccessKey, SecretKey: creds.SecretKey}},
		NSFSConfig: nsfsSpec{
			NewBucketsPath: bucketPath,
			FSBackend:      opts.FSBackend,
		},
		AllowBucketCreation: !opts.DenyBucketCreation,
	}
	remotePath, err := m.uploadSpec(spec)
	if err != nil {
		return "", Credentials{}, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}

	cmd := fmt.Sprintf("sudo %s account add --config_root %s --from_file %s",
		m.cfg.NoobaaCLIPath, opts.ConfigRoot, remotePath)
	res, err := runLogged(ctx, m.runner, m.log, "AccountAdd", cmd)
	if err != nil {
		return "", Credentials{}, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}
	if res.Code != 0 {
		return "", Credentials{}, wrapCLIFailure(ErrAccountCreation, res.Stdout)
	}

	m.created = append(m.created, name)
	return name, creds, nil
}

// uploadSpec writes the account definition to a local temp file and
// uploads it to the same path on the remote host.
func (m *AccountManager) uploadSpec(spec accountSpec) (string, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal account spec: %w", err)
	}

	f, err := os.CreateTemp("", "account_*.json")
	if err != nil {
		return "", fmt.Errorf("create temp spec file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp spec file: %w", err)
	}
	f.Close()

	if err := m.runner.Upload(f.Name(), f.Name()); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// List returns the names of all accounts known to the server.
func (m *AccountManager) List(ctx context.Context) ([]string, error) {
	cmd := fmt.Sprintf("sudo %s account list --config_root %s",
		m.cfg.NoobaaCLIPath, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AccountList", cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountList, err)
	}
	if res.Code != 0 {
		return nil, wrapCLIFailure(ErrAccountList, res.Stdout)
	}

	var entries []struct {
		Name string `json:"name"`
	}
	if err := parseReply(res.Stdout, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountList, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// Delete removes an account by name.
func (m *AccountManager) Delete(ctx context.Context, name string) error {
	cmd := fmt.Sprintf("sudo %s account delete --name %s --config_root %s",
		m.cfg.NoobaaCLIPath, name, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AccountDelete", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountDeletion, err)
	}
	if res.Code != 0 {
		return wrapCLIFailure(ErrAccountDeletion, res.Stdout)
	}

	for i, tracked := range m.created {
		if tracked == name {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
	return nil
}

// Update applies the given flag/value pairs to an account. Booleans are
// lowercased the way the CLI expects. Flags are emitted in sorted order so
// the command line is deterministic.
func (m *AccountManager) Update(ctx context.Context, name string, params map[string]any) error {
	cmd := fmt.Sprintf("sudo %s account update --name %s%s --config_root %s",
		m.cfg.NoobaaCLIPath, name, formatUpdateFlags(params), m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AccountUpdate", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountUpdate, err)
	}
	if res.Code != 0 {
		return wrapCLIFailure(ErrAccountUpdate, res.Stdout)
	}

	// Keep cleanup tracking accurate across renames.
	if newName, ok := params["new_name"].(string); ok {
		for i, tracked := range m.created {
			if tracked == name {
				m.created[i] = newName
				break
			}
		}
	}
	return nil
}

// AccountStatus is the server's view of a single account.
type AccountStatus struct {
	Name                string          `json:"name"`
	AllowBucketCreation bool            `json:"allow_bucket_creation"`
	AccessKeys          []accessKeyPair `json:"access_keys"`
	NSFSConfig          NSFSConfig      `json:"nsfs_account_config"`
}

// NSFSConfig is the filesystem identity an account maps S3 requests to.
type NSFSConfig struct {
	UID               int    `json:"uid"`
	GID               int    `json:"gid"`
	DistinguishedName string `json:"distinguished_name,omitempty"`
	NewBucketsPath    string `json:"new_buckets_path,omitempty"`
	FSBackend         string `json:"fs_backend,omitempty"`
}

// Status returns the config data of an account, secrets included.
func (m *AccountManager) Status(ctx context.Context, name string) (*AccountStatus, error) {
	cmd := fmt.Sprintf("sudo %s account status --name %s --show_secrets --config_root %s",
		m.cfg.NoobaaCLIPath, name, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AccountStatus", cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountStatus, err)
	}
	if res.Code != 0 {
		return nil, wrapCLIFailure(ErrAccountStatus, res.Stdout)
	}

	status := &AccountStatus{}
	if err := parseReply(res.Stdout, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountStatus, err)
	}
	return status, nil
}

// Created returns the names of accounts this manager created and has not
// yet deleted, oldest first.
func (m *AccountManager) Created() []string {
	out := make([]string, len(m.created))
	copy(out, m.created)
	return out
}

// Cleanup deletes every account this manager still tracks. The first
// error is returned after attempting all deletions.
func (m *AccountManager) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, name := range m.Created() {
		if err := m.Delete(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// formatUpdateFlags renders update parameters as CLI flags, sorted by key.
func formatUpdateFlags(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := params[k]
		if boolVal, ok := v.(bool); ok {
			v = strings.ToLower(fmt.Sprintf("%t", boolVal))
		}
		fmt.Fprintf(&b, " --%s %v", k, v)
	}
	return b.String()
}

// wrapCLIFailure wraps a sentinel error around CLI stdout, upgrading to
// the more specific sentinel when the output names a known condition.
func wrapCLIFailure(sentinel error, stdout string) error {
	trimmed := strings.TrimSpace(stdout)
	switch {
	case strings.Contains(stdout, "NoSuchAccount"):
		return fmt.Errorf("%w: %w: %s", sentinel, ErrNoSuchAccount, trimmed)
	case strings.Contains(stdout, "AccountNameAlreadyExists"):
		return fmt.Errorf("%w: %w: %s", sentinel, ErrAccountNameTaken, trimmed)
	default:
		return fmt.Errorf("%w: %s", sentinel, trimmed)
	}
}
