package nbcli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/randutil"
)

// BucketManager creates, lists, updates and deletes buckets through the
// management CLI, as opposed to the S3 data plane.
type BucketManager struct {
	runner Runner
	cfg    *config.Config
	log    logging.Logger

	created []string
}

// NewBucketManager returns a manager bound to the given remote runner.
func NewBucketManager(runner Runner, cfg *config.Config, log logging.Logger) *BucketManager {
	if log == nil {
		log = logging.Nop()
	}
	return &BucketManager{runner: runner, cfg: cfg, log: log}
}

// Create makes a bucket owned by the named account, rooted at path on the
// remote filesystem. An empty name is filled in with a generated one,
// which is returned.
func (m *BucketManager) Create(ctx context.Context, name, owner, fsPath string) (string, error) {
	if name == "" {
		name = randutil.UniqueName("bucket")
	}
	if res, err := m.runner.Exec(ctx, "sudo mkdir -p "+fsPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBucketCreation, err)
	} else if res.Code != 0 {
		return "", fmt.Errorf("%w: create bucket path: %s", ErrBucketCreation, res.Stderr)
	}

	cmd := fmt.Sprintf("sudo %s bucket add --name %s --owner %s --path %s --config_root %s",
		m.cfg.NoobaaCLIPath, name, owner, fsPath, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "BucketAdd", cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBucketCreation, err)
	}
	if res.Code != 0 {
		return "", fmt.Errorf("%w: %s", ErrBucketCreation, strings.TrimSpace(res.Stdout))
	}

	m.created = append(m.created, name)
	return name, nil
}

// List returns the names of all buckets known to the server.
func (m *BucketManager) List(ctx context.Context) ([]string, error) {
	cmd := fmt.Sprintf("sudo %s bucket list --config_root %s",
		m.cfg.NoobaaCLIPath, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "BucketList", cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBucketList, err)
	}
	if res.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrBucketList, strings.TrimSpace(res.Stdout))
	}

	var entries []struct {
		Name string `json:"name"`
	}
	if err := parseReply(res.Stdout, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBucketList, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// Delete removes a bucket by name.
func (m *BucketManager) Delete(ctx context.Context, name string) error {
	cmd := fmt.Sprintf("sudo %s bucket delete --name %s --config_root %s",
		m.cfg.NoobaaCLIPath, name, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "BucketDelete", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBucketDeletion, err)
	}
	if res.Code != 0 {
		return fmt.Errorf("%w: %s", ErrBucketDeletion, strings.TrimSpace(res.Stdout))
	}

	for i, tracked := range m.created {
		if tracked == name {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
	return nil
}

// Update applies the given flag/value pairs to a bucket.
func (m *BucketManager) Update(ctx context.Context, name string, params map[string]any) error {
	cmd := fmt.Sprintf("sudo %s bucket update --name %s%s --config_root %s",
		m.cfg.NoobaaCLIPath, name, formatUpdateFlags(params), m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "BucketUpdate", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBucketUpdate, err)
	}
	if res.Code != 0 {
		return fmt.Errorf("%w: %s", ErrBucketUpdate, strings.TrimSpace(res.Stdout))
	}

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

// BucketStatus is the server's view of a single bucket.
type BucketStatus struct {
	Name      string `json:"name"`
	Owner     string `json:"owner_account,omitempty"`
	Path      string `json:"path"`
	FSBackend string `json:"fs_backend,omitempty"`
}

// Status returns the config data of a bucket.
func (m *BucketManager) Status(ctx context.Context, name string) (*BucketStatus, error) {
	cmd := fmt.Sprintf("sudo %s bucket status --name %s --config_root %s",
		m.cfg.NoobaaCLIPath, name, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "BucketStatus", cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBucketStatus, err)
	}
	if res.Code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrBucketStatus, strings.TrimSpace(res.Stdout))
	}

	status := &BucketStatus{}
	if err := parseReply(res.Stdout, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBucketStatus, err)
	}
	return status, nil
}

// Created returns the names of buckets this manager created and has not
// yet deleted, oldest first.
func (m *BucketManager) Created() []string {
	out := make([]string, len(m.created))
	copy(out, m.created)
	return out
}

// Cleanup deletes every bucket this manager still tracks. The first error
// is returned after attempting all deletions.
func (m *BucketManager) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, name := range m.Created() {
		if err := m.Delete(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
