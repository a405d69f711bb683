package nbcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
)

// ErrAnonymousIdentity is returned when neither a uid/gid pair nor a user
// name is given for the anonymous account.
var ErrAnonymousIdentity = errors.New("anonymous account needs uid and gid, or a user name")

// AnonymousIdentity is the filesystem identity unauthenticated S3 requests
// run as. Set UID and GID together, or User alone.
type AnonymousIdentity struct {
	UID  *int
	GID  *int
	User string
}

func (id AnonymousIdentity) flags() (string, error) {
	switch {
	case id.UID != nil && id.GID != nil:
		return fmt.Sprintf(" --uid %d --gid %d", *id.UID, *id.GID), nil
	case id.User != "":
		return " --user " + id.User, nil
	default:
		return "", ErrAnonymousIdentity
	}
}

// AnonymousManager manages the single well-known anonymous account.
type AnonymousManager struct {
	runner Runner
	cfg    *config.Config
	log    logging.Logger
}

// NewAnonymousManager returns a manager bound to the given remote runner.
func NewAnonymousManager(runner Runner, cfg *config.Config, log logging.Logger) *AnonymousManager {
	if log == nil {
		log = logging.Nop()
	}
	return &AnonymousManager{runner: runner, cfg: cfg, log: log}
}

// Create enables anonymous access with the given identity.
func (m *AnonymousManager) Create(ctx context.Context, id AnonymousIdentity) error {
	idFlags, err := id.flags()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccountCreation, err)
	}
	cmd := fmt.Sprintf("sudo %s account add --anonymous%s --config_root %s",
		m.cfg.NoobaaCLIPath, idFlags, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AnonymousAdd", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}
	if res.Code != 0 {
		return wrapCLIFailure(ErrAccountCreation, res.Stdout)
	}
	return nil
}

// Update changes the identity of the anonymous account.
func (m *AnonymousManager) Update(ctx context.Context, id AnonymousIdentity) error {
	idFlags, err := id.flags()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccountUpdate, err)
	}
	cmd := fmt.Sprintf("sudo %s account update --anonymous%s --config_root %s",
		m.cfg.NoobaaCLIPath, idFlags, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AnonymousUpdate", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountUpdate, err)
	}
	if res.Code != 0 {
		return wrapCLIFailure(ErrAccountUpdate, res.Stdout)
	}
	return nil
}

// Delete disables anonymous access. Deleting an anonymous account that
// does not exist is not an error, so teardown can call it unconditionally.
func (m *AnonymousManager) Delete(ctx context.Context) error {
	cmd := fmt.Sprintf("sudo %s account delete --anonymous --config_root %s",
		m.cfg.NoobaaCLIPath, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AnonymousDelete", cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountDeletion, err)
	}
	if res.Code != 0 {
		if strings.Contains(res.Stdout, "NoSuchAccount") {
			return nil
		}
		return wrapCLIFailure(ErrAccountDeletion, res.Stdout)
	}
	return nil
}

// Status returns the anonymous account's config, or nil when anonymous
// access is not configured.
func (m *AnonymousManager) Status(ctx context.Context) (*AccountStatus, error) {
	cmd := fmt.Sprintf("sudo %s account status --anonymous --config_root %s",
		m.cfg.NoobaaCLIPath, m.cfg.ConfigRoot)
	res, err := runLogged(ctx, m.runner, m.log, "AnonymousStatus", cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountStatus, err)
	}
	if res.Code != 0 {
		if strings.Contains(res.Stdout, "NoSuchAccount") {
			return nil, nil
		}
		return nil, wrapCLIFailure(ErrAccountStatus, res.Stdout)
	}

	status := &AccountStatus{}
	if err := parseReply(res.Stdout, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountStatus, err)
	}
	return status, nil
}
