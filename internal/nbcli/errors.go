package nbcli

import "errors"

// Sentinel errors for the management CLI failure modes the suite asserts
// on. Messages from the remote CLI are wrapped around these, so callers
// match with errors.Is and still see the server's own text.
var (
	ErrAccountCreation = errors.New("account creation failed")
	ErrAccountDeletion = errors.New("account deletion failed")
	ErrAccountList     = errors.New("account list failed")
	ErrAccountUpdate   = errors.New("account update failed")
	ErrAccountStatus   = errors.New("account status query failed")

	// ErrNoSuchAccount maps the CLI's NoSuchAccount reply.
	ErrNoSuchAccount = errors.New("no such account")

	// ErrAccountNameTaken maps the CLI's AccountNameAlreadyExists reply.
	ErrAccountNameTaken = errors.New("account name already exists")

	ErrBucketCreation = errors.New("bucket creation failed")
	ErrBucketDeletion = errors.New("bucket deletion failed")
	ErrBucketList     = errors.New("bucket list failed")
	ErrBucketUpdate   = errors.New("bucket update failed")
	ErrBucketStatus   = errors.New("bucket status query failed")
)
