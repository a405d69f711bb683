// Package nbcli drives the NooBaa management CLI on the remote host over
// SSH. It translates manager method calls into `sudo noobaa-cli ...`
// invocations, parses the JSON replies, and raises typed errors for the
// failure modes tests care about.
package nbcli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/sshconn"
)

// Runner is the remote-execution surface the managers need. It is
// satisfied by *sshconn.Connection; tests inject stubs.
type Runner interface {
	Exec(ctx context.Context, command string) (sshconn.Result, error)
	Upload(localPath, remotePath string) error
	Download(remotePath, localPath string) error
	HomeDir(ctx context.Context) (string, error)
}

var _ Runner = (*sshconn.Connection)(nil)

// cliReply is the envelope the management CLI prints on stdout:
// {"response": {"reply": ...}}.
type cliReply struct {
	Response struct {
		Reply json.RawMessage `json:"reply"`
	} `json:"response"`
}

// parseReply unwraps the CLI's response envelope and unmarshals the inner
// reply into out.
func parseReply(stdout string, out any) error {
	var envelope cliReply
	if err := json.Unmarshal([]byte(stdout), &envelope); err != nil {
		return fmt.Errorf("parse CLI reply envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Response.Reply, out); err != nil {
		return fmt.Errorf("parse CLI reply body: %w", err)
	}
	return nil
}

// runLogged executes a remote command and records it on the operation log.
func runLogged(ctx context.Context, runner Runner, log logging.Logger, operation, command string) (sshconn.Result, error) {
	start := time.Now()
	res, err := runner.Exec(ctx, command)
	if log != nil {
		log.Log("noobaa-cli", operation, time.Since(start), err)
	}
	return res, err
}
