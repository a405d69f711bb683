// Package sshconn maintains the administrative SSH session to the NooBaa
// standalone host: remote command execution plus SFTP file transfer.
package sshconn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
)

// dialTimeout bounds the initial TCP/SSH handshake.
const dialTimeout = 30 * time.Second

// Result holds the outcome of a remote command. A non-zero Code is not an
// error at this layer; callers decide what exit codes mean.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// Connection is an established SSH session to the remote host. Each Exec
// call opens a fresh session on the shared client connection.
type Connection struct {
	client *ssh.Client
	host   string
	user   string
}

// Dial opens an SSH connection using the harness config. Authentication is
// by private key when ssh_key_path is set, falling back to the local SSH
// agent socket. Host keys are not verified; the targets are disposable lab
// machines, the same trust model the suite has always used.
func Dial(cfg *config.Config) (*Connection, error) {
	var methods []ssh.AuthMethod
	if cfg.SSHKeyPath != "" {
		key, err := os.ReadFile(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", cfg.SSHKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", cfg.SSHKeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" && len(methods) == 0 {
		if agentConn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
		}
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH auth available: set ssh_key_path or run an agent")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.SSHPort)
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.SSHUser,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	return &Connection{client: client, host: cfg.Host, user: cfg.SSHUser}, nil
}

// Exec runs a command on the remote host and returns its exit code, stdout
// and stderr. The command is aborted when ctx is cancelled. Only transport
// failures produce a non-nil error.
func (c *Connection) Exec(ctx context.Context, command string) (Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return Result{}, fmt.Errorf("start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		// Closing the session tears down the remote process.
		session.Close()
		<-done
		return Result{}, fmt.Errorf("remote command cancelled: %w", ctx.Err())
	case err := <-done:
		result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				result.Code = exitErr.ExitStatus()
				return result, nil
			}
			return result, fmt.Errorf("remote command failed: %w", err)
		}
		return result, nil
	}
}

// Upload copies a local file to remotePath over SFTP.
func (c *Connection) Upload(localPath, remotePath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("open sftp: %w", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("upload %s to %s@%s:%s: %w", localPath, c.user, c.host, remotePath, err)
	}
	return nil
}

// Download copies a remote file to localPath over SFTP.
func (c *Connection) Download(remotePath, localPath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("open sftp: %w", err)
	}
	defer client.Close()

	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("download %s@%s:%s to %s: %w", c.user, c.host, remotePath, localPath, err)
	}
	return nil
}

// HomeDir returns the remote user's home directory.
func (c *Connection) HomeDir(ctx context.Context) (string, error) {
	res, err := c.Exec(ctx, "echo $HOME")
	if err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("echo $HOME exited %d: %s", res.Code, res.Stderr)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Close tears down the SSH connection.
func (c *Connection) Close() error {
	return c.client.Close()
}
