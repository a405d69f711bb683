// Package cmd provides CLI commands for noobaa-sa-ci.
// This file defines the shared remote-connection infrastructure used by
// PersistentPreRunE to dial the server once and share the managers
// across subcommands via context.
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/cli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/config"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/logging"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/nbcli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/sshconn"
)

// remoteDeps holds the SSH connection and the managers built over it.
// Created once in PersistentPreRunE and stored on the command context.
type remoteDeps struct {
	cfg       *config.Config
	conn      *sshconn.Connection
	accounts  *nbcli.AccountManager
	anonymous *nbcli.AnonymousManager
	buckets   *nbcli.BucketManager
	server    *nbcli.Server
	auditor   logging.Auditor
}

// remoteDepsKey is the context key for storing remoteDeps.
type remoteDepsKey struct{}

// remoteDepsFromContext retrieves the remoteDeps from the context.
// Returns nil if no deps have been stored.
func remoteDepsFromContext(ctx context.Context) *remoteDeps {
	v, _ := ctx.Value(remoteDepsKey{}).(*remoteDeps)
	return v
}

// contextWithRemoteDeps returns a new context carrying the given remoteDeps.
func contextWithRemoteDeps(ctx context.Context, deps *remoteDeps) context.Context {
	return context.WithValue(ctx, remoteDepsKey{}, deps)
}

// commandNeedsRemote returns true if the command requires an SSH
// connection to the server. Commands that operate locally (version,
// policy rendering, help) return false.
func commandNeedsRemote(cmdName string) bool {
	switch cmdName {
	case "version", "render", "policy", "help", "completion":
		return false
	default:
		return true
	}
}

// auditedRunner wraps a Runner and records every executed command on the
// audit log.
type auditedRunner struct {
	nbcli.Runner
	auditor logging.Auditor
	host    string
}

func (r auditedRunner) Exec(ctx context.Context, command string) (sshconn.Result, error) {
	if r.auditor != nil {
		_ = r.auditor.LogCommand(command, r.host)
	}
	return r.Runner.Exec(ctx, command)
}

// initRemoteDeps loads the config, dials the server over SSH and builds
// the CLI-backed managers. Returns remoteDeps ready to be stored on the
// command context.
func initRemoteDeps(cliCtx *cli.CLIContext) (*remoteDeps, error) {
	configDir := cliCtx.ConfigDir
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := sshconn.Dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Host, err)
	}

	log, err := logging.NewStructuredLogger(filepath.Join(configDir, "logs"), cliCtx.Debug)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open operation log: %w", err)
	}
	auditor, err := logging.NewAuditLogger(filepath.Join(configDir, "audit.jsonl"))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	runner := auditedRunner{Runner: conn, auditor: auditor, host: cfg.Host}
	return &remoteDeps{
		cfg:       cfg,
		conn:      conn,
		accounts:  nbcli.NewAccountManager(runner, cfg, log),
		anonymous: nbcli.NewAnonymousManager(runner, cfg, log),
		buckets:   nbcli.NewBucketManager(runner, cfg, log),
		server:    nbcli.NewServer(runner, cfg, log),
		auditor:   auditor,
	}, nil
}

// close releases the SSH connection and the audit log.
func (d *remoteDeps) close() {
	if d.auditor != nil {
		_ = d.auditor.Close()
	}
	if d.conn != nil {
		_ = d.conn.Close()
	}
}
