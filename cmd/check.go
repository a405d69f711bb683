package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/cli"
)

// checkResult is one connectivity probe outcome.
type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the server",
		Long:  "Check SSH connectivity, management CLI availability, and the S3 endpoint of the configured server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			if deps == nil {
				return fmt.Errorf("no server connection available")
			}
			ctx := cmd.Context()

			results := []checkResult{}
			record := func(name string, err error) {
				r := checkResult{Name: name, OK: err == nil}
				if err != nil {
					r.Error = err.Error()
				}
				results = append(results, r)
			}

			res, err := deps.conn.Exec(ctx, "true")
			if err == nil && res.Code != 0 {
				err = fmt.Errorf("exit code %d", res.Code)
			}
			record("ssh", err)

			_, err = deps.accounts.List(ctx)
			record("noobaa-cli", err)

			record("s3-endpoint", probeEndpoint(deps.cfg.Host, deps.cfg.S3Port))

			failed := false
			for _, r := range results {
				if !r.OK {
					failed = true
				}
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
				if failed {
					return silentExitError{}
				}
				return nil
			}

			for _, r := range results {
				status := "ok"
				if !r.OK {
					status = "FAILED: " + r.Error
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", r.Name, status)
			}
			if failed {
				return fmt.Errorf("connectivity check failed")
			}
			return nil
		},
	}
}

// probeEndpoint opens a TLS connection to the S3 port. The endpoint's
// certificate is usually self-signed, so verification is skipped; this
// only answers "is something serving TLS there".
func probeEndpoint(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := tls.DialWithDialer(
		&net.Dialer{Timeout: 10 * time.Second},
		"tcp", addr,
		&tls.Config{InsecureSkipVerify: true},
	)
	if err != nil {
		return err
	}
	return conn.Close()
}
