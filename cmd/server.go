package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"
)

func newServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Operate the remote NSFS service",
	}
	serverCmd.AddCommand(newServerSetupTLSCommand())
	serverCmd.AddCommand(newServerRestartCommand())
	return serverCmd
}

func newServerSetupTLSCommand() *cobra.Command {
	var (
		certsDir string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "setup-tls",
		Short: "Provision a self-signed certificate and point the service at it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())

			dir := certsDir
			if dir == "" {
				root, err := deps.server.ConfigRootPath(cmd.Context())
				if err != nil {
					return err
				}
				dir = path.Join(root, "certificates")
			}

			certPath, err := deps.server.CreateTLSCertificates(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if err := deps.server.SetCertsDir(cmd.Context(), dir); err != nil {
				return err
			}
			if out != "" {
				if err := deps.server.DownloadCert(certPath, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "certificate saved to %s\n", out)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service now serving %s\n", certPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&certsDir, "certs-dir", "", "Remote directory for the key and certificate (default <config root>/certificates)")
	cmd.Flags().StringVar(&out, "out", "", "Local path to save the certificate to")
	return cmd
}

func newServerRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the NSFS service and wait for it to come back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			if err := deps.server.RestartService(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "service active")
			return nil
		},
	}
}
