package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/cli"
)

// NewRootCommand creates and returns the root cobra command with all
// global persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "noobaa-sa-ci",
		Short:         "Drive a standalone NooBaa server for integration testing",
		Long:          "Manage accounts, buckets and policies on a remote standalone NooBaa server over SSH and S3.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.NewCLIContext(cmd)
			ctx := cli.WithContext(context.Background(), cliCtx)

			if commandNeedsRemote(cmd.Name()) {
				deps, err := initRemoteDeps(cliCtx)
				if err != nil {
					return err
				}
				ctx = contextWithRemoteDeps(ctx, deps)
			}
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps := remoteDepsFromContext(cmd.Context()); deps != nil {
				deps.close()
			}
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Mirror operation logs to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")
	rootCmd.PersistentFlags().String("config-dir", "", "Config directory (default ~/.config/noobaa-sa-ci)")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newAccountCommand())
	rootCmd.AddCommand(newBucketCommand())
	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}

// Execute creates the root command and runs it. Called from main.
func Execute() error {
	return NewRootCommand().Execute()
}
