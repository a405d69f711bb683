package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBucketCommand() *cobra.Command {
	bucketCmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage buckets on the server",
	}
	bucketCmd.AddCommand(newBucketAddCommand())
	bucketCmd.AddCommand(newBucketListCommand())
	bucketCmd.AddCommand(newBucketStatusCommand())
	bucketCmd.AddCommand(newBucketUpdateCommand())
	bucketCmd.AddCommand(newBucketDeleteCommand())
	return bucketCmd
}

func newBucketAddCommand() *cobra.Command {
	var (
		name   string
		owner  string
		fsPath string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			name, err := deps.buckets.Create(cmd.Context(), name, owner, fsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created bucket %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Bucket name (generated when empty)")
	cmd.Flags().StringVar(&owner, "owner", "", "Owning account name")
	cmd.Flags().StringVar(&fsPath, "path", "", "Filesystem path backing the bucket")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newBucketListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bucket names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			names, err := deps.buckets.List(cmd.Context())
			if err != nil {
				return err
			}
			return printNames(cmd, names)
		},
	}
}

func newBucketStatusCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a bucket's configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			status, err := deps.buckets.Status(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printStatus(cmd, status)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Bucket name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newBucketUpdateCommand() *cobra.Command {
	var (
		name    string
		newName string
		fsPath  string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if cmd.Flags().Changed("new-name") {
				params["new_name"] = newName
			}
			if cmd.Flags().Changed("path") {
				params["path"] = fsPath
			}
			if len(params) == 0 {
				return fmt.Errorf("nothing to update")
			}
			deps := remoteDepsFromContext(cmd.Context())
			return deps.buckets.Update(cmd.Context(), name, params)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Bucket name")
	cmd.Flags().StringVar(&newName, "new-name", "", "New bucket name")
	cmd.Flags().StringVar(&fsPath, "path", "", "New filesystem path")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newBucketDeleteCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirmDeletion(cmd, "bucket", name); err != nil {
				return err
			}
			deps := remoteDepsFromContext(cmd.Context())
			return deps.buckets.Delete(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Bucket name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
