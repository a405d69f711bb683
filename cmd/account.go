package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/cli"
	"github.com/sagihirshfeld/noobaa-sa-ci/internal/nbcli"
)

func newAccountCommand() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts on the server",
	}
	accountCmd.AddCommand(newAccountAddCommand())
	accountCmd.AddCommand(newAccountListCommand())
	accountCmd.AddCommand(newAccountStatusCommand())
	accountCmd.AddCommand(newAccountUpdateCommand())
	accountCmd.AddCommand(newAccountDeleteCommand())
	accountCmd.AddCommand(newAccountAnonymousCommand())
	return accountCmd
}

func newAccountAddCommand() *cobra.Command {
	var (
		name               string
		accessKey          string
		secretKey          string
		fsBackend          string
		denyBucketCreation bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			name, creds, err := deps.accounts.Create(cmd.Context(), name,
				nbcli.Credentials{AccessKey: accessKey, SecretKey: secretKey},
				nbcli.CreateOptions{FSBackend: fsBackend, DenyBucketCreation: denyBucketCreation})
			if err != nil {
				return err
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"name":       name,
					"access_key": creds.AccessKey,
					"secret_key": creds.SecretKey,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %s\naccess key: %s\nsecret key: %s\n",
				name, creds.AccessKey, creds.SecretKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Account name (generated when empty)")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "Access key (generated when empty)")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "Secret key (generated when empty)")
	cmd.Flags().StringVar(&fsBackend, "fs-backend", "", "Filesystem backend")
	cmd.Flags().BoolVar(&denyBucketCreation, "deny-bucket-creation", false, "Disallow bucket creation for this account")
	return cmd
}

func newAccountListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List account names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			names, err := deps.accounts.List(cmd.Context())
			if err != nil {
				return err
			}
			return printNames(cmd, names)
		},
	}
}

func newAccountStatusCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show an account's configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			status, err := deps.accounts.Status(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printStatus(cmd, status)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Account name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountUpdateCommand() *cobra.Command {
	var (
		name                string
		newName             string
		uid                 int
		gid                 int
		allowBucketCreation bool
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if cmd.Flags().Changed("new-name") {
				params["new_name"] = newName
			}
			if cmd.Flags().Changed("uid") {
				params["uid"] = uid
			}
			if cmd.Flags().Changed("gid") {
				params["gid"] = gid
			}
			if cmd.Flags().Changed("allow-bucket-creation") {
				params["allow_bucket_creation"] = allowBucketCreation
			}
			if len(params) == 0 {
				return fmt.Errorf("nothing to update")
			}
			deps := remoteDepsFromContext(cmd.Context())
			return deps.accounts.Update(cmd.Context(), name, params)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Account name")
	cmd.Flags().StringVar(&newName, "new-name", "", "New account name")
	cmd.Flags().IntVar(&uid, "uid", 0, "New filesystem uid")
	cmd.Flags().IntVar(&gid, "gid", 0, "New filesystem gid")
	cmd.Flags().BoolVar(&allowBucketCreation, "allow-bucket-creation", true, "Allow bucket creation")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountDeleteCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirmDeletion(cmd, "account", name); err != nil {
				return err
			}
			deps := remoteDepsFromContext(cmd.Context())
			return deps.accounts.Delete(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Account name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountAnonymousCommand() *cobra.Command {
	anonCmd := &cobra.Command{
		Use:   "anonymous",
		Short: "Manage the anonymous account",
	}

	addIdentityFlags := func(cmd *cobra.Command, uid, gid *int, user *string) {
		cmd.Flags().IntVar(uid, "uid", 0, "Filesystem uid for anonymous requests")
		cmd.Flags().IntVar(gid, "gid", 0, "Filesystem gid for anonymous requests")
		cmd.Flags().StringVar(user, "user", "", "User name for anonymous requests (instead of uid/gid)")
	}
	identityFromFlags := func(cmd *cobra.Command, uid, gid int, user string) nbcli.AnonymousIdentity {
		id := nbcli.AnonymousIdentity{User: user}
		if cmd.Flags().Changed("uid") {
			id.UID = &uid
		}
		if cmd.Flags().Changed("gid") {
			id.GID = &gid
		}
		return id
	}

	var addUID, addGID int
	var addUser string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Enable anonymous access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			return deps.anonymous.Create(cmd.Context(), identityFromFlags(cmd, addUID, addGID, addUser))
		},
	}
	addIdentityFlags(addCmd, &addUID, &addGID, &addUser)

	var updUID, updGID int
	var updUser string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change the anonymous identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			return deps.anonymous.Update(cmd.Context(), identityFromFlags(cmd, updUID, updGID, updUser))
		},
	}
	addIdentityFlags(updateCmd, &updUID, &updGID, &updUser)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the anonymous account's configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			status, err := deps.anonymous.Status(cmd.Context())
			if err != nil {
				return err
			}
			if status == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "anonymous access is not configured")
				return nil
			}
			return printStatus(cmd, status)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Disable anonymous access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := remoteDepsFromContext(cmd.Context())
			return deps.anonymous.Delete(cmd.Context())
		},
	}

	anonCmd.AddCommand(addCmd, updateCmd, statusCmd, deleteCmd)
	return anonCmd
}

// printNames writes a name list as JSON or one name per line.
func printNames(cmd *cobra.Command, names []string) error {
	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(names)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// printStatus writes a status object as indented JSON. Status output is
// JSON in both modes; there is no short text form worth inventing.
func printStatus(cmd *cobra.Command, status any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
