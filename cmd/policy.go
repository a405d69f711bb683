package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/policy"
)

func newPolicyCommand() *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with bucket policy documents locally",
	}
	policyCmd.AddCommand(newPolicyRenderCommand())
	return policyCmd
}

func newPolicyRenderCommand() *cobra.Command {
	var (
		effect        string
		principals    []string
		notPrincipals []string
		actions       []string
		notActions    []string
		resources     []string
		notResources  []string
		fromFile      string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a bucket policy document",
		Long: "Render a bucket policy document from statement flags, or normalize " +
			"an existing document with --from-file. Actions are prefixed with s3: " +
			"and resources with arn:aws:s3::: when the prefix is missing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return err
				}
				doc, err := policy.FromJSON(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), doc.String())
				return nil
			}

			b := policy.NewBuilder()
			switch strings.ToLower(effect) {
			case "allow":
				b.AddAllowStatement()
			case "deny":
				b.AddDenyStatement()
			default:
				return fmt.Errorf("effect must be allow or deny, got %q", effect)
			}
			for _, p := range principals {
				b.AddPrincipal(p)
			}
			for _, p := range notPrincipals {
				b.AddNotPrincipal(p)
			}
			for _, a := range actions {
				b.AddAction(a)
			}
			for _, a := range notActions {
				b.AddNotAction(a)
			}
			for _, r := range resources {
				b.AddResource(r)
			}
			for _, r := range notResources {
				b.AddNotResource(r)
			}
			doc, err := b.Build()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&effect, "effect", "allow", "Statement effect: allow or deny")
	cmd.Flags().StringArrayVar(&principals, "principal", nil, "Principal (repeatable)")
	cmd.Flags().StringArrayVar(&notPrincipals, "not-principal", nil, "NotPrincipal (repeatable)")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "Action (repeatable)")
	cmd.Flags().StringArrayVar(&notActions, "not-action", nil, "NotAction (repeatable)")
	cmd.Flags().StringArrayVar(&resources, "resource", nil, "Resource (repeatable)")
	cmd.Flags().StringArrayVar(&notResources, "not-resource", nil, "NotResource (repeatable)")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "Normalize an existing policy document instead")
	return cmd
}
