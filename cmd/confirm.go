package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sagihirshfeld/noobaa-sa-ci/internal/cli"
)

// confirmDeletion asks the user to type the resource name before a
// destructive operation proceeds. --yes skips the prompt; without --yes a
// non-interactive session aborts rather than hanging on stdin.
func confirmDeletion(cmd *cobra.Command, kind, name string) error {
	cliCtx := cli.FromCommand(cmd)
	if cliCtx != nil && cliCtx.Yes {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("deleting %s %q needs --yes in a non-interactive session", kind, name)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Type the %s name %q to confirm deletion: ", kind, name)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return fmt.Errorf("no confirmation input received, %s %q not deleted", kind, name)
	}
	input := strings.TrimSpace(scanner.Text())
	if input != name {
		return fmt.Errorf("confirmation %q does not match %s name %q, not deleted", input, kind, name)
	}
	return nil
}
