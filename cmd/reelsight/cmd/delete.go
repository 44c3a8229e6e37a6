package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <job-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete finished analyses",
	Long:    `Delete stored analyses. Running analyses cannot be deleted.`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := newAPIClient(apiBaseURL())
	out := cmd.OutOrStdout()

	var failed int
	for _, id := range args {
		if err := client.Delete(ctx, core.JobID(id)); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(out, "Deleted %s\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(args))
	}
	return nil
}
