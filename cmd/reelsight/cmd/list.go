package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses",
	RunE:  runList,
}

var (
	listStatus string
	listLimit  int
	listOffset int
	listJSON   bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show analyses in this status")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of analyses")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip this many analyses")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print as JSON")
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := newAPIClient(apiBaseURL()).List(ctx, core.JobStatus(listStatus), listLimit, listOffset)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if listJSON {
		return printJSON(out, resp)
	}
	if len(resp.Analyses) == 0 {
		fmt.Fprintln(out, "No analyses found.")
		return nil
	}
	renderJobTable(out, resp.Analyses)
	if shown := resp.Offset + len(resp.Analyses); shown < resp.Total {
		fmt.Fprintf(out, "Showing %d-%d of %d\n", resp.Offset+1, shown, resp.Total)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[core.JobStatus]lipgloss.Style{
		core.JobStatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1),
		core.JobStatusError:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1),
	}
)

const statusColumn = 2

func renderJobTable(out io.Writer, jobs []core.JobSummary) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATUS", "PROGRESS", "ERRORS", "CREATED")
	for _, j := range jobs {
		errs := ""
		if j.HasErrors {
			errs = "yes"
		}
		t.Row(
			string(j.ID),
			j.Name,
			string(j.Status),
			strconv.Itoa(j.ProgressPercent)+"%",
			errs,
			j.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == statusColumn && !noColor && row >= 0 && row < len(jobs) {
			if s, ok := statusStyle[jobs[row].Status]; ok {
				return s
			}
		}
		return cellStyle
	})
	fmt.Fprintln(out, t.Render())
}
