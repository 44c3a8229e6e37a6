package cmd

import (
	"context"
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/clip"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/render"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id-or-name>",
	Short: "Show an analysis and its report",
	Long: `Show the progress of an analysis, and its report once complete.

The argument may be a job id or part of a job name; names are matched
fuzzily against recent analyses.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var (
	statusJSON bool
	statusCopy bool
	statusOut  string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the job as JSON")
	statusCmd.Flags().BoolVarP(&statusCopy, "copy", "c", false, "Copy the report to the clipboard")
	statusCmd.Flags().StringVarP(&statusOut, "out", "o", "", "Also write the report, with YAML frontmatter, to this file")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := newAPIClient(apiBaseURL())

	view, err := resolveJob(ctx, client, args[0])
	if err != nil {
		return err
	}
	if err := printView(cmd.OutOrStdout(), view, statusJSON); err != nil {
		return err
	}
	if statusOut != "" {
		if err := render.WriteFile(statusOut, view); err != nil {
			return fmt.Errorf("writing %s: %w", statusOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", statusOut)
	}
	if !statusCopy {
		return nil
	}

	res, err := clip.New().CopyReport(view)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	switch res.Method {
	case clip.MethodFile:
		fmt.Fprintf(errOut, "Clipboard unavailable, report saved to %s\n", res.FilePath)
	default:
		fmt.Fprintf(errOut, "Report copied to clipboard (%s)\n", res.Method)
	}
	return nil
}

// resolveJob looks the argument up as a job id first, then fuzzily by name
// or id among the most recent analyses.
func resolveJob(ctx context.Context, client *apiClient, arg string) (core.ProgressView, error) {
	if pipeline.ValidateJobID(core.JobID(arg)) == nil {
		view, err := client.Get(ctx, core.JobID(arg))
		if err == nil || !isNotFound(err) {
			return view, err
		}
	}

	list, err := client.List(ctx, "", 500, 0)
	if err != nil {
		return core.ProgressView{}, err
	}
	id, ok := bestMatch(arg, list.Analyses)
	if !ok {
		return core.ProgressView{}, fmt.Errorf("no analysis matches %q", arg)
	}
	return client.Get(ctx, id)
}

// bestMatch ranks jobs by fuzzy score against their name and id. Ties go to
// the most recently created job.
func bestMatch(pattern string, jobs []core.JobSummary) (core.JobID, bool) {
	if len(jobs) == 0 {
		return "", false
	}
	candidates := make([]string, 0, 2*len(jobs))
	owners := make([]int, 0, 2*len(jobs))
	for i, j := range jobs {
		if j.Name != "" {
			candidates = append(candidates, j.Name)
			owners = append(owners, i)
		}
		candidates = append(candidates, string(j.ID))
		owners = append(owners, i)
	}

	matches := fuzzy.Find(pattern, candidates)
	if len(matches) == 0 {
		return "", false
	}
	best := -1
	bestScore := 0
	for _, m := range matches {
		idx := owners[m.Index]
		if best < 0 || m.Score > bestScore ||
			(m.Score == bestScore && jobs[idx].CreatedAt.After(jobs[best].CreatedAt)) {
			best, bestScore = idx, m.Score
		}
	}
	return jobs[best].ID, true
}
