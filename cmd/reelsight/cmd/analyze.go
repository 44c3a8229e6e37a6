package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/api"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video-url-or-path>",
	Short: "Submit a video for analysis",
	Long: `Submit a video to a running reelsight server.

By default the command prints the job id and returns immediately. Use --wait
to poll until the report is ready, or --local to run the whole analysis in
this process without a server.

Examples:
  reelsight analyze https://cdn.example.com/clip.mp4 --wait
  reelsight analyze ./clip.mp4 --local --name launch-teaser`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeName     string
	analyzeID       string
	analyzeWait     bool
	analyzeLocal    bool
	analyzeJSON     bool
	analyzeInterval time.Duration
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "Display name (default: derived from the source)")
	analyzeCmd.Flags().StringVar(&analyzeID, "id", "", "Job id (default: generated)")
	analyzeCmd.Flags().BoolVarP(&analyzeWait, "wait", "w", false, "Wait for the report")
	analyzeCmd.Flags().BoolVar(&analyzeLocal, "local", false, "Run in-process instead of using a server")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	analyzeCmd.Flags().DurationVar(&analyzeInterval, "interval", 2*time.Second, "Polling interval for --wait")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if analyzeLocal {
		return analyzeInProcess(ctx, cmd, args[0])
	}

	client := newAPIClient(apiBaseURL())
	resp, err := client.Submit(ctx, api.SubmitAnalysisRequest{
		SourceRef: args[0],
		Name:      analyzeName,
		ID:        analyzeID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !analyzeWait {
		if analyzeJSON {
			return printJSON(out, resp)
		}
		fmt.Fprintf(out, "Submitted %s\n", resp.JobID)
		fmt.Fprintf(out, "  status: reelsight status %s\n", resp.JobID)
		fmt.Fprintf(out, "  watch:  reelsight watch %s\n", resp.JobID)
		return nil
	}

	errOut := cmd.ErrOrStderr()
	last := -1
	view, err := client.Wait(ctx, resp.JobID, analyzeInterval, func(v core.ProgressView) {
		if v.ProgressPercent != last {
			last = v.ProgressPercent
			fmt.Fprintln(errOut, progressLine(v))
		}
	})
	if err != nil {
		return err
	}
	return finish(cmd, view)
}

func analyzeInProcess(ctx context.Context, cmd *cobra.Command, ref string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr)
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	view, err := rt.orchestrator.Run(ctx, pipeline.SubmitRequest{
		SourceRef: ref,
		Name:      analyzeName,
		ID:        analyzeID,
	})
	if err != nil {
		return err
	}
	return finish(cmd, view)
}

// finish prints the terminal view and turns a failed job into an error exit.
func finish(cmd *cobra.Command, view core.ProgressView) error {
	if err := printView(cmd.OutOrStdout(), view, analyzeJSON); err != nil {
		return err
	}
	if view.Status == core.JobStatusError {
		return fmt.Errorf("analysis %s failed", view.JobID)
	}
	return nil
}
