package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize reelsight in the current directory",
	Long: `Write a default .reelsight/config.yaml and create the working
directories used for downloads and results.`,
	RunE: runInit,
}

var (
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	configPath := config.DefaultConfigPath()

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", configPath)
	}

	dir := filepath.Dir(configPath)
	for _, d := range []string{dir, filepath.Join(dir, "work")} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}

	if err := config.WriteConfigFile(configPath, []byte(config.DefaultConfigYAML)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", configPath)
	fmt.Fprintln(out, "Set REELSIGHT_PROVIDERS_NARRATIVE_API_KEY and REELSIGHT_PROVIDERS_VISION_API_KEY, then run 'reelsight serve'.")
	return nil
}
