package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a hitupload config without uploading",
	Long: `Check a config file for invalid settings, expectations and captures
without sending anything. Without an argument the config in the current
directory is checked.

Examples:
  hitupload validate
  hitupload validate ./ci/.hitupload.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	path := configFlag
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		if path = findConfigFile(cwd); path == "" {
			return fmt.Errorf("no config file found in %s", cwd)
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := runner.JobFromConfig(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", path)
	return nil
}

func findConfigFile(dir string) string {
	for _, name := range config.ConfigFilenames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
