package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
)

var (
	forceInit  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter hitupload config",
	Long: `Create a starter config in the current directory.

The config targets http://localhost:8080/upload, sends a comment=Larry field
before the files and expects a 200 or 201. Run 'hitupload serve' in another
terminal to try it.

Examples:
  hitupload init
  hitupload init --format json
  hitupload init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "Config format: yaml or json")
}

func initCommand(cmd *cobra.Command, args []string) error {
	var name string
	switch initFormat {
	case "yaml", "yml":
		name = ".hitupload.yaml"
	case "json":
		name = ".hitupload.json"
	default:
		return fmt.Errorf("unknown config format %q (use yaml or json)", initFormat)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	configFile := filepath.Join(cwd, name)

	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile)
		}
	}

	if err := config.Starter().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'hitupload upload -f <file>' to upload with it.\n")

	return nil
}
