package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hitupload.

To load completions:

Bash:
  $ source <(hitupload completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hitupload completion bash > /etc/bash_completion.d/hitupload
  # macOS:
  $ hitupload completion bash > $(brew --prefix)/etc/bash_completion.d/hitupload

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hitupload completion zsh > "${fpath[1]}/_hitupload"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hitupload completion fish | source

  # To load completions for each session, execute once:
  $ hitupload completion fish > ~/.config/fish/completions/hitupload.fish

PowerShell:
  PS> hitupload completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> hitupload completion powershell > hitupload.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
