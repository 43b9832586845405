package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for apicase.

Bash:
  $ source <(apicase completion bash)

Zsh:
  $ apicase completion zsh > "${fpath[1]}/_apicase"

Fish:
  $ apicase completion fish | source

PowerShell:
  PS> apicase completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}

var outputFormats = []string{"console", "json", "junit", "tap", "xlsx"}

// completeTestFiles offers directories and files with a test case extension.
func completeTestFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"apicase", "tc"}, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	for _, c := range []*cobra.Command{runCmd, validateCmd, listCmd} {
		c.ValidArgsFunction = completeTestFiles
	}
}
