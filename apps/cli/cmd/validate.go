package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate apicase files for syntax errors",
	Long: `Validate apicase files for syntax errors without executing them.

Examples:
  apicase validate api.apicase
  apicase validate ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitf(ExitUsageError, "no .apicase or .tc files found")
	}

	hasErrors := false
	for _, file := range files {
		_, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return exitf(ExitParseError, "validation failed")
	}

	return nil
}
