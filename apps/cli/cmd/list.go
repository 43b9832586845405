package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List all test cases in apicase files",
	Long: `List all test cases defined in .apicase or .tc files.

Examples:
  apicase list api.apicase
  apicase list ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitf(ExitUsageError, "no .apicase or .tc files found")
	}

	out := cmd.OutOrStdout()
	hasErrors := false
	for _, file := range files {
		f, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			hasErrors = true
			continue
		}

		fmt.Fprintf(out, "\n%s:\n", file)
		for _, tc := range f.Cases {
			name := tc.Name
			if name == "" {
				name = fmt.Sprintf("block %d", tc.Block)
			}
			fmt.Fprintf(out, "  - %s\n", name)
			fmt.Fprintf(out, "    %s %s -> %d\n", tc.Method, tc.URL, tc.StatusCode)
			if tc.Description != "" {
				fmt.Fprintf(out, "    description: %s\n", tc.Description)
			}
			if tc.HasAuthor() {
				fmt.Fprintf(out, "    author: %s\n", *tc.Author)
			}
			fmt.Fprintf(out, "    headers: %d, payload: %d, assertions: %d\n",
				tc.Headers.Len(), tc.Payload.Len(), tc.Assertions.Count())
		}
	}

	if hasErrors {
		return withExitCode(ExitParseError, nil)
	}
	return nil
}
