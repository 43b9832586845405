package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/core/config"
)

var (
	forceInit  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new apicase project",
	Long: `Initialize a new apicase project in the given directory (default: current).

This creates:
  - .apicase.yaml     - Configuration file (or .apicase.json / .apicase.toml)
  - example.apicase   - Example test cases

Examples:
  apicase init
  apicase init ./api-tests --format toml
  apicase init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "Config file format: yaml, json, toml")
	_ = initCmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"yaml", "json", "toml"}, cobra.ShellCompDirectiveNoFileComp))
}

const exampleContent = `# Example apicase test cases. Blocks are separated by "---".
testcase: health check
description: the API answers
method: GET
url: {{baseUrl}}/health
statuscode: 200
---
testcase: create resource
author: apicase
method: POST
url: {{baseUrl}}/resources
statuscode: 201
headers:
  Content-Type: application/json
  X-Request-Id: {{uuid()}}
payload:
  name: Test Resource
assertions:
  jsonPathExists: $.id
  jsonPathValue: $.name == "Test Resource"
  headerExists: Location
---
testcase: missing resource
method: GET
url: {{baseUrl}}/resources/does-not-exist
statuscode: 404
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var configName string
	switch initFormat {
	case "yaml", "yml":
		configName = ".apicase.yaml"
	case "json":
		configName = ".apicase.json"
	case "toml":
		configName = ".apicase.toml"
	default:
		return exitf(ExitUsageError, "unknown config format %q (use yaml, json or toml)", initFormat)
	}

	configFile := filepath.Join(dir, configName)
	exampleFile := filepath.Join(dir, "example.apicase")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"User-Agent": "apicase/" + version,
	}
	cfg.Variables = map[string]string{
		"baseUrl": "http://localhost:3000",
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleContent), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napicase project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'apicase run %s' to execute the example tests.\n", exampleFile)

	return nil
}
