// Package cmd implements the apicase CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test cases from apicase files
//   - validate: Check test file syntax without executing
//   - list: Display all test cases defined in files
//   - history: Show runs recorded in the SQLite history database
//   - init: Create a new apicase project with example files
//   - version: Show apicase version information
//
// Exit codes are defined in exitcodes.go.
package cmd
