// Package cli implements the cobra-based CLI commands for devsession.
//
// Each subcommand (start, stop, cleanup, check, status, ports, compose) is
// defined in its own file within this package. This file defines the root
// command, which runs a session when invoked without a subcommand, and
// handles global flags and exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/devsession/internal/logging"
	"github.com/shinji-kodama/devsession/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command output and log lines to JSON.
	jsonOutput bool

	// verbose enables debug logging.
	verbose bool

	// configPath overrides configuration discovery.
	configPath string
)

// Version, Commit, and Date are set at build time via ldflags and
// injected from the main package.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// Running the root command without a subcommand starts a session, so
// `devsession` behaves like `devsession start`.
func NewRootCommand() *cobra.Command {
	startFlags := &startFlags{}

	rootCmd := &cobra.Command{
		Use:   "devsession",
		Short: "Run a multi-service development session",
		Long: `devsession starts every service of a project (API, frontend, bots, ...)
as one coordinated development session.

Before starting it looks for ports and processes left over from an earlier
session and cleans them up, picks fallback ports when the preferred ones
are taken, and stops every service together on Ctrl+C.`,

		Args: cobra.NoArgs,

		// We handle error output ourselves (text or JSON based on --json).
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), startFlags)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the configuration file (default: discovered from the working directory)")
	bindStartFlags(rootCmd, startFlags)

	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewCleanupCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewPortsCommand())
	rootCmd.AddCommand(NewComposeCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// CLIError values carry their own code; anything else exits with 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError writes message to stderr in the format selected by --json.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]any{
			"error": map[string]any{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]any); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// newLogger builds the root logger from the global flags.
func newLogger() *log.Logger {
	return logging.New(logging.Options{Verbose: verbose, JSON: jsonOutput})
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
