package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/logger"
)

var (
	flagJSON    bool
	flagDebug   bool
	flagLogFile string
	flagDir     string
	flagProfile string
)

// runID identifies one invocation in the log file and the JSON report.
var runID string

var closeLog = func() {}

var rootCmd = &cobra.Command{
	Use:   "stackup",
	Short: "Provision a project's dev environment and MCP servers",
	Long: `stackup prepares a project directory for AI-assisted development.

It checks the required tools, connects the project to GitHub and Supabase
through their CLIs, collects the API credentials each MCP server needs, and
writes .mcp.json and .env.local. Every step is safe to run again: finished
work is detected and skipped.

Configure via stackup.yaml in the project root.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRun,
	RunE:              runSetup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagJSON, "json", false, "write the result as JSON to stdout")
	pf.BoolVar(&flagDebug, "debug", false, "print debug output")
	pf.StringVar(&flagLogFile, "log-file", "", "append a JSON log to this file (default: the user state directory)")
	pf.StringVarP(&flagDir, "dir", "C", ".", "project directory")
	pf.StringVar(&flagProfile, "profile", "", "profile file (default: stackup.yaml in the project directory)")

	addSetupFlags(rootCmd)
}

// RootCommand returns the root command, for tests and doc generation.
func RootCommand() *cobra.Command {
	return rootCmd
}

func initRun(cmd *cobra.Command, args []string) error {
	jsonout.Enabled = flagJSON
	if flagJSON {
		jsonout.SetMsgOut(io.Discard)
	}
	jsonout.SetRedactor(logger.Redact)

	runID = uuid.NewString()
	logFile := flagLogFile
	if logFile == "" {
		logFile = config.StatePath()
	}
	closeFn, err := logger.Init(logger.Options{Debug: flagDebug, LogFile: logFile, RunID: runID})
	if err != nil {
		// An unwritable log file is not fatal.
		logger.Warn("log file disabled: %v", err)
		closeFn, _ = logger.Init(logger.Options{Debug: flagDebug, RunID: runID})
	}
	closeLog = closeFn
	logger.Event("command started", "command", cmd.CommandPath(), "version", Version)
	return nil
}

// projectDir returns the absolute project directory.
func projectDir() (string, error) {
	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", flagDir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", dir)
	}
	return dir, nil
}

// loadProfile reads the profile for dir, mapping parse failures to the
// config exit code.
func loadProfile(dir string) (*config.Profile, error) {
	p, err := config.Load(dir, flagProfile)
	if err != nil {
		return nil, exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	return p, nil
}

func Execute() {
	err := rootCmd.Execute()
	closeLog()
	if err == nil {
		return
	}

	code, exit := exitcode.Classify(err)
	if jsonout.Enabled {
		jsonout.WriteError(code, err.Error(), exit)
	} else {
		var ee *exitcode.ExitError
		if !errors.As(err, &ee) || ee.ExitCode != exitcode.Cancelled {
			fmt.Fprintln(os.Stderr, logger.Redact(err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, "Setup cancelled.")
		}
	}
	os.Exit(exit)
}
