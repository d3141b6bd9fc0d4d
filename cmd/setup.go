package cmd

import (
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/opener"
	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/prompt"
	"github.com/protocollar/stackup/internal/report"
	"github.com/protocollar/stackup/internal/setup"
	"github.com/protocollar/stackup/internal/validate"
)

var (
	setupSkipGitHub   bool
	setupSkipSupabase bool
	setupNoInstall    bool
	setupVerify       bool
	setupNoValidate   bool
)

func init() {
	rootCmd.AddCommand(setupCmd)
	addSetupFlags(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the project (the default command)",
	Long: `Run the full provisioning pipeline in the project directory:

  1. detect the platform and check git, node, npm, gh and supabase
  2. set up GitHub (gh login, git init, origin remote)
  3. set up Supabase (login, supabase init, project link, API keys)
  4. choose MCP servers and collect the credentials they need
  5. write .mcp.json, .env.local and .gitignore entries
  6. install node dependencies when package.json declares them

Running stackup with no subcommand does the same.`,
	Example: `  stackup                         # interactive setup in the current directory
  stackup -C ./app --skip-supabase
  stackup --json > setup.json     # prompts on stderr, report on stdout
  stackup --verify                # start each enabled MCP server afterwards`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func addSetupFlags(c *cobra.Command) {
	f := c.Flags()
	f.BoolVar(&setupSkipGitHub, "skip-github", false, "skip GitHub provisioning")
	f.BoolVar(&setupSkipSupabase, "skip-supabase", false, "skip Supabase provisioning")
	f.BoolVar(&setupNoInstall, "no-install", false, "never offer to install tools or dependencies")
	f.BoolVar(&setupVerify, "verify", false, "start each enabled MCP server and list its tools")
	f.BoolVar(&setupNoValidate, "no-validate", false, "do not check credentials against the provider APIs")
}

// promptOut is where interactive questions are drawn. In JSON mode stdout
// carries the report, so questions go to stderr.
func promptOut() io.Writer {
	if jsonout.Enabled {
		return os.Stderr
	}
	return os.Stdout
}

func runSetup(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	profile, err := loadProfile(dir)
	if err != nil {
		return err
	}
	user, err := config.LoadUser(config.UserPath())
	if err != nil {
		logger.Warn("ignoring user config: %v", err)
		user = &config.User{}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	info := platform.Detect()
	runner := proc.NewOS()
	pl := &setup.Pipeline{
		Options: setup.Options{
			Dir:          dir,
			RunID:        runID,
			Version:      Version,
			SkipGitHub:   setupSkipGitHub,
			SkipSupabase: setupSkipSupabase,
			NoInstall:    setupNoInstall,
			Verify:       setupVerify,
		},
		Profile:  profile,
		User:     user,
		Platform: info,
		Runner:   runner,
		Prompter: prompt.New(ctx, os.Stdin, promptOut()),
	}
	if user.WantsValidation() && !setupNoValidate {
		pl.Validator = validate.NewHTTP(validate.DefaultTimeout)
	}
	if user.WantsBrowser() && !jsonout.Enabled {
		pl.Opener = browserOpener(runner, info)
	}

	logger.Info("Setting up %s", dir)
	res, runErr := pl.Run(ctx)
	if err := writeResults(res); err != nil {
		return err
	}
	return runErr
}

func browserOpener(r proc.Runner, info platform.Info) credential.URLOpener {
	return opener.Opener{Runner: r, Info: info}
}

// writeResults prints the summary, or the JSON document in JSON mode.
func writeResults(res report.SetupResults) error {
	if jsonout.Enabled {
		return jsonout.Write(res)
	}
	if res.Platform.OS == "" {
		return nil
	}
	return report.Render(jsonout.MsgOut(), res)
}
