package cmd

import (
	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/report"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the platform and required tools without changing anything",
	Long: `Detect the platform and check git, node, npm, gh and supabase.

Nothing is installed or written. Exits with status 10 when a required tool
is missing or too old.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	timeout := config.DefaultCheckTimeout
	if dir, err := projectDir(); err == nil {
		if p, err := loadProfile(dir); err == nil {
			timeout = p.CheckTimeout
		}
	}

	info := platform.Detect()
	checker := prereq.New(proc.NewOS(), timeout)
	res := report.New(runID, info).
		WithPrerequisites(checker.Check(cmd.Context(), info), nil).
		Finalize()

	if jsonout.Enabled {
		if err := jsonout.Write(struct {
			Platform      platform.Info `json:"platform"`
			Prerequisites prereq.Result `json:"prerequisites"`
			Warnings      []string      `json:"warnings"`
		}{res.Platform, res.Prerequisites, res.Warnings}); err != nil {
			return err
		}
	} else if err := report.RenderPrerequisites(jsonout.MsgOut(), res); err != nil {
		return err
	}

	if !res.Prerequisites.Passed {
		return exitcode.New("prerequisites_unmet", exitcode.PrerequisitesUnmet, "required tools are missing")
	}
	return nil
}
