package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/jsonout"
	stackupmcp "github.com/protocollar/stackup/internal/mcp"
	"github.com/protocollar/stackup/internal/registry"
	"github.com/protocollar/stackup/internal/tui"
)

var verifyTimeout time.Duration

func init() {
	mcpVerifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", stackupmcp.DefaultVerifyTimeout, "per-server start and handshake timeout")
	mcpCmd.AddCommand(mcpVerifyCmd)
}

var mcpVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Start each enabled server in .mcp.json and list its tools",
	Args:  cobra.NoArgs,
	RunE:  runMCPVerify,
}

func runMCPVerify(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	p, err := loadProfile(dir)
	if err != nil {
		return err
	}
	path := p.Resolve(dir, p.Output)
	reg, err := registry.Load(path)
	if err != nil {
		return exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	if reg == nil {
		return exitcode.Errorf("config_error", exitcode.ConfigError, "%s not found (run stackup first)", path)
	}

	v := stackupmcp.Verifier{Timeout: verifyTimeout, Version: Version}
	results := v.VerifyAll(cmd.Context(), reg)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if jsonout.Enabled {
		if err := jsonout.Write(results); err != nil {
			return err
		}
	} else {
		var lines []string
		for _, r := range results {
			if r.Error != "" {
				lines = append(lines, tui.Row(r.Server, tui.Failed("✗ "+r.Error)))
			} else {
				lines = append(lines, tui.Row(r.Server, tui.OK(fmt.Sprintf("✓ %d tools", r.Tools))))
			}
		}
		if len(lines) == 0 {
			lines = append(lines, tui.Dim("no enabled servers"))
		}
		fmt.Fprintln(jsonout.MsgOut(), tui.Panel("MCP servers", strings.Join(lines, "\n"), 72))
	}

	if failed > 0 {
		return exitcode.Errorf("verify_failed", exitcode.GeneralError, "%d of %d servers failed to start", failed, len(results))
	}
	return nil
}
