// Package prereq checks that the external tools the setup depends on are
// present and recent enough. Checking never changes the system; AutoInstall
// is a separate, explicit step.
package prereq

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/proc"
)

// Issue is a blocking problem with a required tool.
type Issue struct {
	Tool         string `json:"tool"`
	Message      string `json:"message"`
	Instructions string `json:"instructions,omitempty"`
}

// Status is the observed state of one tool.
type Status struct {
	Present    bool   `json:"present"`
	Version    string `json:"version,omitempty"`
	Compatible bool   `json:"compatible"`
	Required   bool   `json:"required"`
}

// Result is the outcome of one Check.
type Result struct {
	Passed          bool              `json:"passed"`
	Issues          []Issue           `json:"issues"`
	Warnings        []string          `json:"warnings"`
	PackageManagers map[string]bool   `json:"package_managers"`
	Tools           map[string]Status `json:"tools"`
}

// Checker checks tools with bounded timeouts.
type Checker struct {
	Runner  proc.Runner
	Tools   []Tool
	Timeout time.Duration
}

// New returns a Checker for the default tool set.
func New(r proc.Runner, timeout time.Duration) *Checker {
	return &Checker{Runner: r, Tools: DefaultTools(), Timeout: timeout}
}

var versionRe = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ParseVersion extracts the first dotted version number from check output.
func ParseVersion(out string) (version string, major int, ok bool) {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return "", 0, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}
	return m[0], major, true
}

// Check checks every tool. It is read-only and safe to call repeatedly.
func (c *Checker) Check(ctx context.Context, info platform.Info) Result {
	res := Result{
		Passed:          true,
		Issues:          []Issue{},
		Warnings:        []string{},
		PackageManagers: info.PackageManagers,
		Tools:           make(map[string]Status, len(c.Tools)),
	}

	for _, tool := range c.Tools {
		st := c.query(ctx, tool)
		res.Tools[tool.Name] = st

		switch {
		case st.Present && st.Compatible:
			continue
		case st.Present && !st.Compatible:
			msg := fmt.Sprintf("%s %s is too old (need %d or newer)", tool.Name, st.Version, tool.MinMajor)
			if tool.Required {
				res.Issues = append(res.Issues, Issue{Tool: tool.Name, Message: msg, Instructions: tool.Instructions[info.OS]})
			} else {
				res.Warnings = append(res.Warnings, msg)
			}
		case tool.Required:
			res.Issues = append(res.Issues, Issue{
				Tool:         tool.Name,
				Message:      fmt.Sprintf("%s is not installed (needed for %s)", tool.Name, tool.Purpose),
				Instructions: tool.Instructions[info.OS],
			})
		default:
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%s is not installed; %s will be limited", tool.Name, tool.Purpose))
		}
	}

	res.Passed = len(res.Issues) == 0
	return res
}

func (c *Checker) query(ctx context.Context, tool Tool) Status {
	st := Status{Required: tool.Required}
	r := c.Runner.Capture(ctx, proc.Cmd{Name: tool.Binary, Args: tool.VersionArgs, Timeout: c.Timeout})
	if !r.OK() {
		return st
	}
	st.Present = true
	st.Compatible = true

	version, major, ok := ParseVersion(r.Output())
	if !ok {
		// Present but unparseable: trust it rather than block on a format change.
		return st
	}
	st.Version = version
	if tool.MinMajor > 0 && major < tool.MinMajor {
		st.Compatible = false
	}
	return st
}

// InstallAttempt records one auto-install.
type InstallAttempt struct {
	Tool   string `json:"tool"`
	Cmd    string `json:"cmd"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// InstallReport is the outcome of AutoInstall.
type InstallReport struct {
	Attempts       []InstallAttempt `json:"attempts"`
	NoInstallerFor []string         `json:"no_installer_for,omitempty"`
}

// Installable returns the failing tools that have an install command on this
// platform.
func (c *Checker) Installable(info platform.Info, res Result, preferred string) []Tool {
	var out []Tool
	for _, issue := range res.Issues {
		tool, ok := c.lookup(issue.Tool)
		if !ok {
			continue
		}
		if _, ok := ResolveInstall(info, tool, preferred); ok {
			out = append(out, tool)
		}
	}
	return out
}

// AutoInstall runs the installer for every tool with an issue. Installers
// are interactive: they may prompt for a password and must not be timed out.
func (c *Checker) AutoInstall(ctx context.Context, info platform.Info, res Result, preferred string) InstallReport {
	var report InstallReport
	for _, issue := range res.Issues {
		tool, ok := c.lookup(issue.Tool)
		if !ok {
			continue
		}
		cmd, ok := ResolveInstall(info, tool, preferred)
		if !ok {
			report.NoInstallerFor = append(report.NoInstallerFor, tool.Name)
			continue
		}
		r := c.Runner.Interactive(ctx, cmd)
		report.Attempts = append(report.Attempts, InstallAttempt{
			Tool:   tool.Name,
			Cmd:    cmd.String(),
			OK:     r.OK(),
			Reason: r.Reason(),
		})
	}
	return report
}

func (c *Checker) lookup(name string) (Tool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
