package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/project"
	"github.com/protocollar/stackup/internal/provision"
	"github.com/protocollar/stackup/internal/tui"
	"github.com/protocollar/stackup/internal/writer"
)

const panelWidth = 72

// Render writes the human summary. Every line passes through the secret
// redactor.
func Render(w io.Writer, r SetupResults) error {
	sections := []string{
		tui.Panel("Platform", platformSection(r), panelWidth),
		tui.Panel("Prerequisites", prereqSection(r), panelWidth),
	}
	if len(r.Services) > 0 {
		sections = append(sections, tui.Panel("Services", servicesSection(r), panelWidth))
	}
	if len(r.MCP.Servers) > 0 {
		sections = append(sections, tui.Panel("MCP servers", mcpSection(r), panelWidth))
	}
	sections = append(sections, tui.Panel("Project", projectSection(r), panelWidth))
	if len(r.Warnings) > 0 {
		sections = append(sections, tui.Panel("Warnings", warningsSection(r.Warnings), panelWidth))
	}
	_, err := fmt.Fprintln(w, logger.Redact(strings.Join(sections, "\n")))
	return err
}

// RenderPrerequisites writes only the platform and prerequisite panels.
func RenderPrerequisites(w io.Writer, r SetupResults) error {
	sections := []string{
		tui.Panel("Platform", platformSection(r), panelWidth),
		tui.Panel("Prerequisites", prereqSection(r), panelWidth),
	}
	if len(r.Warnings) > 0 {
		sections = append(sections, tui.Panel("Warnings", warningsSection(r.Warnings), panelWidth))
	}
	_, err := fmt.Fprintln(w, strings.Join(sections, "\n"))
	return err
}

func platformSection(r SetupResults) string {
	p := r.Platform
	pms := make([]string, 0, len(p.PackageManagers))
	for name, ok := range p.PackageManagers {
		if ok {
			pms = append(pms, name)
		}
	}
	sort.Strings(pms)
	if len(pms) == 0 {
		pms = []string{"none"}
	}
	return strings.Join([]string{
		tui.Row("OS", string(p.OS)),
		tui.Row("Shell", p.Shell),
		tui.Row("Package managers", strings.Join(pms, ", ")),
	}, "\n")
}

func prereqSection(r SetupResults) string {
	names := make([]string, 0, len(r.Prerequisites.Tools))
	for n := range r.Prerequisites.Tools {
		names = append(names, n)
	}
	sort.Strings(names)

	var lines []string
	for _, n := range names {
		st := r.Prerequisites.Tools[n]
		var v string
		switch {
		case st.Present && st.Compatible:
			v = tui.OK("✓ " + st.Version)
		case st.Present:
			v = tui.Failed("✗ " + st.Version + " (too old)")
		case st.Required:
			v = tui.Failed("✗ missing")
		default:
			v = tui.Skipped("- not installed")
		}
		lines = append(lines, tui.Row(n, v))
	}
	for _, issue := range r.Prerequisites.Issues {
		lines = append(lines, tui.Failed(issue.Message))
		if issue.Instructions != "" {
			lines = append(lines, tui.Dim("  "+issue.Instructions))
		}
	}
	if len(lines) == 0 {
		return tui.Dim("not checked")
	}
	return strings.Join(lines, "\n")
}

func outcome(o provision.Outcome) string {
	switch o {
	case provision.FullyConfigured:
		return tui.OK("✓ " + string(o))
	case provision.PartiallyConfigured:
		return tui.Skipped("~ " + string(o))
	default:
		return tui.Failed("✗ " + string(o))
	}
}

func servicesSection(r SetupResults) string {
	var lines []string
	for _, key := range r.ServiceNames() {
		s := r.Services[key]
		lines = append(lines, tui.Row(s.Service, outcome(s.Outcome)))
		for _, step := range s.Steps {
			if step.Step == provision.StepDetect {
				continue
			}
			text := string(step.Status)
			if step.Detail != "" {
				text += " (" + step.Detail + ")"
			}
			switch step.Status {
			case provision.StatusDone, provision.StatusAlreadyDone:
				text = tui.OK(text)
			case provision.StatusFailed:
				text = tui.Failed(text)
			default:
				text = tui.Skipped(text)
			}
			lines = append(lines, tui.Row("  "+string(step.Step), text))
		}
	}
	return strings.Join(lines, "\n")
}

func mcpSection(r SetupResults) string {
	var lines []string
	for _, s := range r.MCP.Servers {
		var v string
		switch {
		case !s.Enabled:
			v = tui.Dim("disabled")
		case len(s.MissingVars) > 0:
			v = tui.Skipped("enabled, missing " + strings.Join(s.MissingVars, ", "))
		default:
			v = tui.OK("✓ enabled")
		}
		lines = append(lines, tui.Row(s.Name, v))
	}
	if len(r.MCP.CollectedEnvVars) > 0 {
		lines = append(lines, "", tui.Row("Credentials", strings.Join(r.MCP.CollectedEnvVars, ", ")))
	}
	return strings.Join(lines, "\n")
}

func artifact(a writer.Artifact) string {
	switch a.Status {
	case writer.Created, writer.Updated:
		return tui.OK("✓ " + string(a.Status))
	case writer.Unchanged:
		return tui.Dim(string(a.Status))
	default:
		return tui.Failed("✗ " + a.Error())
	}
}

func projectSection(r SetupResults) string {
	var lines []string
	for _, a := range r.ConfigFiles {
		lines = append(lines, tui.Row(a.Path, artifact(a)))
	}
	if n := len(r.Directories.Created); n > 0 {
		lines = append(lines, tui.Row("Directories", tui.OK(fmt.Sprintf("created %s", strings.Join(r.Directories.Created, ", ")))))
	}
	switch {
	case !r.PackageJSON.Exists:
		lines = append(lines, tui.Row("package.json", tui.Dim("none")))
	case r.PackageJSON.Name != "":
		lines = append(lines, tui.Row("package.json", r.PackageJSON.Name))
	}
	if r.Dependencies.Status != "" && r.Dependencies.Status != project.DepsNotNeeded {
		lines = append(lines, tui.Row("Dependencies", string(r.Dependencies.Status)))
	}
	for _, v := range r.Verification {
		if v.Error == "" {
			lines = append(lines, tui.Row("verify "+v.Server, tui.OK(fmt.Sprintf("✓ %d tools", v.Tools))))
		} else {
			lines = append(lines, tui.Row("verify "+v.Server, tui.Failed("✗ "+v.Error)))
		}
	}
	if len(lines) == 0 {
		return tui.Dim("nothing written")
	}
	return strings.Join(lines, "\n")
}

func warningsSection(ws []string) string {
	lines := make([]string, len(ws))
	for i, w := range ws {
		lines[i] = tui.Skipped("! ") + w
	}
	return strings.Join(lines, "\n")
}
