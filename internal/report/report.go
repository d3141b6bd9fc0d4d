// Package report aggregates every stage's result into SetupResults and
// renders the final summary. It decides nothing; it only reports.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/project"
	"github.com/protocollar/stackup/internal/provision"
	"github.com/protocollar/stackup/internal/writer"
)

// Server is the compiled state of one MCP server.
type Server struct {
	Name        string   `json:"name"`
	Enabled     bool     `json:"enabled"`
	Type        string   `json:"type,omitempty"`
	MissingVars []string `json:"missing_vars,omitempty"`
}

// MCP summarizes the server registry.
type MCP struct {
	Template         string   `json:"template"`
	Servers          []Server `json:"servers"`
	EnabledServers   []string `json:"enabled_servers"`
	CollectedEnvVars []string `json:"collected_env_vars"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Env summarizes the env file. Only names are reported.
type Env struct {
	Path      string   `json:"path"`
	Variables []string `json:"variables"`
}

// Verification is the smoke test of one server.
type Verification struct {
	Server string `json:"server"`
	Tools  int    `json:"tools"`
	Error  string `json:"error,omitempty"`
}

// SetupResults is the aggregate of one run. Stages fill it through With*
// methods that return a copy.
type SetupResults struct {
	RunID         string                      `json:"run_id"`
	Platform      platform.Info               `json:"platform"`
	Prerequisites prereq.Result               `json:"prerequisites"`
	AutoInstall   *prereq.InstallReport       `json:"auto_install,omitempty"`
	Services      map[string]provision.Result `json:"services"`
	MCP           MCP                         `json:"mcp"`
	Env           Env                         `json:"env"`
	Directories   project.Directories         `json:"directories"`
	ConfigFiles   []writer.Artifact           `json:"config_files"`
	PackageJSON   project.PackageJSON         `json:"package_json"`
	Dependencies  project.Dependencies        `json:"dependencies"`
	Verification  []Verification              `json:"verification,omitempty"`
	Warnings      []string                    `json:"warnings"`
}

// New starts the aggregate for a run.
func New(runID string, info platform.Info) SetupResults {
	return SetupResults{RunID: runID, Platform: info, Services: map[string]provision.Result{}}
}

func (r SetupResults) WithPrerequisites(p prereq.Result, install *prereq.InstallReport) SetupResults {
	r.Prerequisites = p
	r.AutoInstall = install
	return r
}

func (r SetupResults) WithDirectories(d project.Directories) SetupResults {
	r.Directories = d
	return r
}

// WithService adds one provisioner result, keyed by lowercase service name.
func (r SetupResults) WithService(res provision.Result) SetupResults {
	services := make(map[string]provision.Result, len(r.Services)+1)
	for k, v := range r.Services {
		services[k] = v
	}
	services[strings.ToLower(res.Service)] = res
	r.Services = services
	return r
}

func (r SetupResults) WithMCP(m MCP) SetupResults {
	r.MCP = m
	return r
}

func (r SetupResults) WithFiles(env Env, files []writer.Artifact) SetupResults {
	r.Env = env
	r.ConfigFiles = append([]writer.Artifact(nil), files...)
	return r
}

func (r SetupResults) WithDependencies(pkg project.PackageJSON, deps project.Dependencies) SetupResults {
	r.PackageJSON = pkg
	r.Dependencies = deps
	return r
}

func (r SetupResults) WithVerification(v []Verification) SetupResults {
	r.Verification = append([]Verification(nil), v...)
	return r
}

// Finalize computes the warnings. The result is handed to the renderer and
// not changed afterwards.
func (r SetupResults) Finalize() SetupResults {
	r.Warnings = Warnings(r)
	return r
}

// ServiceNames returns the service keys in sorted order.
func (r SetupResults) ServiceNames() []string {
	names := make([]string, 0, len(r.Services))
	for n := range r.Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Failed reports whether any artifact could not be written.
func (r SetupResults) Failed() bool {
	for _, a := range r.ConfigFiles {
		if a.Status == writer.Failed {
			return true
		}
	}
	return false
}

// Warnings derives the cross-cutting warnings, in a fixed order.
func Warnings(r SetupResults) []string {
	out := []string{}
	out = append(out, r.Platform.Warnings...)
	out = append(out, r.Prerequisites.Warnings...)
	if r.AutoInstall != nil {
		for _, a := range r.AutoInstall.Attempts {
			if !a.OK {
				out = append(out, fmt.Sprintf("could not install %s: %s", a.Tool, a.Reason))
			}
		}
	}
	for _, name := range r.ServiceNames() {
		out = append(out, r.Services[name].Warnings...)
	}
	if len(r.MCP.Servers) > 0 && len(r.MCP.EnabledServers) == 0 {
		out = append(out, "no MCP servers enabled")
	}
	out = append(out, r.MCP.Warnings...)
	for _, s := range r.MCP.Servers {
		if s.Enabled && len(s.MissingVars) > 0 {
			out = append(out, fmt.Sprintf("credentials incomplete for %s: %s", s.Name, strings.Join(s.MissingVars, ", ")))
		}
	}
	failedDirs := make([]string, 0, len(r.Directories.Failed))
	for d := range r.Directories.Failed {
		failedDirs = append(failedDirs, d)
	}
	sort.Strings(failedDirs)
	for _, d := range failedDirs {
		out = append(out, fmt.Sprintf("could not create %s: %s", d, r.Directories.Failed[d]))
	}
	if r.PackageJSON.Error != "" {
		out = append(out, r.PackageJSON.Error)
	}
	for _, a := range r.ConfigFiles {
		if a.Status == writer.Failed {
			out = append(out, fmt.Sprintf("could not write %s: %s", a.Path, a.Error()))
		}
	}
	if r.Dependencies.Status == project.DepsFailed {
		out = append(out, "dependency install failed: "+r.Dependencies.Detail)
	}
	for _, v := range r.Verification {
		if v.Error != "" {
			out = append(out, fmt.Sprintf("MCP server %s did not start: %s", v.Server, v.Error))
		}
	}
	return out
}
