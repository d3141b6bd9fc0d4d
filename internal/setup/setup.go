// Package setup runs the provisioning pipeline for one project directory:
// prerequisites, service provisioning, MCP server selection, credential
// collection, and the configuration writes. Every stage is idempotent, so
// running it again converges on the same files.
package setup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/envfile"
	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/gh"
	"github.com/protocollar/stackup/internal/git"
	"github.com/protocollar/stackup/internal/github"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/mcp"
	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/project"
	"github.com/protocollar/stackup/internal/prompt"
	"github.com/protocollar/stackup/internal/provision"
	"github.com/protocollar/stackup/internal/registry"
	"github.com/protocollar/stackup/internal/report"
	"github.com/protocollar/stackup/internal/supabase"
	"github.com/protocollar/stackup/internal/validate"
	"github.com/protocollar/stackup/internal/writer"
)

// Options are the per-run switches set from the command line.
type Options struct {
	Dir          string
	RunID        string
	Version      string
	SkipGitHub   bool
	SkipSupabase bool
	NoInstall    bool
	Verify       bool
}

// Pipeline holds everything one run needs. Runner, Prompter and Profile are
// required.
type Pipeline struct {
	Options  Options
	Profile  *config.Profile
	User     *config.User
	Platform platform.Info
	Runner   proc.Runner
	Prompter prompt.Prompter

	Validator validate.Validator   // nil disables live validation
	Opener    credential.URLOpener // nil never offers to open URLs

	// Services replaces the GitHub and Supabase provisioners when set.
	Services []provision.Service
	// Dial connects to MCP servers during verification; nil uses mcp.Dial.
	Dial mcp.Dialer
}

const builtinTemplate = "built-in"

// Run executes the pipeline. The returned results are complete up to the
// stage that stopped the run; err carries the exit code.
func (p *Pipeline) Run(ctx context.Context) (report.SetupResults, error) {
	res := report.New(p.Options.RunID, p.Platform)
	logger.Event("setup started", "dir", p.Options.Dir, "os", string(p.Platform.OS))

	pr, install, err := p.prerequisites(ctx)
	res = res.WithPrerequisites(pr, install)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return res.Finalize(), wrapPromptErr(err)
	}
	if !pr.Passed {
		tools := make([]string, 0, len(pr.Issues))
		for _, is := range pr.Issues {
			tools = append(tools, is.Tool)
		}
		return res.Finalize(), exitcode.Errorf("prerequisites_unmet", exitcode.PrerequisitesUnmet,
			"prerequisites not met: %s", strings.Join(tools, ", "))
	}

	tmpl, tmplName, err := p.template()
	if err != nil {
		return res.Finalize(), exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}

	catalog := p.Profile.Catalog()
	have, err := p.existingCredentials(tmpl, catalog)
	if err != nil {
		return res.Finalize(), exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	collector := &credential.Collector{
		Prompter:  p.Prompter,
		Catalog:   catalog,
		Validator: p.Validator,
		Opener:    p.Opener,
	}

	var serviceVars []string
	for _, svc := range p.services() {
		key := strings.ToLower(svc.Name())
		cfg := p.serviceConfig(key)
		if p.skipped(key) || !cfg.IsEnabled() {
			logger.Info("Skipping %s", svc.Name())
			continue
		}
		prov := &provision.Provisioner{
			Service:   svc,
			Prompter:  p.Prompter,
			Collector: collector,
			Policy: provision.Policy{
				AllowInstall:     !p.Options.NoInstall,
				Required:         cfg.IsRequired(),
				DiscoveryRetries: p.Profile.Discovery.Retries,
				RetryDelay:       p.Profile.Discovery.RetryDelay,
			},
		}
		sr, err := prov.Run(ctx, have)
		res = res.WithService(sr)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			if errors.Is(err, provision.ErrAborted) {
				return res.Finalize(), exitcode.Wrap("aborted", exitcode.GeneralError, err)
			}
			return res.Finalize(), wrapPromptErr(err)
		}
		have = have.Merge(sr.Credentials)
		serviceVars = append(serviceVars, svc.RequiredCredentials()...)
		if cfg.IsRequired() && sr.Outcome == provision.Unconfigured {
			return res.Finalize(), exitcode.Errorf("credentials_missing", exitcode.CredentialsMissing,
				"%s is required but not configured (missing %s)", svc.Name(), strings.Join(sr.MissingRequired, ", "))
		}
	}

	enabled, err := p.selectServers(tmpl)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return res.Finalize(), wrapPromptErr(err)
	}

	var (
		serverVars []string
		warnings   []string
	)
	for _, name := range tmpl.Names() {
		if !enabled[name] {
			continue
		}
		vars := registry.RequiredVars(tmpl.Servers[name])
		serverVars = append(serverVars, vars...)
		delta, err := collector.Collect(ctx, name, vars, have)
		if err != nil {
			return res.Finalize(), wrapPromptErr(err)
		}
		have = have.Merge(delta.Set)
		warnings = append(warnings, delta.Warnings...)
	}

	delta, missing, err := collector.Require(ctx, "stackup", catalog.HardRequired(serverVars), have)
	if err != nil {
		return res.Finalize(), wrapPromptErr(err)
	}
	have = have.Merge(delta.Set)
	warnings = append(warnings, delta.Warnings...)
	if len(missing) > 0 {
		return res.Finalize(), exitcode.Errorf("credentials_missing", exitcode.CredentialsMissing,
			"required credentials missing: %s", strings.Join(missing, ", "))
	}

	compiled := registry.Compile(tmpl, enabled, have, p.Platform)
	res = res.WithMCP(summarize(tmplName, tmpl, compiled, have, serverVars, warnings))

	envValues := selectValues(have, append(serviceVars, serverVars...))
	if err := ctx.Err(); err != nil {
		return res.Finalize(), wrapPromptErr(err)
	}
	files, err := p.write(compiled, envValues)
	if err != nil {
		return res.Finalize(), err
	}
	res = res.WithFiles(report.Env{
		Path:      p.Profile.Resolve(p.Options.Dir, p.Profile.EnvFile),
		Variables: sortedKeys(envValues),
	}, files)
	res = res.WithDirectories(project.EnsureDirs(p.Options.Dir, p.Profile.Directories))

	pkg := project.InspectPackageJSON(p.Options.Dir)
	installer := project.Installer{Runner: p.Runner, Prompter: p.Prompter, Dir: p.Options.Dir}
	deps, err := installer.Install(ctx, pkg, *p.Profile.InstallDependencies && !p.Options.NoInstall)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return res.Finalize(), wrapPromptErr(err)
	}
	res = res.WithDependencies(pkg, deps)

	if p.Options.Verify {
		v := mcp.Verifier{Dial: p.Dial, Version: p.Options.Version}
		res = res.WithVerification(v.VerifyAll(ctx, compiled))
	}

	res = res.Finalize()
	logger.Event("setup finished", "warnings", len(res.Warnings), "failed", res.Failed())
	if res.Failed() {
		return res, exitcode.New("write_failed", exitcode.WriteFailed, "could not write every configuration file")
	}
	return res, nil
}

func (p *Pipeline) prerequisites(ctx context.Context) (prereq.Result, *prereq.InstallReport, error) {
	checker := prereq.New(p.Runner, p.Profile.CheckTimeout)
	pr := checker.Check(ctx, p.Platform)
	if pr.Passed {
		logger.Success("Prerequisites satisfied")
		return pr, nil, nil
	}
	for _, is := range pr.Issues {
		logger.Error("%s", is.Message)
		if is.Instructions != "" {
			logger.Info("  %s", is.Instructions)
		}
	}

	tools := checker.Installable(p.Platform, pr, p.preferredManager())
	if len(tools) == 0 || p.Options.NoInstall {
		return pr, nil, nil
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	ok, err := p.Prompter.YesNo(fmt.Sprintf("Install %s now?", strings.Join(names, ", ")), true)
	if err != nil || !ok {
		return pr, nil, err
	}
	rep := checker.AutoInstall(ctx, p.Platform, pr, p.preferredManager())
	return checker.Check(ctx, p.Platform), &rep, nil
}

func (p *Pipeline) preferredManager() string {
	if p.User == nil {
		return ""
	}
	return p.User.PackageManager
}

func (p *Pipeline) template() (*registry.Registry, string, error) {
	path := p.Profile.Resolve(p.Options.Dir, p.Profile.Template)
	tmpl, err := registry.LoadTemplate(path)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); err != nil {
		return tmpl, builtinTemplate, nil
	}
	return tmpl, p.Profile.Template, nil
}

// existingCredentials reads every known variable from the env file, then
// from the process environment.
func (p *Pipeline) existingCredentials(tmpl *registry.Registry, catalog credential.Catalog) (credential.Set, error) {
	fileVals, err := envfile.Read(p.Profile.Resolve(p.Options.Dir, p.Profile.EnvFile))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n := range catalog {
		add(n)
	}
	for _, name := range tmpl.Names() {
		for _, v := range registry.RequiredVars(tmpl.Servers[name]) {
			add(v)
		}
	}
	for _, svc := range p.services() {
		for _, v := range svc.RequiredCredentials() {
			add(v)
		}
	}
	sort.Strings(names)
	have := credential.FromLookup(names, envfile.Lookup(fileVals, envfile.Environ()))
	logger.Debug("found %d existing credentials", len(have.ConfiguredNames()))
	return have, nil
}

func (p *Pipeline) services() []provision.Service {
	if p.Services != nil {
		return p.Services
	}
	installer := prereq.Installer{Runner: p.Runner, Info: p.Platform, Preferred: p.preferredManager()}
	timeout := p.Profile.CheckTimeout
	p.Services = []provision.Service{
		&github.Service{
			GH:        gh.Client{Runner: p.Runner, Dir: p.Options.Dir, Timeout: timeout},
			Git:       git.Client{Runner: p.Runner, Dir: p.Options.Dir, Timeout: timeout},
			Installer: installer,
		},
		&supabase.Service{
			CLI:       supabase.CLI{Runner: p.Runner, Dir: p.Options.Dir, Timeout: timeout},
			Installer: installer,
		},
	}
	return p.Services
}

func (p *Pipeline) serviceConfig(key string) config.ServiceConfig {
	switch key {
	case "github":
		return p.Profile.Services.GitHub
	case "supabase":
		return p.Profile.Services.Supabase
	}
	return config.ServiceConfig{}
}

func (p *Pipeline) skipped(key string) bool {
	switch key {
	case "github":
		return p.Options.SkipGitHub
	case "supabase":
		return p.Options.SkipSupabase
	}
	return false
}

// selectServers asks about every server the profile does not decide. The
// default answer is the server's state in the previous output, or the
// template default on a first run.
func (p *Pipeline) selectServers(tmpl *registry.Registry) (map[string]bool, error) {
	overrides := p.Profile.ServerOverrides()
	defaults := registry.DefaultEnabled(tmpl, nil)

	prev, err := registry.Load(p.Profile.Resolve(p.Options.Dir, p.Profile.Output))
	if err != nil {
		logger.Warn("ignoring previous %s: %v", p.Profile.Output, err)
		prev = nil
	}

	enabled := make(map[string]bool, len(tmpl.Servers))
	for _, name := range tmpl.Names() {
		if v, ok := overrides[name]; ok {
			enabled[name] = v
			continue
		}
		def := defaults[name]
		if prev != nil {
			if e, ok := prev.Servers[name]; ok {
				def = !e.Disabled
			}
		}
		q := fmt.Sprintf("Enable the %s MCP server?", name)
		if d := tmpl.Servers[name].Description; d != "" {
			q = fmt.Sprintf("Enable the %s MCP server (%s)?", name, d)
		}
		ok, err := p.Prompter.YesNo(q, def)
		if err != nil {
			return nil, err
		}
		enabled[name] = ok
	}
	return enabled, nil
}

// gitignoreEntries is the profile's list plus the lock files flock.With
// leaves beside each artifact.
func (p *Pipeline) gitignoreEntries() []string {
	out := append([]string(nil), p.Profile.Gitignore...)
	for _, name := range []string{p.Profile.Output, p.Profile.EnvFile, ".gitignore"} {
		if name != "" && !filepath.IsAbs(name) {
			out = append(out, filepath.ToSlash(filepath.Clean(name))+".lock")
		}
	}
	return out
}

func (p *Pipeline) write(compiled *registry.Registry, envValues map[string]string) ([]writer.Artifact, error) {
	data, err := registry.Marshal(compiled)
	if err != nil {
		return nil, err
	}
	dir := p.Options.Dir
	files := []writer.Artifact{
		writer.WriteRegistry(p.Profile.Resolve(dir, p.Profile.Output), data),
		writer.WriteEnv(p.Profile.Resolve(dir, p.Profile.EnvFile), envValues),
		writer.EnsureGitignore(filepath.Join(dir, ".gitignore"), p.gitignoreEntries()),
	}
	for _, f := range files {
		if f.Status != writer.Failed {
			logger.Success("%s %s", filepath.Base(f.Path), f.Status)
		}
	}
	return files, nil
}

func summarize(tmplName string, tmpl, compiled *registry.Registry, have credential.Set, serverVars, warnings []string) report.MCP {
	m := report.MCP{
		Template:       tmplName,
		Servers:        make([]report.Server, 0, len(tmpl.Servers)),
		EnabledServers: []string{},
		Warnings:       warnings,
	}
	for _, name := range compiled.Names() {
		e := compiled.Servers[name]
		s := report.Server{Name: name, Enabled: !e.Disabled, Type: e.Type}
		if s.Type == "" {
			s.Type = "stdio"
		}
		if s.Enabled {
			s.MissingVars = registry.RequiredVars(e)
			m.EnabledServers = append(m.EnabledServers, name)
		}
		m.Servers = append(m.Servers, s)
	}
	m.CollectedEnvVars = sortedKeys(selectValues(have, serverVars))
	return m
}

// selectValues returns the configured values among names.
func selectValues(have credential.Set, names []string) map[string]string {
	out := make(map[string]string)
	for _, n := range names {
		if v, ok := have.Get(n); ok && credential.IsConfigured(v) {
			out[n] = v
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func wrapPromptErr(err error) error {
	if errors.Is(err, prompt.ErrCancelled) || errors.Is(err, context.Canceled) {
		return exitcode.Wrap("cancelled", exitcode.Cancelled, err)
	}
	if errors.Is(err, prompt.ErrNoInput) {
		return exitcode.Wrap("interactive_only", exitcode.InteractiveOnly, err)
	}
	return err
}
