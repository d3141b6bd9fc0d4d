package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/prompt"
	"github.com/protocollar/stackup/internal/validate"
)

// ErrAborted is returned when the user chooses to abort the whole setup
// after a failed step.
var ErrAborted = errors.New("setup aborted by user")

// Policy configures one run.
type Policy struct {
	// AllowInstall permits offering to install a missing CLI.
	AllowInstall bool
	// Required turns missing hard-required credentials into Unconfigured.
	Required bool
	// DiscoveryRetries is how many times a failed or empty project listing
	// is retried before falling back to manual entry.
	DiscoveryRetries int
	RetryDelay       time.Duration
}

// Provisioner drives one Service.
type Provisioner struct {
	Service   Service
	Prompter  prompt.Prompter
	Collector *credential.Collector
	Policy    Policy
}

const (
	choiceRetry = iota
	choiceSkip
	choiceAbort
)

var failureChoices = []string{"Retry", "Skip this step", "Abort setup"}

const (
	manualEntryLabel = "Enter manually…"
	skipLinkLabel    = "Skip linking"
)

// Run provisions the service. have holds credentials gathered so far; they
// are never prompted for again. The returned Result carries only the
// credentials this run added.
func (p *Provisioner) Run(ctx context.Context, have credential.Set) (Result, error) {
	svc := p.Service
	name := svc.Name()
	res := Result{Service: name, Credentials: make(credential.Set), Warnings: []string{}}
	logger.Info("Setting up %s", name)

	// detect
	version, installed := svc.CLIVersion(ctx)
	res.State.CLIInstalled = installed
	res.CLIVersion = version
	if installed {
		res.add(StepDetect, StatusDone, version)
	} else {
		res.add(StepDetect, StatusDone, "CLI not found")
	}

	// install
	switch {
	case installed:
		res.add(StepInstall, StatusAlreadyDone, "")
	case !p.Policy.AllowInstall:
		res.add(StepInstall, StatusSkipped, "installs disabled")
	default:
		ok, err := p.Prompter.YesNo(fmt.Sprintf("The %s CLI is not installed. Install it now?", name), true)
		if err != nil {
			return res, err
		}
		if !ok {
			res.add(StepInstall, StatusSkipped, "declined")
			break
		}
		status, detail, err := p.attempt(ctx, StepInstall, svc.Install)
		if err != nil {
			return res, err
		}
		if status == StatusDone {
			res.CLIVersion, res.State.CLIInstalled = svc.CLIVersion(ctx)
			if !res.State.CLIInstalled {
				status, detail = StatusFailed, "installed, but the CLI is still not on PATH"
			}
		}
		res.add(StepInstall, status, detail)
	}

	// authenticate
	switch {
	case !res.State.CLIInstalled:
		res.add(StepAuthenticate, StatusSkipped, "CLI not installed")
	case svc.IsAuthenticated(ctx):
		res.State.LoggedIn = true
		res.add(StepAuthenticate, StatusAlreadyDone, "")
	default:
		if err := p.offer(ctx, &res, StepAuthenticate, fmt.Sprintf("Log in to %s now?", name), svc.Login, func() bool {
			res.State.LoggedIn = svc.IsAuthenticated(ctx)
			return res.State.LoggedIn
		}); err != nil {
			return res, err
		}
	}

	// initialize
	switch {
	case !res.State.LoggedIn:
		res.add(StepInitialize, StatusSkipped, "not authenticated")
	case svc.IsInitialized(ctx):
		res.State.Initialized = true
		res.add(StepInitialize, StatusAlreadyDone, "")
	default:
		if err := p.offer(ctx, &res, StepInitialize, fmt.Sprintf("Initialize %s in this directory?", name), svc.Initialize, func() bool {
			res.State.Initialized = svc.IsInitialized(ctx)
			return res.State.Initialized
		}); err != nil {
			return res, err
		}
	}

	// link
	if !res.State.Initialized {
		res.add(StepLink, StatusSkipped, "not initialized")
	} else if proj, ok := svc.IsLinked(ctx); ok {
		res.State.Linked = true
		res.LinkedProject = &proj
		res.add(StepLink, StatusAlreadyDone, proj.Label())
	} else if err := p.link(ctx, &res); err != nil {
		return res, err
	}

	// credentials always run, independent of the CLI steps
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := p.credentials(ctx, &res, have); err != nil {
		return res, err
	}

	res.Outcome = p.outcome(res, have)
	logger.Event("service provisioned", "service", name, "outcome", string(res.Outcome))
	return res, nil
}

func (r *Result) add(step Step, status StepStatus, detail string) {
	r.Steps = append(r.Steps, StepResult{Step: step, Status: status, Detail: detail})
	if status == StatusFailed {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s %s failed: %s", r.Service, step, detail))
	}
}

// offer asks before running action, then confirms it with verify.
func (p *Provisioner) offer(ctx context.Context, res *Result, step Step, question string, action func(context.Context) error, verify func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := p.Prompter.YesNo(question, true)
	if err != nil {
		return err
	}
	if !ok {
		res.add(step, StatusSkipped, "declined")
		return nil
	}
	status, detail, err := p.attempt(ctx, step, action)
	if err != nil {
		return err
	}
	if status == StatusDone && !verify() {
		status, detail = StatusFailed, "completed, but the check still fails"
	}
	res.add(step, status, detail)
	return nil
}

// attempt runs action until it succeeds or the user skips or aborts.
func (p *Provisioner) attempt(ctx context.Context, step Step, action func(context.Context) error) (StepStatus, string, error) {
	for {
		err := action(ctx)
		if err == nil {
			logger.Success("%s: %s complete", p.Service.Name(), step)
			return StatusDone, "", nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return StatusFailed, err.Error(), cerr
		}
		logger.Warn("%s: %s failed: %v", p.Service.Name(), step, err)

		choice, perr := p.Prompter.Choice(fmt.Sprintf("%s %s failed. What next?", p.Service.Name(), step), failureChoices, choiceRetry)
		if perr != nil {
			return StatusFailed, err.Error(), perr
		}
		switch choice {
		case choiceRetry:
			continue
		case choiceSkip:
			return StatusFailed, err.Error(), nil
		default:
			return StatusFailed, err.Error(), ErrAborted
		}
	}
}

// discover lists remote projects, retrying failed or empty results per
// policy.
func (p *Provisioner) discover(ctx context.Context) ([]Project, error) {
	var (
		projects []Project
		err      error
	)
	for i := 0; i <= p.Policy.DiscoveryRetries; i++ {
		if i > 0 && p.Policy.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.Policy.RetryDelay):
			}
		}
		projects, err = p.Service.ListRemoteProjects(ctx)
		if err == nil && len(projects) > 0 {
			return projects, nil
		}
	}
	return projects, err
}

func (p *Provisioner) link(ctx context.Context, res *Result) error {
	name := p.Service.Name()
	projects, err := p.discover(ctx)

	var target Project
	switch {
	case err != nil:
		logger.Warn("Could not list %s projects (%v); enter the project manually", name, err)
	case len(projects) == 0:
		logger.Info("No %s projects found; enter the project manually", name)
	default:
		options := make([]string, 0, len(projects)+2)
		for _, proj := range projects {
			options = append(options, proj.Label())
		}
		options = append(options, manualEntryLabel, skipLinkLabel)
		idx, err := p.Prompter.Choice(fmt.Sprintf("Which %s project should this directory use?", name), options, 0)
		if err != nil {
			return err
		}
		switch {
		case idx < len(projects):
			target = projects[idx]
		case options[idx] == skipLinkLabel:
			res.add(StepLink, StatusSkipped, "declined")
			return nil
		}
	}

	if target.ID == "" {
		id, err := p.Prompter.Text(fmt.Sprintf("%s project identifier (leave empty to skip)", name), "")
		if err != nil {
			return err
		}
		id = strings.TrimSpace(id)
		if id == "" {
			res.add(StepLink, StatusSkipped, "no project given")
			return nil
		}
		target = Project{ID: id}
	}

	status, detail, err := p.attempt(ctx, StepLink, func(ctx context.Context) error {
		return p.Service.Link(ctx, target)
	})
	if err != nil {
		return err
	}
	if status == StatusDone {
		proj, ok := p.Service.IsLinked(ctx)
		if !ok {
			status, detail = StatusFailed, "link command succeeded, but no link was found"
		} else {
			res.State.Linked = true
			if proj.Name == "" {
				proj.Name = target.Name
			}
			res.LinkedProject = &proj
			detail = proj.Label()
		}
	}
	res.add(StepLink, status, detail)
	return nil
}

func (p *Provisioner) credentials(ctx context.Context, res *Result, have credential.Set) error {
	svc := p.Service
	discovered, err := svc.Credentials(ctx, res.LinkedProject, have, p.Prompter)
	if err != nil {
		if errors.Is(err, prompt.ErrCancelled) {
			return err
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: could not discover credentials: %v", svc.Name(), err))
	}
	if discovered == nil {
		discovered = make(credential.Set)
	}
	known := have.Merge(discovered)

	var checks map[string]validate.Status
	gathered := discovered
	if p.Collector != nil {
		delta, err := p.Collector.Collect(ctx, svc.Name(), svc.RequiredCredentials(), known)
		if err != nil {
			return err
		}
		gathered = discovered.Merge(delta.Set)
		checks = delta.Checks
		res.Warnings = append(res.Warnings, delta.Warnings...)
	}
	res.Credentials = gathered
	all := have.Merge(gathered)

	// A required service gets a second chance at each missing hard
	// credential before it is reported unconfigured.
	if p.Policy.Required && p.Collector != nil {
		delta, _, err := p.Collector.Require(ctx, svc.Name(), svc.HardRequired(), all)
		if err != nil {
			return err
		}
		res.Credentials = res.Credentials.Merge(delta.Set)
		res.Warnings = append(res.Warnings, delta.Warnings...)
		if len(delta.Checks) > 0 {
			merged := make(map[string]validate.Status, len(checks)+len(delta.Checks))
			for k, v := range checks {
				merged[k] = v
			}
			for k, v := range delta.Checks {
				merged[k] = v
			}
			checks = merged
		}
		all = have.Merge(res.Credentials)
	}

	missing := credential.Missing(svc.RequiredCredentials(), all)
	res.State.CredentialsValid = len(missing) == 0
	for _, st := range checks {
		if st == validate.Invalid {
			res.State.CredentialsValid = false
		}
	}

	if len(missing) == 0 {
		res.add(StepCredentials, StatusDone, "")
	} else {
		res.add(StepCredentials, StatusSkipped, "missing "+strings.Join(missing, ", "))
	}
	if p.Policy.Required {
		res.MissingRequired = credential.Missing(svc.HardRequired(), all)
	}
	return nil
}

func (p *Provisioner) outcome(res Result, have credential.Set) Outcome {
	if len(res.MissingRequired) > 0 {
		return Unconfigured
	}
	if res.State.complete() {
		return FullyConfigured
	}
	all := have.Merge(res.Credentials)
	for _, n := range p.Service.RequiredCredentials() {
		if all.Configured(n) {
			return PartiallyConfigured
		}
	}
	if res.State.LoggedIn || res.State.Linked {
		return PartiallyConfigured
	}
	return Unconfigured
}
