package provision

import "github.com/protocollar/stackup/internal/credential"

// State holds the rediscovered flags, in dependency order.
type State struct {
	CLIInstalled     bool `json:"cli_installed"`
	LoggedIn         bool `json:"logged_in"`
	Initialized      bool `json:"initialized"`
	Linked           bool `json:"linked"`
	CredentialsValid bool `json:"credentials_valid"`
}

func (s State) complete() bool {
	return s.CLIInstalled && s.LoggedIn && s.Initialized && s.Linked && s.CredentialsValid
}

// Outcome is the terminal state of one provisioner run.
type Outcome string

const (
	FullyConfigured     Outcome = "fully-configured"
	PartiallyConfigured Outcome = "partially-configured"
	Unconfigured        Outcome = "unconfigured"
)

// Step names a provisioning step.
type Step string

const (
	StepDetect       Step = "detect"
	StepInstall      Step = "install"
	StepAuthenticate Step = "authenticate"
	StepInitialize   Step = "initialize"
	StepLink         Step = "link"
	StepCredentials  Step = "credentials"
)

// StepStatus is what happened to a step.
type StepStatus string

const (
	StatusDone        StepStatus = "done"
	StatusAlreadyDone StepStatus = "already-done"
	StatusSkipped     StepStatus = "skipped"
	StatusFailed      StepStatus = "failed"
)

// StepResult records one step.
type StepResult struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Result is the outcome of Run.
type Result struct {
	Service         string         `json:"service"`
	CLIVersion      string         `json:"cli_version,omitempty"`
	State           State          `json:"state"`
	Outcome         Outcome        `json:"outcome"`
	Steps           []StepResult   `json:"steps"`
	Credentials     credential.Set `json:"credentials"`
	LinkedProject   *Project       `json:"linked_project,omitempty"`
	MissingRequired []string       `json:"missing_required,omitempty"`
	Warnings        []string       `json:"warnings"`
}

// Step returns the result for s.
func (r Result) Step(s Step) (StepResult, bool) {
	for _, sr := range r.Steps {
		if sr.Step == s {
			return sr, true
		}
	}
	return StepResult{}, false
}
