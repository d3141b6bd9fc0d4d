// Package provision runs the per-service setup state machine: detect,
// install, authenticate, initialize, link, then collect credentials. Every
// state flag is re-checked from the live system; nothing is carried over from
// a previous run.
package provision

import (
	"context"

	"github.com/protocollar/stackup/internal/credential"
)

// Project is a remote project a local checkout can be linked to.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Label is the text shown in a choice list.
func (p Project) Label() string {
	if p.Name != "" && p.Name != p.ID {
		return p.Name + " (" + p.ID + ")"
	}
	return p.ID
}

// Facts answers one question about the live system per method.
type Facts interface {
	// CLIVersion returns the CLI version, or ok=false when it is absent.
	CLIVersion(ctx context.Context) (version string, ok bool)
	IsAuthenticated(ctx context.Context) bool
	IsInitialized(ctx context.Context) bool
	// IsLinked returns the linked project, if any.
	IsLinked(ctx context.Context) (Project, bool)
	ListRemoteProjects(ctx context.Context) ([]Project, error)
}

// Actions change the system. Install and Login run interactively.
type Actions interface {
	Install(ctx context.Context) error
	Login(ctx context.Context) error
	Initialize(ctx context.Context) error
	Link(ctx context.Context, p Project) error
}

// Service is one external platform driven through its CLI.
type Service interface {
	Name() string
	Facts
	Actions
	// Credentials returns values the service can discover on its own, such
	// as a token from the CLI's keychain or API keys of the linked project.
	// linked is nil when nothing is linked. Names already configured in
	// have must not be rediscovered.
	Credentials(ctx context.Context, linked *Project, have credential.Set, p Asker) (credential.Set, error)
	// RequiredCredentials lists the variables the service's MCP servers
	// need.
	RequiredCredentials() []string
	// HardRequired lists the variables without which a required service
	// cannot be used.
	HardRequired() []string
}

// Asker is the slice of the prompter a service may use while discovering
// credentials.
type Asker interface {
	YesNo(question string, def bool) (bool, error)
}
