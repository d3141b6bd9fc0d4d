// Package supabase provisions the backend platform through the supabase CLI.
// Initialization and linking are read from the files the CLI leaves in the
// working directory.
package supabase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/provision"
)

const (
	AccessTokenVar    = "SUPABASE_ACCESS_TOKEN"
	ProjectRefVar     = "SUPABASE_PROJECT_REF"
	URLVar            = "SUPABASE_URL"
	AnonKeyVar        = "SUPABASE_ANON_KEY"
	ServiceRoleKeyVar = "SUPABASE_SERVICE_ROLE_KEY"
)

var (
	configFile = filepath.Join("supabase", "config.toml")
	refFile    = filepath.Join("supabase", ".temp", "project-ref")
)

var refPattern = regexp.MustCompile(`^[a-z0-9]{20}$`)

// ValidRef reports whether s looks like a project reference.
func ValidRef(s string) bool { return refPattern.MatchString(s) }

// ProjectURL returns the API URL of a project.
func ProjectURL(ref string) string { return "https://" + ref + ".supabase.co" }

// Service implements provision.Service for Supabase.
type Service struct {
	CLI       CLI
	Installer prereq.Installer
}

var _ provision.Service = (*Service)(nil)

func (s *Service) Name() string { return "Supabase" }

func (s *Service) CLIVersion(ctx context.Context) (string, bool) {
	return s.CLI.Version(ctx)
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, err := s.CLI.Projects(ctx)
	return err == nil
}

func (s *Service) IsInitialized(context.Context) bool {
	_, err := os.Stat(filepath.Join(s.CLI.Dir, configFile))
	return err == nil
}

// IsLinked reads the project ref the CLI stored on link.
func (s *Service) IsLinked(context.Context) (provision.Project, bool) {
	data, err := os.ReadFile(filepath.Join(s.CLI.Dir, refFile))
	if err != nil {
		return provision.Project{}, false
	}
	ref := strings.TrimSpace(string(data))
	if ref == "" {
		return provision.Project{}, false
	}
	return provision.Project{ID: ref, URL: ProjectURL(ref)}, true
}

func (s *Service) ListRemoteProjects(ctx context.Context) ([]provision.Project, error) {
	remote, err := s.CLI.Projects(ctx)
	if err != nil {
		return nil, err
	}
	projects := make([]provision.Project, 0, len(remote))
	for _, r := range remote {
		ref := r.ProjectRef()
		if ref == "" {
			continue
		}
		projects = append(projects, provision.Project{ID: ref, Name: r.Name, URL: ProjectURL(ref)})
	}
	return projects, nil
}

func (s *Service) Install(ctx context.Context) error {
	return s.Installer.Install(ctx, prereq.Supabase)
}

func (s *Service) Login(ctx context.Context) error {
	return s.CLI.Login(ctx)
}

func (s *Service) Initialize(ctx context.Context) error {
	return s.CLI.Init(ctx)
}

func (s *Service) Link(ctx context.Context, p provision.Project) error {
	if !ValidRef(p.ID) {
		return fmt.Errorf("%q is not a project reference (20 lowercase letters and digits)", p.ID)
	}
	return s.CLI.Link(ctx, p.ID)
}

// Credentials derives the project ref and URL from the link and fetches the
// project's API keys.
func (s *Service) Credentials(ctx context.Context, linked *provision.Project, have credential.Set, ask provision.Asker) (credential.Set, error) {
	out := make(credential.Set)
	if linked == nil {
		return out, nil
	}
	ref := linked.ID
	if !have.Configured(ProjectRefVar) {
		out.PutPlain(ProjectRefVar, ref)
	}
	if !have.Configured(URLVar) {
		out.PutPlain(URLVar, ProjectURL(ref))
	}
	if have.Configured(AnonKeyVar) && have.Configured(ServiceRoleKeyVar) {
		return out, nil
	}

	fetch, err := ask.YesNo(fmt.Sprintf("Fetch the API keys of project %s from Supabase?", ref), true)
	if err != nil || !fetch {
		return out, err
	}
	keys, err := s.CLI.APIKeys(ctx, ref)
	if err != nil {
		return out, err
	}
	for _, k := range keys {
		var name string
		switch k.Name {
		case "anon":
			name = AnonKeyVar
		case "service_role":
			name = ServiceRoleKeyVar
		default:
			continue
		}
		if have.Configured(name) {
			continue
		}
		out.Put(name, k.APIKey)
		if out.Configured(name) {
			logger.Success("%s fetched for project %s", name, ref)
		}
	}
	return out, nil
}

func (s *Service) RequiredCredentials() []string {
	return []string{AccessTokenVar, ProjectRefVar, URLVar, AnonKeyVar, ServiceRoleKeyVar}
}

func (s *Service) HardRequired() []string { return []string{AccessTokenVar} }
