// Package github provisions the source-control side: the gh CLI, its login,
// a local git repository, and an origin remote on GitHub.
package github

import (
	"context"
	"fmt"

	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/gh"
	"github.com/protocollar/stackup/internal/git"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/provision"
)

// TokenVar is the variable the GitHub MCP server reads its token from.
const TokenVar = "GITHUB_PERSONAL_ACCESS_TOKEN"

const repoListLimit = 50

// Service implements provision.Service for GitHub.
type Service struct {
	GH        gh.Client
	Git       git.Client
	Installer prereq.Installer
}

var _ provision.Service = (*Service)(nil)

func (s *Service) Name() string { return "GitHub" }

func (s *Service) CLIVersion(ctx context.Context) (string, bool) {
	return s.GH.Version(ctx)
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.GH.AuthStatus(ctx)
}

func (s *Service) IsInitialized(ctx context.Context) bool {
	return s.Git.IsInsideWorkTree(ctx)
}

// IsLinked reports the GitHub repository origin points at.
func (s *Service) IsLinked(ctx context.Context) (provision.Project, bool) {
	url, ok := s.Git.RemoteURL(ctx, "origin")
	if !ok {
		return provision.Project{}, false
	}
	repo, ok := git.ParseGitHubRemote(url)
	if !ok {
		return provision.Project{}, false
	}
	return provision.Project{ID: repo, URL: "https://github.com/" + repo}, true
}

func (s *Service) ListRemoteProjects(ctx context.Context) ([]provision.Project, error) {
	repos, err := s.GH.RepoList(ctx, repoListLimit)
	if err != nil {
		return nil, err
	}
	projects := make([]provision.Project, 0, len(repos))
	for _, r := range repos {
		projects = append(projects, provision.Project{ID: r.NameWithOwner, URL: r.URL})
	}
	return projects, nil
}

func (s *Service) Install(ctx context.Context) error {
	return s.Installer.Install(ctx, prereq.GH)
}

func (s *Service) Login(ctx context.Context) error {
	return s.GH.Login(ctx)
}

func (s *Service) Initialize(ctx context.Context) error {
	return s.Git.Init(ctx)
}

// Link adds an origin remote for the repository. An existing non-GitHub
// origin is left alone.
func (s *Service) Link(ctx context.Context, p provision.Project) error {
	repo, ok := git.ParseGitHubRemote(git.GitHubURL(p.ID))
	if !ok {
		return fmt.Errorf("%q is not an owner/repo name", p.ID)
	}
	if url, ok := s.Git.RemoteURL(ctx, "origin"); ok {
		return fmt.Errorf("remote origin already points to %s; change it with git remote set-url", url)
	}
	return s.Git.AddRemote(ctx, "origin", git.GitHubURL(repo))
}

// Credentials offers the gh login token for the MCP server.
func (s *Service) Credentials(ctx context.Context, _ *provision.Project, have credential.Set, ask provision.Asker) (credential.Set, error) {
	out := make(credential.Set)
	if have.Configured(TokenVar) || !s.GH.AuthStatus(ctx) {
		return out, nil
	}
	use, err := ask.YesNo(fmt.Sprintf("Use your gh CLI login as %s?", TokenVar), true)
	if err != nil || !use {
		return out, err
	}
	tok, err := s.GH.Token(ctx)
	if err != nil {
		return out, err
	}
	out.Put(TokenVar, tok)
	logger.Success("%s taken from gh", TokenVar)
	return out, nil
}

func (s *Service) RequiredCredentials() []string { return []string{TokenVar} }

func (s *Service) HardRequired() []string { return []string{TokenVar} }
