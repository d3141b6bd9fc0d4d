package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/protocollar/stackup/internal/proc"
)

// Repo is one entry from gh repo list.
type Repo struct {
	NameWithOwner string `json:"nameWithOwner"`
	URL           string `json:"url"`
}

// Client runs the gh CLI.
type Client struct {
	Runner  proc.Runner
	Dir     string
	Timeout time.Duration
}

func (c Client) cmd(args ...string) proc.Cmd {
	return proc.Cmd{Dir: c.Dir, Name: "gh", Args: args, Timeout: c.Timeout}
}

// Version returns the gh version, or ok=false when gh is absent.
func (c Client) Version(ctx context.Context) (string, bool) {
	res := c.Runner.Capture(ctx, c.cmd("--version"))
	if !res.OK() {
		return "", false
	}
	// "gh version 2.40.1 (2023-12-13)\nhttps://github.com/cli/cli/releases/tag/v2.40.1"
	first := strings.SplitN(res.Output(), "\n", 2)[0]
	fields := strings.Fields(first)
	if len(fields) >= 3 && fields[0] == "gh" && fields[1] == "version" {
		return fields[2], true
	}
	return first, true
}

// AuthStatus reports whether gh has a working login for github.com.
func (c Client) AuthStatus(ctx context.Context) bool {
	return c.Runner.Capture(ctx, c.cmd("auth", "status", "--hostname", "github.com")).OK()
}

// Token returns the token gh is logged in with.
func (c Client) Token(ctx context.Context) (string, error) {
	res := c.Runner.Capture(ctx, c.cmd("auth", "token"))
	if !res.OK() {
		return "", fmt.Errorf("gh auth token: %s", res.Reason())
	}
	tok := res.Output()
	if tok == "" {
		return "", fmt.Errorf("gh auth token: empty output")
	}
	return tok, nil
}

// RepoList returns up to limit repositories owned by the logged-in user.
func (c Client) RepoList(ctx context.Context, limit int) ([]Repo, error) {
	res := c.Runner.Capture(ctx, c.cmd("repo", "list", "--json", "nameWithOwner,url", "--limit", strconv.Itoa(limit)))
	if !res.OK() {
		return nil, fmt.Errorf("gh repo list: %s", res.Reason())
	}
	return parseRepoList(res.Stdout)
}

func parseRepoList(out string) ([]Repo, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	var repos []Repo
	if err := json.Unmarshal([]byte(trimmed), &repos); err != nil {
		return nil, fmt.Errorf("parsing gh repo list output: %w", err)
	}
	return repos, nil
}

// Login runs the browser-based login flow. It inherits the terminal and is
// not timed out.
func (c Client) Login(ctx context.Context) error {
	cmd := proc.Cmd{Dir: c.Dir, Name: "gh", Args: []string{"auth", "login", "--web", "--hostname", "github.com", "--git-protocol", "https"}}
	res := c.Runner.Interactive(ctx, cmd)
	if !res.OK() {
		return fmt.Errorf("gh auth login: %s", res.Reason())
	}
	return nil
}
