package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/protocollar/stackup/internal/proc"
)

// Client runs git in Dir.
type Client struct {
	Runner  proc.Runner
	Dir     string
	Timeout time.Duration
}

// Version returns the git version, or ok=false when git is absent.
func (c Client) Version(ctx context.Context) (string, bool) {
	res := c.query(ctx, "--version")
	if !res.OK() {
		return "", false
	}
	return strings.TrimPrefix(res.Output(), "git version "), true
}

// IsInsideWorkTree returns true if Dir is inside a git repository.
func (c Client) IsInsideWorkTree(ctx context.Context) bool {
	res := c.query(ctx, "rev-parse", "--is-inside-work-tree")
	return res.OK() && res.Output() == "true"
}

// RemoteURL returns the URL of the named remote.
func (c Client) RemoteURL(ctx context.Context, name string) (string, bool) {
	res := c.query(ctx, "remote", "get-url", name)
	if !res.OK() || res.Output() == "" {
		return "", false
	}
	return res.Output(), true
}

// Init creates a repository in Dir.
func (c Client) Init(ctx context.Context) error {
	return c.change(ctx, "init")
}

// AddRemote adds a remote.
func (c Client) AddRemote(ctx context.Context, name, url string) error {
	return c.change(ctx, "remote", "add", name, url)
}

func (c Client) query(ctx context.Context, args ...string) proc.Result {
	return c.Runner.Capture(ctx, proc.Cmd{Dir: c.Dir, Name: "git", Args: args, Timeout: c.Timeout})
}

func (c Client) change(ctx context.Context, args ...string) error {
	cmd := proc.Cmd{Dir: c.Dir, Name: "git", Args: args, Timeout: c.Timeout}
	res := c.Runner.Capture(ctx, cmd)
	if !res.OK() {
		return fmt.Errorf("%s: %s", cmd, res.Reason())
	}
	return nil
}

// ParseGitHubRemote extracts "owner/repo" from a GitHub remote URL in any of
// the https, scp-like ssh, or ssh:// forms.
func ParseGitHubRemote(url string) (string, bool) {
	u := strings.TrimSpace(url)
	for _, prefix := range []string{
		"https://github.com/",
		"http://github.com/",
		"ssh://git@github.com/",
		"git@github.com:",
		"git://github.com/",
	} {
		if strings.HasPrefix(u, prefix) {
			u = strings.TrimPrefix(u, prefix)
			u = strings.TrimSuffix(strings.TrimSuffix(u, "/"), ".git")
			parts := strings.Split(u, "/")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return "", false
			}
			return parts[0] + "/" + parts[1], true
		}
	}
	return "", false
}

// GitHubURL returns the https clone URL for "owner/repo".
func GitHubURL(nameWithOwner string) string {
	return "https://github.com/" + nameWithOwner + ".git"
}
