package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/protocollar/stackup/internal/proc"
)

// RemoteProject is one entry from supabase projects list.
type RemoteProject struct {
	ID     string `json:"id"`
	Ref    string `json:"ref"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// ProjectRef returns the project reference. Older CLI versions report it as
// "ref", newer ones as "id".
func (p RemoteProject) ProjectRef() string {
	if p.Ref != "" {
		return p.Ref
	}
	return p.ID
}

// APIKey is one entry from supabase projects api-keys.
type APIKey struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// CLI runs the supabase CLI in Dir.
type CLI struct {
	Runner  proc.Runner
	Dir     string
	Timeout time.Duration
}

func (c CLI) cmd(args ...string) proc.Cmd {
	return proc.Cmd{Dir: c.Dir, Name: "supabase", Args: args, Timeout: c.Timeout}
}

// Version returns the CLI version, or ok=false when it is absent.
func (c CLI) Version(ctx context.Context) (string, bool) {
	res := c.Runner.Capture(ctx, c.cmd("--version"))
	if !res.OK() {
		return "", false
	}
	return strings.TrimPrefix(strings.SplitN(res.Output(), "\n", 2)[0], "v"), true
}

// Projects lists the projects visible to the logged-in account. It fails
// when the CLI has no valid login, which doubles as the auth check.
func (c CLI) Projects(ctx context.Context) ([]RemoteProject, error) {
	res := c.Runner.Capture(ctx, c.cmd("projects", "list", "-o", "json"))
	if !res.OK() {
		return nil, fmt.Errorf("supabase projects list: %s", res.Reason())
	}
	return decodeList[RemoteProject](res.Stdout, "supabase projects list")
}

// APIKeys returns the API keys of a project.
func (c CLI) APIKeys(ctx context.Context, ref string) ([]APIKey, error) {
	res := c.Runner.Capture(ctx, c.cmd("projects", "api-keys", "--project-ref", ref, "-o", "json"))
	if !res.OK() {
		return nil, fmt.Errorf("supabase projects api-keys: %s", res.Reason())
	}
	return decodeList[APIKey](res.Stdout, "supabase projects api-keys")
}

// Login, Init, and Link may prompt (browser login, IDE settings, database
// password) so they inherit the terminal and are not timed out.

func (c CLI) Login(ctx context.Context) error {
	return c.interactive(ctx, "login")
}

func (c CLI) Init(ctx context.Context) error {
	return c.interactive(ctx, "init")
}

func (c CLI) Link(ctx context.Context, ref string) error {
	return c.interactive(ctx, "link", "--project-ref", ref)
}

func (c CLI) interactive(ctx context.Context, args ...string) error {
	cmd := proc.Cmd{Dir: c.Dir, Name: "supabase", Args: args}
	res := c.Runner.Interactive(ctx, cmd)
	if !res.OK() {
		return fmt.Errorf("%s: %s", cmd, res.Reason())
	}
	return nil
}

func decodeList[T any](out, what string) ([]T, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, fmt.Errorf("parsing %s output: %w", what, err)
	}
	return items, nil
}
