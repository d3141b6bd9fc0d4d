package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/envfile"
	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/prereq"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/registry"
)

// mcpResult marshals v as JSON and returns it as MCP text content.
func mcpResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
	}, nil
}

// mcpError returns an MCP error result.
func mcpError(msg string) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}, nil
}

// mcpProject resolves the project directory and profile for a tool call.
// The server is long-lived and may serve several projects, so the directory
// is always explicit.
func mcpProject(dir string) (string, *config.Profile, error) {
	if dir == "" {
		return "", nil, fmt.Errorf("dir parameter is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("%s is not a directory", abs)
	}
	p, err := config.Load(abs, "")
	if err != nil {
		return "", nil, fmt.Errorf("loading profile: %w", err)
	}
	return abs, p, nil
}

func registerMCPTools(s *server.MCPServer) {
	s.AddTool(
		mcp.NewTool("prerequisites_check",
			mcp.WithDescription("Detect the platform and check that git, node, npm, gh and supabase are installed and recent enough. Read-only."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		),
		handlePrerequisitesCheck,
	)

	s.AddTool(
		mcp.NewTool("servers_list",
			mcp.WithDescription("List the project's MCP servers with their enablement and any credentials still missing. Never returns credential values."),
			mcp.WithString("dir", mcp.Description("Absolute project directory"), mcp.Required()),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		),
		handleServersList,
	)

	s.AddTool(
		mcp.NewTool("credentials_status",
			mcp.WithDescription("Report which credentials the project's MCP servers need and whether each is configured. Never returns values."),
			mcp.WithString("dir", mcp.Description("Absolute project directory"), mcp.Required()),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		),
		handleCredentialsStatus,
	)

	s.AddTool(
		mcp.NewTool("config_show",
			mcp.WithDescription("Show the resolved stackup.yaml profile for a project."),
			mcp.WithString("dir", mcp.Description("Absolute project directory"), mcp.Required()),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
		),
		handleConfigShow,
	)
}

func handlePrerequisitesCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := platform.Detect()
	res := prereq.New(proc.NewOS(), config.DefaultCheckTimeout).Check(ctx, info)
	return mcpResult(struct {
		Platform      platform.Info `json:"platform"`
		Prerequisites prereq.Result `json:"prerequisites"`
	}{info, res})
}

type mcpServerItem struct {
	Name        string   `json:"name"`
	Enabled     bool     `json:"enabled"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	MissingVars []string `json:"missing_vars"`
}

// projectServers returns the compiled output when it exists and the template
// otherwise. compiled reports which one it is.
func projectServers(dir string, p *config.Profile) (reg *registry.Registry, compiled bool, err error) {
	out, err := registry.Load(p.Resolve(dir, p.Output))
	if err != nil {
		return nil, false, err
	}
	if out != nil {
		return out, true, nil
	}
	tmpl, err := registry.LoadTemplate(p.Resolve(dir, p.Template))
	return tmpl, false, err
}

func handleServersList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, p, err := mcpProject(req.GetString("dir", ""))
	if err != nil {
		return mcpError(err.Error())
	}
	reg, compiled, err := projectServers(dir, p)
	if err != nil {
		return mcpError(err.Error())
	}

	items := make([]mcpServerItem, 0, len(reg.Servers))
	for _, name := range reg.Names() {
		e := reg.Servers[name]
		typ := e.Type
		if typ == "" {
			typ = "stdio"
		}
		missing := registry.RequiredVars(e)
		if missing == nil {
			missing = []string{}
		}
		items = append(items, mcpServerItem{
			Name:        name,
			Enabled:     !e.Disabled,
			Type:        typ,
			Description: e.Description,
			MissingVars: missing,
		})
	}
	return mcpResult(struct {
		Compiled bool            `json:"compiled"`
		Servers  []mcpServerItem `json:"servers"`
	}{compiled, items})
}

func handleCredentialsStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, p, err := mcpProject(req.GetString("dir", ""))
	if err != nil {
		return mcpError(err.Error())
	}
	tmpl, err := registry.LoadTemplate(p.Resolve(dir, p.Template))
	if err != nil {
		return mcpError(err.Error())
	}
	fileVals, err := envfile.Read(p.Resolve(dir, p.EnvFile))
	if err != nil {
		return mcpError(err.Error())
	}
	lookup := envfile.Lookup(fileVals, envfile.Environ())

	status := make(map[string]credential.Set, len(tmpl.Servers))
	for _, name := range tmpl.Names() {
		status[name] = credential.FromLookup(registry.RequiredVars(tmpl.Servers[name]), lookup)
	}
	return mcpResult(status)
}

func handleConfigShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, p, err := mcpProject(req.GetString("dir", ""))
	if err != nil {
		return mcpError(err.Error())
	}
	return mcpResult(p)
}
