package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/registry"
	"github.com/protocollar/stackup/internal/report"
)

// DefaultVerifyTimeout bounds one server's start, initialize, and tool
// listing. npx may download the package on first start.
const DefaultVerifyTimeout = 60 * time.Second

// Client is the part of the mcp-go client Verify uses.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// Dialer connects to one server entry.
type Dialer func(ctx context.Context, e registry.Entry) (Client, error)

// Dial starts a stdio server or connects to an HTTP one.
func Dial(ctx context.Context, e registry.Entry) (Client, error) {
	if e.IsHTTP() {
		var opts []transport.StreamableHTTPCOption
		if len(e.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(e.Headers))
		}
		t, err := transport.NewStreamableHTTP(e.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		c := mcpclient.NewClient(t)
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		return c, nil
	}
	env := make([]string, 0, len(e.Env))
	for k, v := range e.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	c, err := mcpclient.NewStdioMCPClient(e.Command, env, e.Args...)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", e.Command, err)
	}
	return c, nil
}

// Verifier smoke-tests compiled servers.
type Verifier struct {
	Dial    Dialer
	Timeout time.Duration
	Version string
}

// ErrUnresolved is reported for a server whose entry still holds
// placeholders.
var ErrUnresolved = errors.New("credentials missing")

// Verify initializes the server and lists its tools.
func (v Verifier) Verify(ctx context.Context, name string, e registry.Entry) report.Verification {
	res := report.Verification{Server: name}
	if missing := registry.RequiredVars(e); len(missing) > 0 {
		res.Error = fmt.Sprintf("%v: %v", ErrUnresolved, missing)
		return res
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := v.Dial
	if dial == nil {
		dial = Dial
	}
	c, err := dial(ctx, e)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer func() { _ = c.Close() }()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "stackup", Version: v.Version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		res.Error = fmt.Sprintf("initialize: %v", err)
		return res
	}
	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		res.Error = fmt.Sprintf("list tools: %v", err)
		return res
	}
	res.Tools = len(tools.Tools)
	logger.Event("mcp server verified", "server", name, "tools", res.Tools)
	return res
}

// VerifyAll checks every enabled server in name order, one at a time.
func (v Verifier) VerifyAll(ctx context.Context, reg *registry.Registry) []report.Verification {
	var out []report.Verification
	for _, name := range reg.Names() {
		e := reg.Servers[name]
		if e.Disabled {
			continue
		}
		logger.Info("Verifying %s...", name)
		r := v.Verify(ctx, name, e)
		if r.Error != "" {
			logger.Warn("%s: %s", name, r.Error)
		} else {
			logger.Success("%s: %d tools", name, r.Tools)
		}
		out = append(out, r)
	}
	return out
}
