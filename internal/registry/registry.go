// Package registry loads the MCP server template and compiles it into the
// .mcp.json file the editor reads.
package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/platform"
)

// Transport types.
const (
	TypeStdio = "stdio"
	TypeHTTP  = "http"
)

// Entry is one server, in both the template and the compiled output.
type Entry struct {
	Type        string            `json:"type,omitempty"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Disabled    bool              `json:"disabled"`
	Description string            `json:"description,omitempty"`
}

// IsHTTP reports whether the server is reached over HTTP.
func (e Entry) IsHTTP() bool {
	return e.Type == TypeHTTP || (e.Type == "" && e.Command == "" && e.URL != "")
}

func (e Entry) clone() Entry {
	c := e
	c.Args = append([]string(nil), e.Args...)
	c.Env = cloneMap(e.Env)
	c.Headers = cloneMap(e.Headers)
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Registry is the content of a template or compiled .mcp.json file.
type Registry struct {
	Servers map[string]Entry `json:"mcpServers"`
}

// Names returns the server names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Servers))
	for n := range r.Servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

//go:embed default.json
var defaultTemplate []byte

// Default returns the built-in template.
func Default() *Registry {
	r, err := Parse(defaultTemplate)
	if err != nil {
		panic(fmt.Sprintf("built-in template: %v", err))
	}
	return r
}

// Parse decodes a registry. Both the wrapped {"mcpServers": {...}} form and
// a bare name-to-entry object are accepted.
func Parse(data []byte) (*Registry, error) {
	var wrapped struct {
		Servers map[string]Entry `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing server registry: %w", err)
	}
	if wrapped.Servers != nil {
		return &Registry{Servers: wrapped.Servers}, nil
	}
	var bare map[string]Entry
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("parsing server registry: %w", err)
	}
	if bare == nil {
		bare = map[string]Entry{}
	}
	return &Registry{Servers: bare}, nil
}

// Load reads a registry from path. A missing file returns nil and no error.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading server registry: %w", err)
	}
	return Parse(data)
}

// LoadTemplate reads the template at path, falling back to the built-in
// template when the file does not exist.
func LoadTemplate(path string) (*Registry, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return Default(), nil
	}
	return r, nil
}

// Marshal renders a registry as 2-space indented JSON with a trailing
// newline. Map keys are sorted, so equal registries give equal bytes.
func Marshal(r *Registry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("marshaling server registry: %w", err)
	}
	return buf.Bytes(), nil
}

var tokenPattern = regexp.MustCompile(`YOUR_([A-Z0-9_]+?)_HERE`)

// Token returns the placeholder for name.
func Token(name string) string { return "YOUR_" + name + "_HERE" }

// tokenNames returns the variable names of the YOUR_<NAME>_HERE tokens in s.
func tokenNames(s string) []string {
	var names []string
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// RequiredVars lists the variables an entry still needs: YOUR_<NAME>_HERE
// tokens in env values, args, url, and headers, plus the key of any env
// value that is a placeholder without a token. The result is sorted and has
// no duplicates.
func RequiredVars(e Entry) []string {
	seen := make(map[string]bool)
	scan := func(s string) {
		for _, name := range tokenNames(s) {
			seen[name] = true
		}
	}
	for k, v := range e.Env {
		if names := tokenNames(v); len(names) > 0 {
			scan(v)
		} else if credential.IsPlaceholder(v) {
			seen[k] = true
		}
	}
	for _, a := range e.Args {
		scan(a)
	}
	scan(e.URL)
	for _, v := range e.Headers {
		scan(v)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultEnabled returns the enablement of each template server: enabled
// unless the template marks it disabled, then overridden per name. Override
// names outside the template are ignored.
func DefaultEnabled(tmpl *Registry, overrides map[string]bool) map[string]bool {
	out := make(map[string]bool, len(tmpl.Servers))
	for name, e := range tmpl.Servers {
		out[name] = !e.Disabled
		if v, ok := overrides[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Compile produces the output registry. Every template server appears
// exactly once; servers missing from enabled are disabled. Placeholders
// whose variable is not configured in creds are left in place.
func Compile(tmpl *Registry, enabled map[string]bool, creds credential.Set, info platform.Info) *Registry {
	out := &Registry{Servers: make(map[string]Entry, len(tmpl.Servers))}
	for name, src := range tmpl.Servers {
		e := src.clone()
		e.URL = substitute(e.URL, creds)
		if info.IsWindows {
			e = wrapForWindows(e, info)
		}
		for k, v := range e.Env {
			if credential.IsPlaceholder(v) && len(tokenNames(v)) == 0 {
				if val, ok := creds.Get(k); ok {
					e.Env[k] = val
					continue
				}
			}
			e.Env[k] = substitute(v, creds)
		}
		for i, a := range e.Args {
			e.Args[i] = substitute(a, creds)
		}
		for k, v := range e.Headers {
			e.Headers[k] = substitute(v, creds)
		}
		e.Disabled = !enabled[name]
		out.Servers[name] = e
	}
	return out
}

// substitute replaces each YOUR_<NAME>_HERE token whose variable is
// configured.
func substitute(s string, creds credential.Set) string {
	if !strings.Contains(s, "YOUR_") {
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tokenPattern.FindStringSubmatch(tok)[1]
		if v, ok := creds.Get(name); ok {
			return v
		}
		return tok
	})
}

// windowsShims are launchers installed as .cmd scripts on Windows, which
// cannot be spawned directly.
var windowsShims = map[string]bool{"npx": true, "npm": true, "pnpm": true, "yarn": true}

func wrapForWindows(e Entry, info platform.Info) Entry {
	if e.IsHTTP() || !windowsShims[e.Command] {
		return e
	}
	shell, flag := info.ShellBinary, info.ShellFlag
	if shell == "" {
		shell = "cmd"
	}
	if flag == "" {
		flag = "/c"
	}
	e.Args = append([]string{flag, e.Command}, e.Args...)
	e.Command = shell
	return e
}
