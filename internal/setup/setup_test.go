package setup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/proc/proctest"
	"github.com/protocollar/stackup/internal/prompt/prompttest"
	"github.com/protocollar/stackup/internal/provision"
	"github.com/protocollar/stackup/internal/validate"
	"github.com/protocollar/stackup/internal/writer"
)

const testTemplate = `{
  "mcpServers": {
    "alpha": {
      "command": "npx",
      "args": ["-y", "alpha-mcp"],
      "env": {"ALPHA_TOKEN": "YOUR_STACKUP_TEST_ALPHA_TOKEN_HERE"}
    },
    "beta": {
      "command": "node",
      "args": ["beta.js"],
      "disabled": true
    }
  }
}
`

var linux = platform.Info{
	OS:              platform.Linux,
	IsLinux:         true,
	Shell:           "bash",
	PackageManagers: map[string]bool{"apt-get": true},
}

func toolsPresent() *proctest.Fake {
	return proctest.New().
		OK("git --version", "git version 2.43.0").
		OK("node --version", "v20.11.0").
		OK("npm --version", "10.2.4")
}

func quiet(t *testing.T) {
	t.Helper()
	color.NoColor = true
	jsonout.SetMsgOut(io.Discard)
	t.Cleanup(func() { jsonout.SetMsgOut(os.Stdout) })
}

func newPipeline(t *testing.T, dir string, runner *proctest.Fake, p *prompttest.Scripted) *Pipeline {
	t.Helper()
	quiet(t)
	profile, err := config.Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return &Pipeline{
		Options:  Options{Dir: dir, RunID: "test", SkipGitHub: true, SkipSupabase: true},
		Profile:  profile,
		User:     &config.User{},
		Platform: linux,
		Runner:   runner,
		Prompter: p,
	}
}

func writeTemplate(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".mcp.json.template"), []byte(testTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFiles(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	for _, name := range []string{".mcp.json", ".env.local", ".gitignore"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		out[name] = data
	}
	return out
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *exitcode.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want an ExitError", err)
	}
	return ee.ExitCode
}

func TestRunWritesConfiguration(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	p := prompttest.New(
		prompttest.Yes(),                 // enable alpha
		prompttest.No(),                  // enable beta
		prompttest.Text("tok-alpha-123"), // STACKUP_TEST_ALPHA_TOKEN
	)
	res, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.Remaining() != 0 {
		t.Errorf("%d answers left over", p.Remaining())
	}

	files := readFiles(t, dir)
	if !bytes.Contains(files[".mcp.json"], []byte(`"ALPHA_TOKEN": "tok-alpha-123"`)) {
		t.Errorf(".mcp.json =\n%s", files[".mcp.json"])
	}
	if !bytes.Contains(files[".env.local"], []byte("STACKUP_TEST_ALPHA_TOKEN=tok-alpha-123\n")) {
		t.Errorf(".env.local =\n%s", files[".env.local"])
	}
	for _, entry := range []string{".env.local", ".mcp.json", ".mcp.json.lock", ".env.local.lock", ".gitignore.lock"} {
		if !bytes.Contains(files[".gitignore"], []byte(entry+"\n")) {
			t.Errorf(".gitignore missing %s:\n%s", entry, files[".gitignore"])
		}
	}

	if got := strings.Join(res.MCP.EnabledServers, ","); got != "alpha" {
		t.Errorf("EnabledServers = %q", got)
	}
	if got := strings.Join(res.MCP.CollectedEnvVars, ","); got != "STACKUP_TEST_ALPHA_TOKEN" {
		t.Errorf("CollectedEnvVars = %q", got)
	}
	if res.MCP.Template != ".mcp.json.template" {
		t.Errorf("Template = %q", res.MCP.Template)
	}
	for _, a := range res.ConfigFiles {
		if a.Status != writer.Created {
			t.Errorf("%s: status %s, want created", a.Path, a.Status)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	first := prompttest.New(prompttest.Yes(), prompttest.No(), prompttest.Text("tok-alpha-123"))
	if _, err := newPipeline(t, dir, toolsPresent(), first).Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := readFiles(t, dir)

	// The token is read back from .env.local, so it is not asked again.
	second := prompttest.New(prompttest.Yes(), prompttest.No())
	res, err := newPipeline(t, dir, toolsPresent(), second).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Asked("STACKUP_TEST_ALPHA_TOKEN") {
		t.Error("existing credential was prompted for again")
	}

	after := readFiles(t, dir)
	for name := range before {
		if !bytes.Equal(before[name], after[name]) {
			t.Errorf("%s changed on the second run:\n%s\n---\n%s", name, before[name], after[name])
		}
	}
	for _, a := range res.ConfigFiles {
		if a.Status != writer.Unchanged {
			t.Errorf("%s: status %s, want unchanged", a.Path, a.Status)
		}
	}
}

func TestRunBuiltinTemplate(t *testing.T) {
	dir := t.TempDir()
	pl := newPipeline(t, dir, toolsPresent(), prompttest.New())
	tmpl, name, err := pl.template()
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if name != builtinTemplate {
		t.Errorf("name = %q, want %q", name, builtinTemplate)
	}
	if len(tmpl.Servers) == 0 {
		t.Error("built-in template has no servers")
	}
}

func TestRunPrerequisitesDeclined(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	runner := proctest.New().
		OK("node --version", "v20.11.0").
		OK("npm --version", "10.2.4")
	p := prompttest.New(prompttest.No()) // install git?
	res, err := newPipeline(t, dir, runner, p).Run(context.Background())
	if code := exitCode(t, err); code != exitcode.PrerequisitesUnmet {
		t.Errorf("exit code = %d, want %d", code, exitcode.PrerequisitesUnmet)
	}
	if res.Prerequisites.Passed {
		t.Error("Prerequisites.Passed = true")
	}
	if runner.Called("sudo apt-get install -y git") != 0 {
		t.Error("installer ran after the user declined")
	}
	for _, name := range []string{".mcp.json", ".env.local", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s was written: %v", name, err)
		}
	}
}

func TestRunPrerequisitesInstalled(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	runner := proctest.New().
		Fail("git --version", 127, "not found").
		OK("git --version", "git version 2.43.0").
		OK("sudo apt-get install -y git", "").
		OK("node --version", "v20.11.0").
		OK("npm --version", "10.2.4")
	p := prompttest.New(
		prompttest.Yes(), // install git
		prompttest.Yes(), // enable alpha
		prompttest.No(),  // enable beta
		prompttest.Text(""),
	)
	res, err := newPipeline(t, dir, runner, p).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.AutoInstall == nil || len(res.AutoInstall.Attempts) != 1 || !res.AutoInstall.Attempts[0].OK {
		t.Errorf("AutoInstall = %+v", res.AutoInstall)
	}
	if !res.Prerequisites.Passed {
		t.Error("Prerequisites should pass after the install")
	}
}

func TestRunSkippedCredentialLeavesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	p := prompttest.New(prompttest.Yes(), prompttest.No(), prompttest.Text(""))
	res, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ".mcp.json"))
	if !bytes.Contains(data, []byte("YOUR_STACKUP_TEST_ALPHA_TOKEN_HERE")) {
		t.Errorf("placeholder should remain:\n%s", data)
	}
	if len(res.MCP.Servers) != 2 || strings.Join(res.MCP.Servers[0].MissingVars, ",") != "STACKUP_TEST_ALPHA_TOKEN" {
		t.Errorf("Servers = %+v", res.MCP.Servers)
	}
	if !containsPrefix(res.Warnings, "credentials incomplete for alpha") {
		t.Errorf("Warnings = %q", res.Warnings)
	}
}

func TestRunProfileOverridesSkipPrompt(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	profile := "servers:\n  alpha:\n    enabled: false\n  beta:\n    enabled: true\n"
	if err := os.WriteFile(filepath.Join(dir, "stackup.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	p := prompttest.New()
	res, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.Questions) != 0 {
		t.Errorf("asked %q", p.Questions)
	}
	if got := strings.Join(res.MCP.EnabledServers, ","); got != "beta" {
		t.Errorf("EnabledServers = %q", got)
	}
	// No credentials were needed, so no env file is created.
	if _, err := os.Stat(filepath.Join(dir, ".env.local")); !os.IsNotExist(err) {
		t.Errorf(".env.local exists: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	p := prompttest.New(prompttest.Cancel())
	_, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background())
	if code := exitCode(t, err); code != exitcode.Cancelled {
		t.Errorf("exit code = %d, want %d", code, exitcode.Cancelled)
	}
	if _, err := os.Stat(filepath.Join(dir, ".mcp.json")); !os.IsNotExist(err) {
		t.Errorf(".mcp.json written after cancel: %v", err)
	}
}

func TestRunHardRequiredCredential(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	profile := "credentials:\n  STACKUP_TEST_ALPHA_TOKEN:\n    required: true\n"
	if err := os.WriteFile(filepath.Join(dir, "stackup.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	p := prompttest.New(
		prompttest.Yes(),    // enable alpha
		prompttest.No(),     // enable beta
		prompttest.Text(""), // STACKUP_TEST_ALPHA_TOKEN
		prompttest.No(),     // re-enter?
	)
	_, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background())
	if code := exitCode(t, err); code != exitcode.CredentialsMissing {
		t.Errorf("exit code = %d, want %d", code, exitcode.CredentialsMissing)
	}
	if !p.Asked("Re-enter STACKUP_TEST_ALPHA_TOKEN?") {
		t.Errorf("no re-entry offered; asked %q", p.Questions)
	}
	if _, err := os.Stat(filepath.Join(dir, ".mcp.json")); !os.IsNotExist(err) {
		t.Errorf(".mcp.json written without a required credential: %v", err)
	}
}

func TestRunHardRequiredCredentialReentered(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	profile := "credentials:\n  STACKUP_TEST_ALPHA_TOKEN:\n    required: true\n"
	if err := os.WriteFile(filepath.Join(dir, "stackup.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	p := prompttest.New(
		prompttest.Yes(),                 // enable alpha
		prompttest.No(),                  // enable beta
		prompttest.Text(""),              // STACKUP_TEST_ALPHA_TOKEN
		prompttest.Yes(),                 // re-enter?
		prompttest.Text("tok-alpha-456"), // STACKUP_TEST_ALPHA_TOKEN again
	)
	if _, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.Remaining() != 0 {
		t.Errorf("%d answers left over", p.Remaining())
	}
	files := readFiles(t, dir)
	if !bytes.Contains(files[".env.local"], []byte("STACKUP_TEST_ALPHA_TOKEN=tok-alpha-456\n")) {
		t.Errorf(".env.local =\n%s", files[".env.local"])
	}
}

// cancellingValidator interrupts the run while a credential is checked.
type cancellingValidator struct{ cancel context.CancelFunc }

func (v cancellingValidator) Validate(context.Context, string, string, validate.Lookup) validate.Outcome {
	v.cancel()
	return validate.Outcome{Status: validate.Unreachable, Detail: "context canceled"}
}

func TestRunInterruptedDuringValidationWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	profile := "directories:\n  - docs\n"
	if err := os.WriteFile(filepath.Join(dir, "stackup.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := prompttest.New(prompttest.Yes(), prompttest.No(), prompttest.Text("tok-alpha-123"))
	pl := newPipeline(t, dir, toolsPresent(), p)
	pl.Validator = cancellingValidator{cancel: cancel}

	_, err := pl.Run(ctx)
	if code := exitCode(t, err); code != exitcode.Cancelled {
		t.Errorf("exit code = %d, want %d", code, exitcode.Cancelled)
	}
	for _, name := range []string{".mcp.json", ".env.local", ".gitignore", "docs"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s exists after interrupt: %v", name, err)
		}
	}
}

func TestRunCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	profile := "directories:\n  - docs\n"
	if err := os.WriteFile(filepath.Join(dir, "stackup.yaml"), []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}

	p := prompttest.New(prompttest.Yes(), prompttest.No(), prompttest.Text("tok-alpha-123"))
	if _, err := newPipeline(t, dir, toolsPresent(), p).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "docs")); err != nil || !info.IsDir() {
		t.Errorf("docs not created: %v", err)
	}
}

func TestRunRequiredServiceUnconfigured(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)

	pl := newPipeline(t, dir, toolsPresent(), prompttest.New(prompttest.Text("")))
	pl.Options.SkipGitHub = false
	pl.Options.NoInstall = true
	required := true
	pl.Profile.Services.GitHub.Required = &required
	pl.Services = []provision.Service{stubService{}}

	res, err := pl.Run(context.Background())
	if code := exitCode(t, err); code != exitcode.CredentialsMissing {
		t.Errorf("exit code = %d, want %d", code, exitcode.CredentialsMissing)
	}
	got, ok := res.Services["github"]
	if !ok || got.Outcome != provision.Unconfigured {
		t.Errorf("Services[github] = %+v", got)
	}
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// stubService has no CLI and discovers nothing.
type stubService struct{}

func (stubService) Name() string { return "GitHub" }
func (stubService) CLIVersion(context.Context) (string, bool) { return "", false }
func (stubService) IsAuthenticated(context.Context) bool { return false }
func (stubService) IsInitialized(context.Context) bool { return false }
func (stubService) IsLinked(context.Context) (provision.Project, bool) { return provision.Project{}, false }
func (stubService) ListRemoteProjects(context.Context) ([]provision.Project, error) {
	return nil, nil
}
func (stubService) Install(context.Context) error { return nil }
func (stubService) Login(context.Context) error { return nil }
func (stubService) Initialize(context.Context) error { return nil }
func (stubService) Link(context.Context, provision.Project) error { return nil }
func (stubService) Credentials(context.Context, *provision.Project, credential.Set, provision.Asker) (credential.Set, error) {
	return nil, nil
}
func (stubService) RequiredCredentials() []string { return []string{"STACKUP_TEST_SVC_TOKEN"} }
func (stubService) HardRequired() []string { return []string{"STACKUP_TEST_SVC_TOKEN"} }
