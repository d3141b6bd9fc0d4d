package supabase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/proc/proctest"
	"github.com/protocollar/stackup/internal/prompt/prompttest"
	"github.com/protocollar/stackup/internal/provision"
)

const testRef = "abcdefghijklmnopqrst"

func quiet(t *testing.T) {
	t.Helper()
	color.NoColor = true
	var sb strings.Builder
	jsonout.SetMsgOut(&sb)
	t.Cleanup(func() { jsonout.SetMsgOut(os.Stdout) })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidRef(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{testRef, true},
		{"abc", false},
		{"ABCDEFGHIJKLMNOPQRST", false},
		{"abcdefghijklmnopqrs-", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidRef(tt.in); got != tt.want {
			t.Errorf("ValidRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFileChecks(t *testing.T) {
	dir := t.TempDir()
	s := &Service{CLI: CLI{Runner: proctest.New(), Dir: dir}}
	ctx := context.Background()

	if s.IsInitialized(ctx) {
		t.Error("empty dir reported initialized")
	}
	if _, ok := s.IsLinked(ctx); ok {
		t.Error("empty dir reported linked")
	}

	writeFile(t, filepath.Join(dir, "supabase", "config.toml"), "project_id = \"app\"\n")
	writeFile(t, filepath.Join(dir, "supabase", ".temp", "project-ref"), testRef+"\n")

	if !s.IsInitialized(ctx) {
		t.Error("config.toml present but not initialized")
	}
	p, ok := s.IsLinked(ctx)
	if !ok || p.ID != testRef || p.URL != "https://"+testRef+".supabase.co" {
		t.Errorf("IsLinked = %+v, %v", p, ok)
	}
}

func TestListRemoteProjects(t *testing.T) {
	fake := proctest.New().OK("supabase projects list -o json",
		`[{"id":"`+testRef+`","name":"prod","region":"us-east-1"},{"ref":"zyxwvutsrqponmlkjihg","name":"staging"},{"name":"broken"}]`)
	s := &Service{CLI: CLI{Runner: fake}}

	projects, err := s.ListRemoteProjects(context.Background())
	if err != nil {
		t.Fatalf("ListRemoteProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("projects = %+v", projects)
	}
	if projects[0].Label() != "prod ("+testRef+")" || projects[1].ID != "zyxwvutsrqponmlkjihg" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestAuthCheckFollowsProjectList(t *testing.T) {
	fake := proctest.New().Fail("supabase projects list -o json", 1, "Access token not provided.")
	s := &Service{CLI: CLI{Runner: fake}}
	if s.IsAuthenticated(context.Background()) {
		t.Error("failed listing should mean not authenticated")
	}
}

func TestLinkRejectsBadRef(t *testing.T) {
	fake := proctest.New()
	s := &Service{CLI: CLI{Runner: fake}}
	if err := s.Link(context.Background(), provision.Project{ID: "my-project"}); err == nil {
		t.Error("expected error for malformed ref")
	}
	if len(fake.Calls) != 0 {
		t.Errorf("CLI should not run: %+v", fake.Calls)
	}
}

func TestCredentialsFromLinkedProject(t *testing.T) {
	quiet(t)
	fake := proctest.New().OK("supabase projects api-keys --project-ref "+testRef+" -o json",
		`[{"name":"anon","api_key":"anon-key-value"},{"name":"service_role","api_key":"service-role-value"},{"name":"other","api_key":"x"}]`)
	s := &Service{CLI: CLI{Runner: fake}}
	p := prompttest.New(prompttest.Yes())

	set, err := s.Credentials(context.Background(), &provision.Project{ID: testRef}, credential.Set{}, p)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	want := map[string]string{
		ProjectRefVar:     testRef,
		URLVar:            "https://" + testRef + ".supabase.co",
		AnonKeyVar:        "anon-key-value",
		ServiceRoleKeyVar: "service-role-value",
	}
	for k, v := range want {
		if got, _ := set.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if len(set) != len(want) {
		t.Errorf("unexpected names: %v", set.Names())
	}
}

func TestCredentialsKeepsConfiguredValues(t *testing.T) {
	s := &Service{CLI: CLI{Runner: proctest.New()}}
	have := credential.Set{
		URLVar:            credential.Value("https://custom.example.com"),
		AnonKeyVar:        credential.Value("anon"),
		ServiceRoleKeyVar: credential.Value("service"),
	}
	p := prompttest.New()

	set, err := s.Credentials(context.Background(), &provision.Project{ID: testRef}, have, p)
	if err != nil {
		t.Fatal(err)
	}
	if set.Configured(URLVar) || set.Configured(AnonKeyVar) {
		t.Errorf("configured names rediscovered: %v", set.Names())
	}
	if !set.Configured(ProjectRefVar) {
		t.Error("project ref should still be derived from the link")
	}
	if len(p.Questions) != 0 {
		t.Errorf("asked %v", p.Questions)
	}
}

func TestCredentialsWithoutLink(t *testing.T) {
	s := &Service{CLI: CLI{Runner: proctest.New()}}
	set, err := s.Credentials(context.Background(), nil, credential.Set{}, prompttest.New())
	if err != nil || len(set) != 0 {
		t.Errorf("set=%v err=%v", set, err)
	}
}

// Logged in, not initialized: init and link create the files the checks read.
func TestProvisionInitAndLink(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	fake := proctest.New().
		OK("supabase --version", "1.200.3").
		OK("supabase projects list -o json", `[{"id":"`+testRef+`","name":"prod"}]`).
		OK("supabase projects api-keys --project-ref "+testRef+" -o json", `[{"name":"anon","api_key":"anon-e2e-key"}]`)
	fake.Handler = func(c proc.Cmd) (proc.Result, bool) {
		switch c.String() {
		case "supabase init":
			writeFile(t, filepath.Join(c.Dir, "supabase", "config.toml"), "")
			return proc.Result{}, true
		case "supabase link --project-ref " + testRef:
			writeFile(t, filepath.Join(c.Dir, "supabase", ".temp", "project-ref"), testRef)
			return proc.Result{}, true
		}
		return proc.Result{}, false
	}

	p := prompttest.New(
		prompttest.Yes(),                // initialize
		prompttest.Pick(0),              // prod
		prompttest.Yes(),                // fetch api keys
		prompttest.Text("sbp_e2etoken"), // SUPABASE_ACCESS_TOKEN
		prompttest.Text(""),             // SUPABASE_SERVICE_ROLE_KEY skipped
	)
	prov := &provision.Provisioner{
		Service:   &Service{CLI: CLI{Runner: fake, Dir: dir}},
		Prompter:  p,
		Collector: &credential.Collector{Prompter: p, Catalog: credential.DefaultCatalog()},
		Policy:    provision.Policy{Required: true},
	}

	res, err := prov.Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.State.Initialized || !res.State.Linked {
		t.Fatalf("state = %+v; steps = %+v", res.State, res.Steps)
	}
	if res.Outcome != provision.PartiallyConfigured {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if got, _ := res.Credentials.Get(AccessTokenVar); got != "sbp_e2etoken" {
		t.Errorf("access token = %q", got)
	}
	if len(res.MissingRequired) != 0 {
		t.Errorf("missing required = %v", res.MissingRequired)
	}
	if p.Remaining() != 0 {
		t.Errorf("%d answers unused; asked %v", p.Remaining(), p.Questions)
	}
}
