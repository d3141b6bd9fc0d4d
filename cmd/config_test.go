package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/protocollar/stackup/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func loadTestProfile(t *testing.T, dir string) *config.Profile {
	t.Helper()
	p, err := config.Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestProfileDoctorClean(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), ".env.local\n.mcp.json\n")

	errs, warnings := profileDoctor(dir, loadTestProfile(t, dir))
	if len(errs) != 0 || len(warnings) != 0 {
		t.Errorf("errors = %q, warnings = %q", errs, warnings)
	}
}

func TestProfileDoctorWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stackup.yaml"), `
servers:
  nosuchserver:
    enabled: true
credentials:
  UNUSED_KEY:
    description: nobody reads this
`)

	errs, warnings := profileDoctor(dir, loadTestProfile(t, dir))
	if len(errs) != 0 {
		t.Errorf("errors = %q", errs)
	}
	joined := strings.Join(warnings, "\n")
	for _, want := range []string{
		"servers.nosuchserver: not in the template",
		"credentials.UNUSED_KEY: no server uses it",
		".env.local is not in .gitignore",
		".mcp.json is not in .gitignore",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
}

func TestProfileDoctorBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".mcp.json.template"), "{not json")
	writeFile(t, filepath.Join(dir, ".mcp.json"), "[]")

	errs, _ := profileDoctor(dir, loadTestProfile(t, dir))
	if len(errs) != 2 {
		t.Fatalf("errors = %q, want template and output errors", errs)
	}
	if !strings.HasPrefix(errs[0], "template:") || !strings.HasPrefix(errs[1], "output:") {
		t.Errorf("errors = %q", errs)
	}
}

func TestMissingIgnoresRespectsPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), ".env*\n")

	got := missingIgnores(dir, loadTestProfile(t, dir))
	if strings.Join(got, ",") != ".mcp.json" {
		t.Errorf("missingIgnores = %q, want [.mcp.json]", got)
	}
}

func TestOrEmpty(t *testing.T) {
	if got := orEmpty(nil); got == nil || len(got) != 0 {
		t.Errorf("orEmpty(nil) = %#v", got)
	}
	in := []string{"a"}
	if got := orEmpty(in); len(got) != 1 || got[0] != "a" {
		t.Errorf("orEmpty = %q", got)
	}
}
