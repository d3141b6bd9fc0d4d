package credential

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/protocollar/stackup/internal/logger"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"YOUR_TOKEN_HERE", false},
		{"YOUR_GITHUB_TOKEN", false},
		{"TOKEN_HERE", false},
		{"prefix-YOUR_-suffix", false},
		{"abc123", true},
		{"ghp_0123456789", true},
		{"your_token_here", true}, // sentinels are case-sensitive
	}
	for _, tt := range tests {
		if got := IsConfigured(tt.in); got != tt.want {
			t.Errorf("IsConfigured(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got := FromRaw(tt.in).IsSet(); got != tt.want {
			t.Errorf("FromRaw(%q).IsSet() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCredentialStringHidesValue(t *testing.T) {
	c := Value("super-secret")
	if strings.Contains(c.String(), "super-secret") {
		t.Error("String() leaked value")
	}
	if Unset().String() != "unset" {
		t.Errorf("Unset().String() = %q", Unset().String())
	}
}

func TestSetPutRegistersSecret(t *testing.T) {
	s := make(Set)
	s.Put("TOKEN", "put-registers-this-secret")
	s.PutPlain("SUPABASE_PROJECT_REF", "abcdefghijklmnop")

	if got := logger.Redact("token=put-registers-this-secret"); got != "token=****" {
		t.Errorf("secret not registered: %q", got)
	}
	if got := logger.Redact("ref abcdefghijklmnop"); got != "ref abcdefghijklmnop" {
		t.Errorf("plain value should not be redacted: %q", got)
	}
}

func TestSetPutPlaceholderIsUnset(t *testing.T) {
	s := make(Set)
	s.Put("TOKEN", "YOUR_TOKEN_HERE")
	if s.Configured("TOKEN") {
		t.Error("placeholder should not count as configured")
	}
	if _, ok := s["TOKEN"]; !ok {
		t.Error("placeholder should still be recorded as unset")
	}
}

func TestSetMerge(t *testing.T) {
	a := Set{"A": Value("1"), "B": Value("2")}
	b := Set{"B": Unset(), "C": Value("3"), "A": Value("10")}

	m := a.Merge(b)
	if v, _ := m.Get("A"); v != "10" {
		t.Errorf("A = %q, want override", v)
	}
	if v, _ := m.Get("B"); v != "2" {
		t.Errorf("B = %q, unset must not clear", v)
	}
	if !m.Configured("C") {
		t.Error("C missing")
	}
	if _, ok := a["C"]; ok {
		t.Error("Merge mutated receiver")
	}
}

func TestSetValuesAndNames(t *testing.T) {
	s := Set{"B": Value("2"), "A": Unset(), "C": Value("3")}
	vals := s.Values()
	if len(vals) != 2 || vals["B"] != "2" || vals["C"] != "3" {
		t.Errorf("Values() = %v", vals)
	}
	if got := strings.Join(s.Names(), ","); got != "A,B,C" {
		t.Errorf("Names() = %s", got)
	}
	if got := strings.Join(s.ConfiguredNames(), ","); got != "B,C" {
		t.Errorf("ConfiguredNames() = %s", got)
	}
}

func TestSetJSONHidesValues(t *testing.T) {
	s := Set{"TOKEN": Value("json-secret-value"), "OTHER": Unset()}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "json-secret-value") {
		t.Errorf("JSON leaked value: %s", data)
	}
	if string(data) != `{"OTHER":false,"TOKEN":true}` {
		t.Errorf("JSON = %s", data)
	}
}

func TestFromLookup(t *testing.T) {
	env := map[string]string{"A": "real", "B": "YOUR_B_HERE", "C": ""}
	s := FromLookup([]string{"A", "B", "C", "D"}, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if !s.Configured("A") {
		t.Error("A should be configured")
	}
	for _, n := range []string{"B", "C", "D"} {
		if s.Configured(n) {
			t.Errorf("%s should not be configured", n)
		}
	}
}

func TestMissing(t *testing.T) {
	s := Set{"A": Value("x"), "B": Unset()}
	got := Missing([]string{"C", "A", "B", "C"}, s)
	if strings.Join(got, ",") != "B,C" {
		t.Errorf("Missing = %v", got)
	}
	if Missing(nil, s) != nil {
		t.Error("no required names should yield nil")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	gh := c.Lookup("GITHUB_PERSONAL_ACCESS_TOKEN")
	if gh.URL == "" || gh.Description == "" {
		t.Errorf("github spec = %+v", gh)
	}
	if !c.Lookup("SUPABASE_URL").Plain {
		t.Error("SUPABASE_URL should be plain")
	}
	if got := c.Lookup("UNKNOWN_VAR").Description; !strings.Contains(got, "UNKNOWN_VAR") {
		t.Errorf("fallback description = %q", got)
	}
}

func TestCatalogWith(t *testing.T) {
	base := Catalog{"A": {Description: "base", URL: "https://a"}}
	c := base.With(Catalog{
		"A": {Required: true},
		"B": {Description: "new"},
	})
	if c["A"].Description != "base" || c["A"].URL != "https://a" || !c["A"].Required {
		t.Errorf("A = %+v", c["A"])
	}
	if c["B"].Description != "new" {
		t.Errorf("B = %+v", c["B"])
	}
	if base["A"].Required {
		t.Error("With mutated base")
	}
	if got := c.HardRequired([]string{"B", "A"}); len(got) != 1 || got[0] != "A" {
		t.Errorf("HardRequired = %v", got)
	}
}

func TestParseCatalogInvalid(t *testing.T) {
	if _, err := ParseCatalog([]byte("A: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}
