// Package config loads the project profile (stackup.yaml) and the per-user
// preferences file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/protocollar/stackup/internal/credential"
	"gopkg.in/yaml.v3"
)

// ProfileNames are the file names Load looks for, in order.
var ProfileNames = []string{"stackup.yaml", "stackup.yml"}

// Profile is the project's stackup.yaml. Every field is optional.
type Profile struct {
	Template            string                  `yaml:"template" json:"template"`
	Output              string                  `yaml:"output" json:"output"`
	EnvFile             string                  `yaml:"env_file" json:"env_file"`
	Gitignore           []string                `yaml:"gitignore" json:"gitignore"`
	Directories         []string                `yaml:"directories" json:"directories"`
	Servers             map[string]ServerConfig `yaml:"servers,omitempty" json:"servers,omitempty"`
	Credentials         credential.Catalog      `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Discovery           Discovery               `yaml:"discovery" json:"discovery"`
	CheckTimeout        time.Duration           `yaml:"check_timeout" json:"check_timeout"`
	InstallDependencies *bool                   `yaml:"install_dependencies" json:"install_dependencies"`
	Services            Services                `yaml:"services" json:"services"`

	// Path is the file the profile was read from, empty for defaults.
	Path string `yaml:"-" json:"path,omitempty"`
}

// ServerConfig overrides one server's default enablement.
type ServerConfig struct {
	Enabled *bool `yaml:"enabled" json:"enabled,omitempty"`
}

// Discovery controls remote project listing retries.
type Discovery struct {
	Retries    int           `yaml:"retries" json:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// Services toggles the provisioners.
type Services struct {
	GitHub   ServiceConfig `yaml:"github" json:"github"`
	Supabase ServiceConfig `yaml:"supabase" json:"supabase"`
}

// ServiceConfig configures one provisioner.
type ServiceConfig struct {
	Enabled  *bool `yaml:"enabled" json:"enabled"`
	Required *bool `yaml:"required" json:"required"`
}

// IsEnabled defaults to true.
func (s ServiceConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// IsRequired defaults to false.
func (s ServiceConfig) IsRequired() bool { return s.Required != nil && *s.Required }

// Load reads the profile from rootPath, or from explicit when it is set.
// A missing profile yields the defaults; a missing explicit file is an error.
func Load(rootPath, explicit string) (*Profile, error) {
	candidates := make([]string, 0, len(ProfileNames))
	if explicit != "" {
		candidates = append(candidates, explicit)
	} else {
		for _, name := range ProfileNames {
			candidates = append(candidates, filepath.Join(rootPath, name))
		}
	}

	p := &Profile{}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && explicit == "" {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		p.Path = path
		break
	}
	applyDefaults(p)
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", p.source(), err)
	}
	return p, nil
}

func (p *Profile) source() string {
	if p.Path == "" {
		return "profile"
	}
	return filepath.Base(p.Path)
}

const DefaultCheckTimeout = 15 * time.Second

func applyDefaults(p *Profile) {
	if p.Template == "" {
		p.Template = ".mcp.json.template"
	}
	if p.Output == "" {
		p.Output = ".mcp.json"
	}
	if p.EnvFile == "" {
		p.EnvFile = ".env.local"
	}
	if p.Gitignore == nil {
		p.Gitignore = []string{p.EnvFile, p.Output}
	}
	if p.Directories == nil {
		p.Directories = []string{}
	}
	if p.CheckTimeout == 0 {
		p.CheckTimeout = DefaultCheckTimeout
	}
	if p.InstallDependencies == nil {
		t := true
		p.InstallDependencies = &t
	}
}

func (p *Profile) validate() error {
	var errs []error
	if p.Discovery.Retries < 0 {
		errs = append(errs, errors.New("discovery.retries must not be negative"))
	}
	if p.Discovery.RetryDelay < 0 {
		errs = append(errs, errors.New("discovery.retry_delay must not be negative"))
	}
	if p.CheckTimeout < 0 {
		errs = append(errs, errors.New("check_timeout must not be negative"))
	}
	if filepath.IsAbs(p.Output) || filepath.IsAbs(p.EnvFile) {
		errs = append(errs, errors.New("output and env_file must be relative to the project"))
	}
	return errors.Join(errs...)
}

// Resolve returns a profile path relative to rootPath.
func (p *Profile) Resolve(rootPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(rootPath, rel)
}

// ServerOverrides returns the enablement overrides set in the profile.
func (p *Profile) ServerOverrides() map[string]bool {
	out := make(map[string]bool)
	for name, s := range p.Servers {
		if s.Enabled != nil {
			out[name] = *s.Enabled
		}
	}
	return out
}

// ServerNames returns the configured server names, sorted.
func (p *Profile) ServerNames() []string {
	names := make([]string, 0, len(p.Servers))
	for n := range p.Servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Catalog returns the built-in credential catalog with the profile's
// overrides applied.
func (p *Profile) Catalog() credential.Catalog {
	return credential.DefaultCatalog().With(p.Credentials)
}

// Marshal renders the resolved profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling profile: %w", err)
	}
	return data, nil
}
