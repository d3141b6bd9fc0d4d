package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/protocollar/stackup/internal/flock"
	"gopkg.in/yaml.v3"
)

// User holds per-user preferences stored in $XDG_CONFIG_HOME/stackup/config.yaml.
type User struct {
	// OpenBrowser offers to open credential reference pages. Defaults to true.
	OpenBrowser *bool `yaml:"open_browser,omitempty" json:"open_browser,omitempty"`
	// PackageManager is tried first when installing missing tools.
	PackageManager string `yaml:"package_manager,omitempty" json:"package_manager,omitempty"`
	// Validate checks provider APIs to check credentials. Defaults to true.
	Validate *bool `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// UserPath returns the user config file path.
func UserPath() string {
	return filepath.Join(xdg.ConfigHome, "stackup", "config.yaml")
}

// StatePath returns the default log file path.
func StatePath() string {
	return filepath.Join(xdg.StateHome, "stackup", "stackup.log")
}

// LoadUser reads the user config from path. A missing file yields an empty
// config.
func LoadUser(path string) (*User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &User{}, nil
		}
		return nil, fmt.Errorf("reading user config: %w", err)
	}
	var u User
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parsing user config: %w", err)
	}
	return &u, nil
}

// Save writes the user config to path under an advisory lock.
func (u *User) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshaling user config: %w", err)
	}
	return flock.With(path, func() error {
		return os.WriteFile(path, data, 0o644)
	})
}

// WantsBrowser reports whether to offer opening reference pages.
func (u *User) WantsBrowser() bool { return u.OpenBrowser == nil || *u.OpenBrowser }

// WantsValidation reports whether credentials are checked against provider APIs.
func (u *User) WantsValidation() bool { return u.Validate == nil || *u.Validate }

// UserKeys lists the keys accepted by Set.
func UserKeys() []string {
	keys := []string{"open_browser", "package_manager", "validate"}
	sort.Strings(keys)
	return keys
}

// Set assigns one preference by key.
func (u *User) Set(key, value string) error {
	switch strings.ReplaceAll(key, "-", "_") {
	case "open_browser":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("open_browser must be true or false, got %q", value)
		}
		u.OpenBrowser = &b
	case "validate":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("validate must be true or false, got %q", value)
		}
		u.Validate = &b
	case "package_manager":
		u.PackageManager = strings.TrimSpace(value)
	default:
		return fmt.Errorf("unknown key %q (available: %s)", key, strings.Join(UserKeys(), ", "))
	}
	return nil
}
