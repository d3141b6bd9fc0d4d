// Package project prepares the working tree: declared directories, the
// package.json check, and installing node dependencies.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/proc"
	"github.com/protocollar/stackup/internal/prompt"
)

// Directories reports EnsureDirs.
type Directories struct {
	Created  []string          `json:"created"`
	Existing []string          `json:"existing"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// EnsureDirs creates each directory under root that does not exist yet.
// Paths escaping root are rejected.
func EnsureDirs(root string, dirs []string) Directories {
	res := Directories{Created: []string{}, Existing: []string{}}
	fail := func(d string, err error) {
		if res.Failed == nil {
			res.Failed = make(map[string]string)
		}
		res.Failed[d] = err.Error()
	}
	for _, d := range dirs {
		clean := filepath.Clean(d)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			fail(d, errors.New("outside the project directory"))
			continue
		}
		full := filepath.Join(root, clean)
		info, err := os.Stat(full)
		switch {
		case err == nil && info.IsDir():
			res.Existing = append(res.Existing, d)
		case err == nil:
			fail(d, errors.New("exists and is not a directory"))
		default:
			if err := os.MkdirAll(full, 0o755); err != nil {
				fail(d, err)
				continue
			}
			res.Created = append(res.Created, d)
			logger.Success("Created %s/", d)
		}
	}
	return res
}

// PackageJSON summarizes the project's package.json.
type PackageJSON struct {
	Exists          bool   `json:"exists"`
	Name            string `json:"name,omitempty"`
	HasDependencies bool   `json:"has_dependencies"`
	Error           string `json:"error,omitempty"`
}

// InspectPackageJSON reads package.json in root.
func InspectPackageJSON(root string) PackageJSON {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		if !os.IsNotExist(err) {
			return PackageJSON{Error: err.Error()}
		}
		return PackageJSON{}
	}
	var pkg struct {
		Name            string          `json:"name"`
		Dependencies    json.RawMessage `json:"dependencies"`
		DevDependencies json.RawMessage `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return PackageJSON{Exists: true, Error: fmt.Sprintf("parsing package.json: %v", err)}
	}
	return PackageJSON{
		Exists:          true,
		Name:            pkg.Name,
		HasDependencies: nonEmpty(pkg.Dependencies) || nonEmpty(pkg.DevDependencies),
	}
}

func nonEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "{}"
}

// DependencyStatus is the outcome of the install step.
type DependencyStatus string

const (
	DepsInstalled DependencyStatus = "installed"
	DepsPresent   DependencyStatus = "already-installed"
	DepsNotNeeded DependencyStatus = "not-needed"
	DepsSkipped   DependencyStatus = "skipped"
	DepsFailed    DependencyStatus = "failed"
)

// Dependencies reports the install step.
type Dependencies struct {
	Status DependencyStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// Installer installs node dependencies with npm.
type Installer struct {
	Runner   proc.Runner
	Prompter prompt.Prompter
	Dir      string
}

// Install offers npm install when package.json declares dependencies and
// node_modules is missing. A failed install is reported, not returned.
func (i Installer) Install(ctx context.Context, pkg PackageJSON, allow bool) (Dependencies, error) {
	if !pkg.Exists || !pkg.HasDependencies {
		return Dependencies{Status: DepsNotNeeded}, nil
	}
	if info, err := os.Stat(filepath.Join(i.Dir, "node_modules")); err == nil && info.IsDir() {
		return Dependencies{Status: DepsPresent}, nil
	}
	if !allow {
		return Dependencies{Status: DepsSkipped, Detail: "installs disabled"}, nil
	}
	ok, err := i.Prompter.YesNo("Install node dependencies with npm install?", true)
	if err != nil {
		return Dependencies{}, err
	}
	if !ok {
		return Dependencies{Status: DepsSkipped, Detail: "declined"}, nil
	}

	cmd := proc.Cmd{Dir: i.Dir, Name: "npm", Args: []string{"install"}}
	res := i.Runner.Interactive(ctx, cmd)
	if !res.OK() {
		logger.Warn("npm install failed: %s", res.Reason())
		return Dependencies{Status: DepsFailed, Detail: res.Reason()}, nil
	}
	logger.Success("Dependencies installed")
	return Dependencies{Status: DepsInstalled}, nil
}
