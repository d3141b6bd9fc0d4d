package prereq

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/proc"
)

// Tool is an external program the setup depends on.
type Tool struct {
	Name         string
	Binary       string
	VersionArgs  []string
	MinMajor     int
	Required     bool
	Purpose      string
	Instructions map[platform.OS]string
	// Packages maps a package manager to the package that provides the tool.
	Packages map[string]string
}

// DefaultTools returns the tools checked before provisioning starts.
func DefaultTools() []Tool {
	return []Tool{Git, Node, NPM, GH, Supabase}
}

var Git = Tool{
	Name:        "git",
	Binary:      "git",
	VersionArgs: []string{"--version"},
	Required:    true,
	Purpose:     "version control",
	Instructions: map[platform.OS]string{
		platform.Windows: "Install Git for Windows: https://git-scm.com/download/win",
		platform.Mac:     "Run: xcode-select --install (or brew install git)",
		platform.Linux:   "Install git with your distribution's package manager",
	},
	Packages: map[string]string{
		"brew": "git", "winget": "Git.Git", "scoop": "git", "choco": "git",
		"apt-get": "git", "dnf": "git", "pacman": "git",
	},
}

var Node = Tool{
	Name:        "node",
	Binary:      "node",
	VersionArgs: []string{"--version"},
	MinMajor:    18,
	Required:    true,
	Purpose:     "runs npx-based MCP servers",
	Instructions: map[platform.OS]string{
		platform.Windows: "Install Node.js 18+ LTS: https://nodejs.org/en/download",
		platform.Mac:     "Run: brew install node (or use https://nodejs.org/en/download)",
		platform.Linux:   "Install Node.js 18+ from https://nodejs.org/en/download or via nvm",
	},
	Packages: map[string]string{
		"brew": "node", "winget": "OpenJS.NodeJS.LTS", "scoop": "nodejs-lts", "choco": "nodejs-lts",
		"apt-get": "nodejs", "dnf": "nodejs", "pacman": "nodejs",
	},
}

var NPM = Tool{
	Name:        "npm",
	Binary:      "npm",
	VersionArgs: []string{"--version"},
	Required:    true,
	Purpose:     "installs project dependencies",
	Instructions: map[platform.OS]string{
		platform.Windows: "npm ships with Node.js: https://nodejs.org/en/download",
		platform.Mac:     "npm ships with Node.js: brew install node",
		platform.Linux:   "Install npm with your distribution's package manager",
	},
	Packages: map[string]string{
		"apt-get": "npm", "dnf": "npm", "pacman": "npm",
	},
}

var GH = Tool{
	Name:        "gh",
	Binary:      "gh",
	VersionArgs: []string{"--version"},
	Purpose:     "GitHub authentication and repository linking",
	Instructions: map[platform.OS]string{
		platform.Windows: "Run: winget install --id GitHub.cli",
		platform.Mac:     "Run: brew install gh",
		platform.Linux:   "See https://github.com/cli/cli/blob/trunk/docs/install_linux.md",
	},
	Packages: map[string]string{
		"brew": "gh", "winget": "GitHub.cli", "scoop": "gh", "choco": "gh",
		"apt-get": "gh", "dnf": "gh", "pacman": "github-cli",
	},
}

var Supabase = Tool{
	Name:        "supabase",
	Binary:      "supabase",
	VersionArgs: []string{"--version"},
	Purpose:     "Supabase login, project init, and linking",
	Instructions: map[platform.OS]string{
		platform.Windows: "Run: scoop bucket add supabase https://github.com/supabase/scoop-bucket.git && scoop install supabase",
		platform.Mac:     "Run: brew install supabase/tap/supabase",
		platform.Linux:   "Run: brew install supabase/tap/supabase (see https://supabase.com/docs/guides/cli)",
	},
	Packages: map[string]string{
		"brew": "supabase/tap/supabase", "scoop": "supabase",
	},
}

// InstallCommand returns the command that installs tool with package
// manager pm.
func InstallCommand(pm string, tool Tool) (proc.Cmd, bool) {
	pkg, ok := tool.Packages[pm]
	if !ok {
		return proc.Cmd{}, false
	}
	switch pm {
	case "brew":
		return proc.Cmd{Name: "brew", Args: []string{"install", pkg}}, true
	case "winget":
		return proc.Cmd{Name: "winget", Args: []string{"install", "--id", pkg, "-e", "--source", "winget"}}, true
	case "scoop":
		return proc.Cmd{Name: "scoop", Args: []string{"install", pkg}}, true
	case "choco":
		return proc.Cmd{Name: "choco", Args: []string{"install", pkg, "-y"}}, true
	case "apt-get":
		return proc.Cmd{Name: "sudo", Args: []string{"apt-get", "install", "-y", pkg}}, true
	case "dnf":
		return proc.Cmd{Name: "sudo", Args: []string{"dnf", "install", "-y", pkg}}, true
	case "pacman":
		return proc.Cmd{Name: "sudo", Args: []string{"pacman", "-S", "--noconfirm", pkg}}, true
	case "npm":
		return proc.Cmd{Name: "npm", Args: []string{"install", "-g", pkg}}, true
	default:
		return proc.Cmd{}, false
	}
}

// ResolveInstall picks the install command for tool on this platform. The
// preferred package manager is tried first, then the platform default, then
// any other available manager in name order.
func ResolveInstall(info platform.Info, tool Tool, preferred string) (proc.Cmd, bool) {
	var rest []string
	for pm, ok := range info.PackageManagers {
		if ok {
			rest = append(rest, pm)
		}
	}
	sort.Strings(rest)

	order := append([]string{preferred, info.PreferredPackageManager("")}, rest...)
	seen := make(map[string]bool, len(order))
	for _, pm := range order {
		if pm == "" || seen[pm] || !info.PackageManagers[pm] {
			continue
		}
		seen[pm] = true
		if cmd, ok := InstallCommand(pm, tool); ok {
			return cmd, true
		}
	}
	return proc.Cmd{}, false
}

// Installer runs a tool's install command interactively.
type Installer struct {
	Runner    proc.Runner
	Info      platform.Info
	Preferred string
}

// Install installs tool with the best available package manager.
func (i Installer) Install(ctx context.Context, tool Tool) error {
	cmd, ok := ResolveInstall(i.Info, tool, i.Preferred)
	if !ok {
		msg := fmt.Sprintf("no available package manager can install %s", tool.Name)
		if hint := tool.Instructions[i.Info.OS]; hint != "" {
			msg += ": " + hint
		}
		return errors.New(msg)
	}
	res := i.Runner.Interactive(ctx, cmd)
	if !res.OK() {
		return fmt.Errorf("%s: %s", cmd, res.Reason())
	}
	return nil
}
