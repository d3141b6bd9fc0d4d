// Package platform identifies the host OS family, shell, and available
// package managers.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// OS is the normalized operating system family.
type OS string

const (
	Windows OS = "windows"
	Mac     OS = "mac"
	Linux   OS = "linux"
)

// Info describes the host. It is computed once at startup and never mutated.
type Info struct {
	OS              OS              `json:"os"`
	IsWindows       bool            `json:"is_windows"`
	IsMac           bool            `json:"is_mac"`
	IsLinux         bool            `json:"is_linux"`
	Shell           string          `json:"shell"`
	ShellBinary     string          `json:"shell_binary"`
	ShellFlag       string          `json:"shell_flag"`
	PackageManagers map[string]bool `json:"package_managers"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// candidates lists the package managers checked per OS, in preference order.
var candidates = map[OS][]string{
	Windows: {"winget", "scoop", "choco", "npm"},
	Mac:     {"brew", "npm"},
	Linux:   {"brew", "apt-get", "dnf", "pacman", "npm"},
}

// Detect inspects the running host.
func Detect() Info {
	return detect(runtime.GOOS, os.Getenv, exec.LookPath)
}

func detect(goos string, getenv func(string) string, lookPath func(string) (string, error)) Info {
	var info Info

	switch goos {
	case "windows":
		info.OS = Windows
	case "darwin":
		info.OS = Mac
	case "linux":
		info.OS = Linux
	default:
		info.OS = Linux
		info.Warnings = append(info.Warnings,
			fmt.Sprintf("unrecognized platform %q, assuming linux-like behavior", goos))
	}
	info.IsWindows = info.OS == Windows
	info.IsMac = info.OS == Mac
	info.IsLinux = info.OS == Linux

	if info.IsWindows {
		info.ShellBinary = "cmd"
		if spec := getenv("ComSpec"); spec != "" {
			info.ShellBinary = strings.TrimSuffix(strings.ToLower(filepath.Base(windowsBase(spec))), ".exe")
		}
		info.ShellFlag = "/c"
		info.Shell = info.ShellBinary
	} else {
		info.ShellBinary = getenv("SHELL")
		if info.ShellBinary == "" {
			info.ShellBinary = "/bin/sh"
		}
		info.ShellFlag = "-c"
		info.Shell = filepath.Base(info.ShellBinary)
	}

	info.PackageManagers = make(map[string]bool)
	for _, pm := range candidates[info.OS] {
		_, err := lookPath(pm)
		info.PackageManagers[pm] = err == nil
	}

	return info
}

// windowsBase strips a Windows directory prefix regardless of the host's
// path separator so detection is testable on any OS.
func windowsBase(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// PreferredPackageManager returns the first available package manager for
// the platform, honoring preferred when it is available. npm is never
// returned here; it installs node packages only.
func (i Info) PreferredPackageManager(preferred string) string {
	if preferred != "" && i.PackageManagers[preferred] {
		return preferred
	}
	for _, pm := range candidates[i.OS] {
		if pm != "npm" && i.PackageManagers[pm] {
			return pm
		}
	}
	return ""
}

// HasPackageManager reports whether name was found on PATH.
func (i Info) HasPackageManager(name string) bool {
	return i.PackageManagers[name]
}
