package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/protocollar/stackup/internal/config"
	"github.com/protocollar/stackup/internal/exitcode"
	"github.com/protocollar/stackup/internal/gitignore"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/registry"
	"github.com/protocollar/stackup/internal/writer"
)

var doctorFix bool

func init() {
	configDoctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "add missing .gitignore entries")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configDoctorCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage configuration",
	Long: `View and manage configuration.

The project profile lives in stackup.yaml in the project root. Per-user
preferences (browser opening, credential validation, preferred package
manager) live in the user config file; see "stackup config path".`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved project profile",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the profile and template, and optionally fix .gitignore",
	Args:  cobra.NoArgs,
	RunE:  runConfigDoctor,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a stackup.yaml with the defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a user preference",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.UserKeys(),
	RunE:      runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config and log file paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	p, err := loadProfile(dir)
	if err != nil {
		return err
	}
	if jsonout.Enabled {
		return jsonout.Write(p)
	}
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if p.Path != "" {
		fmt.Fprintf(jsonout.MsgOut(), "# %s\n", p.Path)
	} else {
		fmt.Fprintln(jsonout.MsgOut(), "# no stackup.yaml; defaults")
	}
	fmt.Fprint(jsonout.MsgOut(), string(data))
	return nil
}

// profileDoctor checks the profile against the template and the project's
// .gitignore.
func profileDoctor(dir string, p *config.Profile) (configErrors, warnings []string) {
	tmplPath := p.Resolve(dir, p.Template)
	tmpl, err := registry.LoadTemplate(tmplPath)
	if err != nil {
		configErrors = append(configErrors, fmt.Sprintf("template: %v", err))
		tmpl = registry.Default()
	}

	for _, name := range p.ServerNames() {
		if _, ok := tmpl.Servers[name]; !ok {
			warnings = append(warnings, fmt.Sprintf("servers.%s: not in the template", name))
		}
	}

	used := make(map[string]bool)
	for _, name := range tmpl.Names() {
		for _, v := range registry.RequiredVars(tmpl.Servers[name]) {
			used[v] = true
		}
	}
	for _, name := range sortedCatalogNames(p) {
		if !used[name] {
			warnings = append(warnings, fmt.Sprintf("credentials.%s: no server uses it", name))
		}
	}

	if _, err := registry.Load(p.Resolve(dir, p.Output)); err != nil {
		configErrors = append(configErrors, fmt.Sprintf("output: %v", err))
	}

	for _, entry := range missingIgnores(dir, p) {
		warnings = append(warnings, fmt.Sprintf("%s is not in .gitignore (fixable)", entry))
	}
	return configErrors, warnings
}

func sortedCatalogNames(p *config.Profile) []string {
	keys := make([]string, 0, len(p.Credentials))
	for k := range p.Credentials {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// missingIgnores returns the profile's gitignore entries not yet covered.
func missingIgnores(dir string, p *config.Profile) []string {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	_, added := gitignore.Ensure(data, p.Gitignore)
	return added
}

func runConfigDoctor(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	p, err := loadProfile(dir)
	if err != nil {
		return err
	}

	configErrors, warnings := profileDoctor(dir, p)

	var fixed []string
	if doctorFix {
		if missing := missingIgnores(dir, p); len(missing) > 0 {
			a := writer.EnsureGitignore(filepath.Join(dir, ".gitignore"), p.Gitignore)
			if a.Status == writer.Failed {
				return exitcode.Wrap("write_failed", exitcode.WriteFailed, a)
			}
			for _, m := range missing {
				fixed = append(fixed, ".gitignore: added "+m)
			}
		}
	}

	if jsonout.Enabled {
		return jsonout.Write(struct {
			Valid    bool     `json:"valid"`
			Errors   []string `json:"errors"`
			Warnings []string `json:"warnings"`
			Fixed    []string `json:"fixed"`
		}{
			Valid:    len(configErrors) == 0,
			Errors:   orEmpty(configErrors),
			Warnings: orEmpty(warnings),
			Fixed:    orEmpty(fixed),
		})
	}

	out := jsonout.MsgOut()
	if len(configErrors) > 0 {
		fmt.Fprintln(out, "Errors:")
		for _, e := range configErrors {
			fmt.Fprintf(out, "  ✗ %s\n", e)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintln(out, "Warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  ⚠ %s\n", w)
		}
	}
	if len(fixed) > 0 {
		fmt.Fprintln(out, "Fixed:")
		for _, f := range fixed {
			fmt.Fprintf(out, "  ✓ %s\n", f)
		}
	}
	if len(configErrors) == 0 && len(warnings) == 0 {
		fmt.Fprintln(out, "✓ Configuration is valid")
	}
	if len(configErrors) > 0 {
		return exitcode.New("config_error", exitcode.ConfigError, "configuration has errors")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, config.ProfileNames[0])
	if _, err := os.Stat(path); err == nil {
		return exitcode.Errorf("already_exists", exitcode.GeneralError, "%s already exists", path)
	}
	p, err := config.Load(dir, "")
	if err != nil {
		return exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return exitcode.Wrap("write_failed", exitcode.WriteFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	if jsonout.Enabled {
		return jsonout.Write(struct {
			Path string `json:"path"`
		}{path})
	}
	fmt.Fprintf(jsonout.MsgOut(), "Wrote %s\n", path)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := config.UserPath()
	u, err := config.LoadUser(path)
	if err != nil {
		return exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	if err := u.Set(args[0], args[1]); err != nil {
		return exitcode.Wrap("config_error", exitcode.ConfigError, err)
	}
	if err := u.Save(path); err != nil {
		return exitcode.Wrap("write_failed", exitcode.WriteFailed, err)
	}
	if jsonout.Enabled {
		return jsonout.Write(u)
	}
	fmt.Fprintf(jsonout.MsgOut(), "Set %s = %s in %s\n", args[0], args[1], path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	paths := struct {
		UserConfig string `json:"user_config"`
		LogFile    string `json:"log_file"`
	}{config.UserPath(), config.StatePath()}
	if jsonout.Enabled {
		return jsonout.Write(paths)
	}
	fmt.Fprintf(jsonout.MsgOut(), "user config: %s\nlog file:    %s\n", paths.UserConfig, paths.LogFile)
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
