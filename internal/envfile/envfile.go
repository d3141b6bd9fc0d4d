// Package envfile reads and updates KEY=value environment files without
// disturbing lines it does not own.
package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// ErrUnencodable is returned for a value no env file encoding reads back
// unchanged.
var ErrUnencodable = errors.New("value cannot be written to an env file unchanged")

var keyLine = regexp.MustCompile(`^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_.]*)\s*=`)

// Read parses the env file at path. A missing file yields an empty map.
func Read(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes env file content.
func Parse(data []byte) (map[string]string, error) {
	vals, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing env file: %w", err)
	}
	return vals, nil
}

// Lookup returns a lookup function over several sources. Earlier sources
// win.
func Lookup(sources ...map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		for _, s := range sources {
			if v, ok := s[name]; ok {
				return v, true
			}
		}
		return "", false
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			out[k] = v
		}
	}
	return out
}

// Merge writes updates into existing content. Lines for other keys and
// comments are kept as they are. A key already holding the same value keeps
// its original line. Keys not present are appended in sorted order.
func Merge(existing []byte, updates map[string]string) ([]byte, error) {
	var lines []string
	if len(existing) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(existing), "\n"), "\n")
	}

	seen := make(map[string]bool)
	for i, line := range lines {
		m := keyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := m[1]
		want, ok := updates[key]
		if !ok {
			continue
		}
		seen[key] = true
		if cur, err := godotenv.Unmarshal(line); err == nil {
			if v, ok := cur[key]; ok && v == want {
				continue
			}
		}
		enc, err := FormatValue(want)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		lines[i] = key + "=" + enc
	}

	var add []string
	for k := range updates {
		if !seen[k] {
			add = append(add, k)
		}
	}
	sort.Strings(add)
	for _, k := range add {
		enc, err := FormatValue(updates[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		lines = append(lines, k+"="+enc)
	}

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// FormatValue quotes v only when a reader would otherwise misparse it.
// Single quotes are preferred because dotenv readers take them literally.
// Every candidate is parsed back, and ErrUnencodable is returned when none
// yields v.
func FormatValue(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if !strings.ContainsAny(v, " \t\r\n#'\"\\$`") {
		return v, nil
	}
	var candidates []string
	if !strings.ContainsAny(v, "'\r\n") {
		candidates = append(candidates, "'"+v+"'")
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, `$`, `\$`)
	candidates = append(candidates, `"`+r.Replace(v)+`"`)
	if !strings.ContainsAny(v, "\r\n") {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if decodes(c, v) {
			return c, nil
		}
	}
	return "", ErrUnencodable
}

// Encodable reports whether v can be stored in an env file.
func Encodable(v string) bool {
	_, err := FormatValue(v)
	return err == nil
}

func decodes(enc, want string) bool {
	got, err := godotenv.Unmarshal("KEY=" + enc)
	return err == nil && got["KEY"] == want
}
