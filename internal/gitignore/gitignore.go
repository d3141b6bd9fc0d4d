// Package gitignore extends .gitignore files. Entries are appended when no
// existing pattern already covers them; nothing is ever removed.
package gitignore

import (
	"bufio"
	"bytes"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Patterns returns the active patterns in content, skipping blank lines,
// comments, and negations.
func Patterns(content []byte) []string {
	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// Covers reports whether pattern ignores the repository-relative path entry.
func Covers(pattern, entry string) bool {
	entry = strings.TrimPrefix(entry, "/")
	p := strings.TrimSuffix(pattern, "/")
	anchored := strings.HasPrefix(p, "/") || strings.Contains(strings.TrimPrefix(p, "/"), "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return false
	}
	if !anchored {
		p = "**/" + p
	}
	if ok, _ := doublestar.Match(p, entry); ok {
		return true
	}
	// A pattern matching a parent directory ignores everything below it.
	for dir := path.Dir(entry); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if ok, _ := doublestar.Match(p, dir); ok {
			return true
		}
	}
	return false
}

// Ensure returns content with every entry not already covered appended, and
// the entries it added.
func Ensure(content []byte, entries []string) ([]byte, []string) {
	patterns := Patterns(content)
	var added []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		covered := false
		for _, p := range append(patterns, added...) {
			if p == e || Covers(p, e) {
				covered = true
				break
			}
		}
		if !covered {
			added = append(added, e)
		}
	}
	if len(added) == 0 {
		return content, nil
	}

	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteByte('\n')
	}
	if len(content) > 0 {
		buf.WriteString("\n# Local secrets and generated MCP config\n")
	}
	for _, e := range added {
		buf.WriteString(e)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), added
}
