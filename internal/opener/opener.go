// Package opener opens reference URLs (token pages, dashboards) in the
// user's browser.
package opener

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/protocollar/stackup/internal/platform"
	"github.com/protocollar/stackup/internal/proc"
)

const openTimeout = 10 * time.Second

// Command returns the platform command that opens rawURL.
func Command(info platform.Info, rawURL string) proc.Cmd {
	switch info.OS {
	case platform.Windows:
		// start treats the first quoted argument as a window title.
		return proc.Cmd{Name: "cmd", Args: []string{"/c", "start", "", rawURL}}
	case platform.Mac:
		return proc.Cmd{Name: "open", Args: []string{rawURL}}
	default:
		return proc.Cmd{Name: "xdg-open", Args: []string{rawURL}}
	}
}

// Opener opens URLs through a proc.Runner.
type Opener struct {
	Runner proc.Runner
	Info   platform.Info
}

// Open validates rawURL and launches the browser. Only http and https URLs
// are accepted.
func (o Opener) Open(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", rawURL)
	}
	cmd := Command(o.Info, u.String())
	cmd.Timeout = openTimeout
	res := o.Runner.Capture(ctx, cmd)
	if !res.OK() {
		return fmt.Errorf("opening browser: %s", res.Reason())
	}
	return nil
}
