package credential

import (
	"context"
	"fmt"
	"sort"

	"github.com/protocollar/stackup/internal/envfile"
	"github.com/protocollar/stackup/internal/logger"
	"github.com/protocollar/stackup/internal/prompt"
	"github.com/protocollar/stackup/internal/validate"
)

// URLOpener opens a reference URL for the user.
type URLOpener interface {
	Open(ctx context.Context, url string) error
}

// Collector prompts for credentials a server needs.
type Collector struct {
	Prompter  prompt.Prompter
	Catalog   Catalog
	Validator validate.Validator // optional
	Opener    URLOpener          // optional; offers to open reference URLs
}

// Delta is what one Collect call gathered.
type Delta struct {
	Set      Set                        `json:"credentials"`
	Checks   map[string]validate.Status `json:"checks,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// Collect prompts for every name in required that is configured neither in
// have nor earlier in this call. Empty input skips a name and records it as
// unset. The returned delta holds only what this call gathered.
func (c *Collector) Collect(ctx context.Context, server string, required []string, have Set) (Delta, error) {
	delta := Delta{Set: make(Set), Checks: make(map[string]validate.Status)}

	names := append([]string(nil), required...)
	sort.Strings(names)

	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		if have.Configured(name) || delta.Set.Configured(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return delta, err
		}
		if err := c.collectOne(ctx, server, name, have, &delta); err != nil {
			return delta, err
		}
	}
	return delta, nil
}

// Require offers to re-enter each name in required that is still not
// configured in have. It keeps asking until the value is configured or the
// user declines, and returns the delta plus the names left missing.
func (c *Collector) Require(ctx context.Context, server string, required []string, have Set) (Delta, []string, error) {
	delta := Delta{Set: make(Set), Checks: make(map[string]validate.Status)}
	var missing []string
	for _, name := range Missing(required, have) {
		for !have.Merge(delta.Set).Configured(name) {
			if err := ctx.Err(); err != nil {
				return delta, nil, err
			}
			logger.Warn("%s is required", name)
			again, err := c.Prompter.YesNo(fmt.Sprintf("Re-enter %s?", name), true)
			if err != nil {
				return delta, nil, err
			}
			if !again {
				missing = append(missing, name)
				break
			}
			d, err := c.Collect(ctx, server, []string{name}, have.Merge(delta.Set))
			if err != nil {
				return delta, nil, err
			}
			delta.Set = delta.Set.Merge(d.Set)
			for k, v := range d.Checks {
				delta.Checks[k] = v
			}
			delta.Warnings = append(delta.Warnings, d.Warnings...)
		}
	}
	return delta, missing, nil
}

func (c *Collector) collectOne(ctx context.Context, server, name string, have Set, delta *Delta) error {
	spec := c.Catalog.Lookup(name)
	logger.Info("%s needs %s: %s", server, name, spec.Description)
	if spec.Hint != "" {
		logger.Info("  %s", spec.Hint)
	}
	if spec.URL != "" {
		logger.Info("  Get it at %s", spec.URL)
		if c.Opener != nil {
			open, err := c.Prompter.YesNo(fmt.Sprintf("Open %s in your browser?", spec.URL), false)
			if err != nil {
				return err
			}
			if open {
				if err := c.Opener.Open(ctx, spec.URL); err != nil {
					logger.Warn("%v", err)
				}
			}
		}
	}

	for {
		value, err := c.ask(name, spec)
		if err != nil {
			return err
		}
		if value == "" {
			delta.Set.Skip(name)
			logger.Event("credential skipped", "server", server, "name", name)
			return nil
		}
		if IsPlaceholder(value) {
			logger.Warn("%s looks like a placeholder; enter the real value or leave it empty to skip", name)
			continue
		}
		if !envfile.Encodable(value) {
			logger.Warn("%s cannot be stored in an env file as entered; enter it again or leave it empty to skip", name)
			continue
		}

		status := validate.Skipped
		if c.Validator != nil {
			known := have.Merge(delta.Set)
			out := c.Validator.Validate(ctx, name, value, known.Lookup)
			if err := ctx.Err(); err != nil {
				return err
			}
			status = out.Status

			switch out.Status {
			case validate.Invalid:
				logger.Warn("%s was rejected: %s", name, out.Detail)
				again, err := c.Prompter.YesNo(fmt.Sprintf("Re-enter %s?", name), true)
				if err != nil {
					return err
				}
				if again {
					continue
				}
				keep, err := c.Prompter.YesNo(fmt.Sprintf("Keep %s anyway (unvalidated)?", name), false)
				if err != nil {
					return err
				}
				if !keep {
					delta.Set.Skip(name)
					delta.Checks[name] = validate.Invalid
					return nil
				}
				delta.Warnings = append(delta.Warnings, fmt.Sprintf("%s was rejected by the provider and kept unvalidated", name))
			case validate.Unreachable:
				logger.Warn("could not verify %s: %s", name, out.Detail)
				delta.Warnings = append(delta.Warnings, fmt.Sprintf("%s could not be verified (%s)", name, out.Detail))
			case validate.Valid:
				logger.Success("%s verified", name)
			}
		}

		c.store(delta.Set, name, value, spec)
		delta.Checks[name] = status
		logger.Event("credential collected", "server", server, "name", name, "status", string(status))
		return nil
	}
}

func (c *Collector) ask(name string, spec Spec) (string, error) {
	q := fmt.Sprintf("%s (leave empty to skip)", name)
	if spec.Plain {
		return c.Prompter.Text(q, "")
	}
	return c.Prompter.Secret(q)
}

func (c *Collector) store(s Set, name, value string, spec Spec) {
	if spec.Plain {
		s.PutPlain(name, value)
		return
	}
	s.Put(name, value)
}
