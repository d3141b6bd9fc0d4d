// Package validate checks collected credentials against the live provider
// APIs. A check reports whether the provider accepted the value; it never
// returns or logs the value itself.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/protocollar/stackup/internal/logger"
)

// Status classifies a validation attempt.
type Status string

const (
	Valid       Status = "valid"
	Invalid     Status = "invalid"
	Unreachable Status = "unreachable"
	Skipped     Status = "skipped"
)

// Outcome is the result of one validation.
type Outcome struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Lookup resolves other credentials a check depends on (the project URL for
// API keys).
type Lookup func(name string) (string, bool)

// Validator checks one credential.
type Validator interface {
	Validate(ctx context.Context, name, value string, known Lookup) Outcome
}

const DefaultTimeout = 10 * time.Second

// HTTP validates credentials with a single authenticated GET against the
// provider.
type HTTP struct {
	// Client is the transport used for every request; oauth2 wraps it for
	// bearer tokens.
	Client      *http.Client
	Timeout     time.Duration
	GitHubAPI   string
	SupabaseAPI string
}

// NewHTTP returns an HTTP validator pointed at the public APIs.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		Client:      &http.Client{},
		Timeout:     timeout,
		GitHubAPI:   "https://api.github.com",
		SupabaseAPI: "https://api.supabase.com",
	}
}

func (h *HTTP) Validate(ctx context.Context, name, value string, known Lookup) Outcome {
	var out Outcome
	switch name {
	case "GITHUB_PERSONAL_ACCESS_TOKEN", "GITHUB_TOKEN":
		out = h.bearer(ctx, strings.TrimRight(h.GitHubAPI, "/")+"/user", value)
	case "SUPABASE_ACCESS_TOKEN":
		out = h.bearer(ctx, strings.TrimRight(h.SupabaseAPI, "/")+"/v1/projects", value)
	case "SUPABASE_ANON_KEY", "SUPABASE_SERVICE_ROLE_KEY":
		base, ok := "", false
		if known != nil {
			base, ok = known("SUPABASE_URL")
		}
		if !ok || base == "" {
			out = Outcome{Status: Skipped, Detail: "SUPABASE_URL is not known yet"}
			break
		}
		out = h.apiKey(ctx, strings.TrimRight(base, "/")+"/rest/v1/", value)
	default:
		out = Outcome{Status: Skipped, Detail: "no check available"}
	}
	logger.Event("credential validated", "name", name, "status", string(out.Status))
	return out
}

func (h *HTTP) bearer(ctx context.Context, url, token string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client())
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Status: Unreachable, Detail: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	return classify(client.Do(req))
}

func (h *HTTP) apiKey(ctx context.Context, url, key string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Status: Unreachable, Detail: err.Error()}
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	return classify(h.client().Do(req))
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func classify(resp *http.Response, err error) Outcome {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Status: Unreachable, Detail: "timed out"}
		}
		return Outcome{Status: Unreachable, Detail: "request failed"}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Outcome{Status: Invalid, Detail: fmt.Sprintf("rejected (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Status: Valid}
	default:
		return Outcome{Status: Unreachable, Detail: fmt.Sprintf("unexpected HTTP %d", resp.StatusCode)}
	}
}
