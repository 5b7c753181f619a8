package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Result int

const (
	// NotAttempted means no token was supplied, so nothing was checked.
	NotAttempted Result = iota
	Passed
	Failed
)

func (r Result) String() string {
	switch r {
	case NotAttempted:
		return "not_attempted"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

var ErrNotConfigured = errors.New("verification secret is not configured")

// Verifier checks an anti-automation token. An empty token yields
// NotAttempted and no error. A non-nil error means the token could not be
// checked at all.
type Verifier interface {
	Verify(ctx context.Context, token string) (Result, error)
}

// Noop has nothing to check tokens against. A supplied token is refused
// with ErrNotConfigured rather than waved through.
type Noop struct{}

func (Noop) Verify(ctx context.Context, token string) (Result, error) {
	if strings.TrimSpace(token) == "" {
		return NotAttempted, nil
	}
	return Failed, ErrNotConfigured
}

const DefaultSiteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Recaptcha verifies reCAPTCHA tokens against the siteverify endpoint.
type Recaptcha struct {
	Secret   string
	MinScore float64
	URL      string
	Client   *http.Client
}

func NewRecaptcha(secret string, minScore float64) *Recaptcha {
	return &Recaptcha{
		Secret:   secret,
		MinScore: minScore,
		URL:      DefaultSiteVerifyURL,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

func (r *Recaptcha) Verify(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return NotAttempted, nil
	}
	if r.Secret == "" {
		return Failed, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("secret", r.Secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return Failed, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Failed, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failed, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var body siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Failed, fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	if !body.Success {
		return Failed, nil
	}
	if body.Score != nil && *body.Score < r.MinScore {
		return Failed, nil
	}
	return Passed, nil
}
