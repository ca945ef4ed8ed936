// Package github is the client for the GitHub App installation API. It
// signs app assertions, caches installation tokens and exposes the small
// slice of the repository API the broker needs.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrAuthorityUnavailable means the installation token endpoint could
	// not be reached or kept failing; no cached credential was usable.
	ErrAuthorityUnavailable = errors.New("token authority unavailable")

	// ErrUpstreamUnavailable covers transient repository API failures
	// after retries were exhausted.
	ErrUpstreamUnavailable = errors.New("upstream api unavailable")

	// ErrNameTaken is returned when the generated repository name already
	// exists in the organization.
	ErrNameTaken = errors.New("repository name already taken")

	// ErrRepoNotFound is returned for 404s on repository lookups.
	ErrRepoNotFound = errors.New("repository not found")
)

const (
	// Cached installation tokens are discarded this long before their
	// upstream expiry so in-flight clones never ride a dying credential.
	tokenSafetyMargin = 5 * time.Minute

	// App assertion lifetime and clock-skew backdate.
	assertionLifetime = 9 * time.Minute
	assertionBackdate = time.Minute

	maxAPIRetries = 3
)

// Config carries the GitHub App identity and API endpoint.
type Config struct {
	AppID          string
	PrivateKey     string
	InstallationID int64
	Organization   string
	APIBaseURL     string
	RequestTimeout time.Duration
}

// Repository is the subset of the upstream repository object the broker
// cares about.
type Repository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	CloneURL      string `json:"clone_url"`
	Archived      bool   `json:"archived"`
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Client talks to the GitHub App installation API. It caches the
// org-wide installation token and deduplicates concurrent mints, and it
// satisfies oauth2.TokenSource so the API transport refreshes itself.
type Client struct {
	cfg     Config
	signKey jwk.Key
	baseURL string

	// bare client for the token endpoints (app JWT auth), api client
	// for everything else (installation token auth via oauth2).
	bare *http.Client
	api  *http.Client

	mu     sync.Mutex
	cached installationToken
	group  singleflight.Group
}

var _ oauth2.TokenSource = (*Client)(nil)

// NewClient parses the app private key and builds the API client.
func NewClient(cfg Config) (*Client, error) {
	key, err := jwk.ParseKey([]byte(cfg.PrivateKey), jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse app private key: %w", err)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	c := &Client{
		cfg:     cfg,
		signKey: key,
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		bare:    &http.Client{Timeout: cfg.RequestTimeout},
	}

	// oauth2.NewClient pulls tokens from c itself, so every API call
	// transparently reuses or refreshes the installation token.
	c.api = oauth2.NewClient(context.Background(), oauth2.ReuseTokenSource(nil, c))
	c.api.Timeout = cfg.RequestTimeout

	return c, nil
}

// appAssertion signs a short-lived RS256 app JWT. Issued-at is backdated
// a minute to absorb clock skew between us and the authority.
func (c *Client) appAssertion(now time.Time) (string, error) {
	tok, err := jwt.NewBuilder().
		IssuedAt(now.Add(-assertionBackdate)).
		Expiration(now.Add(assertionLifetime)).
		Issuer(c.cfg.AppID).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build app assertion: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, c.signKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign app assertion: %w", err)
	}

	return string(signed), nil
}

// cachedInstallationToken returns the org-wide installation token,
// minting a fresh one when the cached value is within the safety margin
// of expiry. Concurrent refreshes collapse into a single upstream call.
// Callers outside the package go through Token or RepositoryToken.
func (c *Client) cachedInstallationToken(ctx context.Context) (installationToken, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()

	if cached.Token != "" && time.Until(cached.ExpiresAt) > tokenSafetyMargin {
		return cached, nil
	}

	v, err, _ := c.group.Do("installation-token", func() (any, error) {
		c.mu.Lock()
		cached := c.cached
		c.mu.Unlock()
		if cached.Token != "" && time.Until(cached.ExpiresAt) > tokenSafetyMargin {
			return cached, nil
		}

		tok, err := c.mintInstallationToken(ctx, nil)
		if err != nil {
			return installationToken{}, err
		}

		c.mu.Lock()
		c.cached = tok
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return installationToken{}, err
	}

	return v.(installationToken), nil
}

// Token implements oauth2.TokenSource for the API transport.
func (c *Client) Token() (*oauth2.Token, error) {
	tok, err := c.cachedInstallationToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok.Token,
		TokenType:   "token",
		Expiry:      tok.ExpiresAt.Add(-tokenSafetyMargin),
	}, nil
}

// RepositoryToken mints an installation token scoped down to a single
// repository with the given permission map (e.g. {"contents": "write"}).
// Scoped tokens are never cached; each candidate credential is its own.
func (c *Client) RepositoryToken(ctx context.Context, repoFullName string, permissions map[string]string) (string, time.Time, error) {
	name := repoFullName
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	tok, err := c.mintInstallationToken(ctx, map[string]any{
		"repositories": []string{name},
		"permissions":  permissions,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return tok.Token, tok.ExpiresAt, nil
}

// mintInstallationToken calls the access_tokens endpoint authenticated
// with a fresh app assertion, retrying transport errors and 5xx.
func (c *Client) mintInstallationToken(ctx context.Context, body map[string]any) (installationToken, error) {
	assertion, err := c.appAssertion(time.Now())
	if err != nil {
		return installationToken{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, c.cfg.InstallationID)

	var payload io.Reader
	var raw []byte
	if body != nil {
		raw, err = json.Marshal(body)
		if err != nil {
			return installationToken{}, fmt.Errorf("failed to marshal token request: %w", err)
		}
	}

	var tok installationToken
	op := func() error {
		if raw != nil {
			payload = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+assertion)
		req.Header.Set("Accept", "application/vnd.github+json")
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.bare.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			drain(resp.Body)
			return fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, snippet(resp.Body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode token response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, c.retryPolicy(ctx)); err != nil {
		return installationToken{}, fmt.Errorf("%w: %v", ErrAuthorityUnavailable, err)
	}

	return tok, nil
}

// BranchHeadSHA resolves the current head commit of a branch.
func (c *Client) BranchHeadSHA(ctx context.Context, repoFullName, branch string) (string, error) {
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}

	path := fmt.Sprintf("/repos/%s/git/ref/heads/%s", repoFullName, branch)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &ref, true); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// CreateFromTemplate generates a new private repository in the
// organization from a template repository. Name collisions surface as
// ErrNameTaken; the caller owns retry-with-new-name. Creation is never
// auto-retried here because a timed-out request may have succeeded.
func (c *Client) CreateFromTemplate(ctx context.Context, templateFullName, name, description string) (Repository, error) {
	body := map[string]any{
		"owner":       c.cfg.Organization,
		"name":        name,
		"description": description,
		"private":     true,
	}

	var repo Repository
	path := fmt.Sprintf("/repos/%s/generate", templateFullName)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &repo, false); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// GetRepository fetches a repository by full name.
func (c *Client) GetRepository(ctx context.Context, fullName string) (Repository, error) {
	var repo Repository
	if err := c.doJSON(ctx, http.MethodGet, "/repos/"+fullName, nil, &repo, true); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

// ArchiveRepository flips the archived flag, making the repo read-only.
func (c *Client) ArchiveRepository(ctx context.Context, fullName string) error {
	return c.doJSON(ctx, http.MethodPatch, "/repos/"+fullName, map[string]any{"archived": true}, nil, true)
}

// doJSON performs one API call with installation-token auth. Safe
// (idempotent) calls retry on transport errors and 5xx; mutating calls
// that may half-succeed set retryable=false and go out exactly once.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any, retryable bool) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	op := func() error {
		var payload io.Reader
		if raw != nil {
			payload = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.api.Do(req)
		if err != nil {
			// Token minting failures already carry their own sentinel.
			if errors.Is(err, ErrAuthorityUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				drain(resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			drain(resp.Body)
			return backoff.Permanent(ErrRepoNotFound)
		case resp.StatusCode == http.StatusUnprocessableEntity:
			drain(resp.Body)
			return backoff.Permanent(ErrNameTaken)
		case resp.StatusCode >= 500:
			drain(resp.Body)
			return fmt.Errorf("upstream returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("upstream returned %d: %s", resp.StatusCode, snippet(resp.Body)))
		}
	}

	var err error
	if retryable {
		err = backoff.Retry(op, c.retryPolicy(ctx))
	} else {
		err = op()
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrRepoNotFound) || errors.Is(err, ErrNameTaken) || errors.Is(err, ErrAuthorityUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, maxAPIRetries), ctx)
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 4096))
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
