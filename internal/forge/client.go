package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/retry"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	defaultForkPollInterval = 2 * time.Second
	defaultForkPollAttempts = 30
)

// Client wraps the go-github client with the calls the pipeline makes.
type Client struct {
	gh           *gh.Client
	limiter      *RateLimiter
	policy       retry.Policy
	pollInterval time.Duration
	pollAttempts int
}

// Option configures a Client.
type Option func(*Client) error

// WithAPIURL points the client at a GitHub Enterprise or test server.
func WithAPIURL(raw string) Option {
	return func(c *Client) error {
		if raw == "" {
			return nil
		}
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid api url %q: %w", raw, err)
		}
		c.gh.BaseURL = u
		return nil
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) error {
		c.limiter = l
		return nil
	}
}

// WithRetryPolicy sets the policy used for retryable API failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) error {
		c.policy = p
		return nil
	}
}

// WithForkPolling sets how long EnsureFork waits for a new fork to appear.
func WithForkPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) error {
		c.pollInterval = interval
		c.pollAttempts = attempts
		return nil
	}
}

// NewClient creates a GitHub client authenticated with a static token.
// An empty token yields an unauthenticated client.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	c := &Client{
		gh:           gh.NewClient(httpClient),
		limiter:      NewRateLimiter(ProactiveRate, 5),
		policy:       retry.DefaultPolicy(),
		pollInterval: defaultForkPollInterval,
		pollAttempts: defaultForkPollAttempts,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// call runs one API request under the rate limiter and retry policy.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (*gh.Response, error)) error {
	return retry.Do(ctx, c.policy, op, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		resp, err := fn(ctx)
		if resp != nil {
			c.limiter.UpdateFromResponse(resp.Response)
		}
		return c.wrapError(err, op)
	})
}

// LatestRelease returns the newest published release of repo.
func (c *Client) LatestRelease(ctx context.Context, repo Repo) (Release, error) {
	var rel *gh.RepositoryRelease
	err := c.call(ctx, "latest release", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		rel, resp, err = c.gh.Repositories.GetLatestRelease(ctx, repo.Owner, repo.Name)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return Release{}, fmt.Errorf("%s: %w", repo, ErrNoRelease)
		}
		return Release{}, err
	}
	return Release{
		Tag:         rel.GetTagName(),
		Name:        rel.GetName(),
		URL:         rel.GetHTMLURL(),
		PublishedAt: rel.GetPublishedAt().Time,
	}, nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, repo Repo) (Repository, error) {
	var r *gh.Repository
	err := c.call(ctx, "get repository", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		r, resp, err = c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
		return resp, err
	})
	if err != nil {
		return Repository{}, err
	}
	return toRepository(r, repo), nil
}

// DefaultBranch returns the default branch of repo.
func (c *Client) DefaultBranch(ctx context.Context, repo Repo) (string, error) {
	r, err := c.GetRepository(ctx, repo)
	if err != nil {
		return "", err
	}
	if r.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s reports no default branch", repo)
	}
	return r.DefaultBranch, nil
}

// AuthenticatedUser returns the login of the token owner.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	var u *gh.User
	err := c.call(ctx, "authenticated user", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		u, resp, err = c.gh.Users.Get(ctx, "")
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return u.GetLogin(), nil
}

// EnsureFork makes sure the authenticated user has a fork of upstream and
// returns it once it is readable. Fork creation is asynchronous on GitHub, and
// the fork keeps the name GitHub reports, which differs from the upstream name
// when the user already owns an unrelated repository called that.
func (c *Client) EnsureFork(ctx context.Context, upstream Repo) (Repository, error) {
	login, err := c.AuthenticatedUser(ctx)
	if err != nil {
		return Repository{}, err
	}
	guess := Repo{Owner: login, Name: upstream.Name}

	existing, err := c.GetRepository(ctx, guess)
	switch {
	case err == nil && existing.Fork:
		slog.Debug("Fork already exists", logfields.Repository(guess.String()))
		return existing, nil
	case err == nil:
		slog.Warn("Repository with the upstream name is not a fork, requesting one", logfields.Repository(guess.String()))
	case !IsNotFound(err):
		return Repository{}, err
	}

	var created gh.Repository
	err = c.call(ctx, "create fork", func(ctx context.Context) (*gh.Response, error) {
		r, resp, err := c.gh.Repositories.CreateFork(ctx, upstream.Owner, upstream.Name, &gh.RepositoryCreateForkOptions{})
		var accepted *gh.AcceptedError
		if errors.As(err, &accepted) {
			// GitHub answers 202 while the fork is copied; the body still names it.
			if len(accepted.Raw) > 0 {
				if jerr := json.Unmarshal(accepted.Raw, &created); jerr != nil {
					return resp, fmt.Errorf("decode fork response: %w", jerr)
				}
			}
			return resp, nil
		}
		if err == nil && r != nil {
			created = *r
		}
		return resp, err
	})
	if err != nil {
		return Repository{}, err
	}
	forkRepo := toRepository(&created, guess).Repo
	slog.Info("Requested fork", logfields.Repository(upstream.String()), slog.String("fork", forkRepo.String()))

	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		r, err := c.GetRepository(ctx, forkRepo)
		if err == nil {
			if !r.Fork {
				return Repository{}, fmt.Errorf("%s exists and is not a fork of %s", forkRepo, upstream)
			}
			return r, nil
		}
		if !IsNotFound(err) {
			return Repository{}, err
		}
		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Repository{}, ctx.Err()
		case <-t.C:
		}
	}
	return Repository{}, fmt.Errorf("fork %s did not become available: %w", forkRepo, ErrNotFound)
}

// FindOpenPullRequest returns the open pull request from head into base, or nil.
func (c *Client) FindOpenPullRequest(ctx context.Context, upstream Repo, head, base string) (*PullRequest, error) {
	var prs []*gh.PullRequest
	err := c.call(ctx, "list pull requests", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		prs, resp, err = c.gh.PullRequests.List(ctx, upstream.Owner, upstream.Name, &gh.PullRequestListOptions{
			State:       "open",
			Head:        head,
			Base:        base,
			ListOptions: gh.ListOptions{PerPage: 10},
		})
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	for _, pr := range prs {
		if head == "" || strings.EqualFold(pr.GetHead().GetLabel(), head) {
			return toPullRequest(pr, true), nil
		}
	}
	return nil, nil
}

// CreatePullRequest opens a pull request against upstream. If one is already
// open for the same head it is returned instead.
func (c *Client) CreatePullRequest(ctx context.Context, upstream Repo, spec PullRequestSpec) (*PullRequest, error) {
	if existing, err := c.FindOpenPullRequest(ctx, upstream, spec.Head(), spec.Base); err != nil {
		return nil, err
	} else if existing != nil {
		slog.Info("Pull request already open", logfields.URL(existing.URL))
		return existing, nil
	}

	var pr *gh.PullRequest
	err := c.call(ctx, "create pull request", func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		pr, resp, err = c.gh.PullRequests.Create(ctx, upstream.Owner, upstream.Name, &gh.NewPullRequest{
			Title:               gh.Ptr(spec.Title),
			Head:                gh.Ptr(spec.Head()),
			Base:                gh.Ptr(spec.Base),
			Body:                gh.Ptr(spec.Body),
			MaintainerCanModify: gh.Ptr(true),
		})
		return resp, err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			// Lost a race with another run.
			if existing, ferr := c.FindOpenPullRequest(ctx, upstream, spec.Head(), spec.Base); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return toPullRequest(pr, false), nil
}

func toRepository(r *gh.Repository, fallback Repo) Repository {
	repo := fallback
	if r.GetOwner().GetLogin() != "" && r.GetName() != "" {
		repo = Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()}
	}
	return Repository{
		Repo:          repo,
		DefaultBranch: r.GetDefaultBranch(),
		CloneURL:      r.GetCloneURL(),
		HTMLURL:       r.GetHTMLURL(),
		Fork:          r.GetFork(),
	}
}

func toPullRequest(pr *gh.PullRequest, existing bool) *PullRequest {
	return &PullRequest{
		Number:   pr.GetNumber(),
		URL:      pr.GetHTMLURL(),
		State:    pr.GetState(),
		Head:     pr.GetHead().GetLabel(),
		Existing: existing,
	}
}
