package git

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/docsetbot/internal/retry"
)

// tokenUser is the basic-auth username GitHub accepts alongside an access token.
const tokenUser = "x-access-token"

// Signature identifies the author of commits made by the pipeline.
type Signature struct {
	Name  string
	Email string
}

// Client performs git operations with optional token authentication.
type Client struct {
	token  string
	policy retry.Policy
	depth  int
}

// Option configures a Client.
type Option func(*Client)

// WithToken authenticates HTTP(S) remotes with a GitHub access token.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithRetryPolicy sets the policy for transient network failures.
func WithRetryPolicy(p retry.Policy) Option { return func(c *Client) { c.policy = p } }

// WithDepth sets the clone depth of the documentation source. Zero means full history.
func WithDepth(depth int) Option { return func(c *Client) { c.depth = depth } }

// NewClient creates a git client. Source clones are shallow by default.
func NewClient(opts ...Option) *Client {
	c := &Client{policy: retry.DefaultPolicy(), depth: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authFor returns credentials for HTTP(S) remotes only; local and file remotes need none.
func (c *Client) authFor(url string) transport.AuthMethod {
	if c.token == "" {
		return nil
	}
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return nil
	}
	return &githttp.BasicAuth{Username: tokenUser, Password: c.token}
}

// redact strips credentials from URLs before they reach logs or errors.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 && at < strings.Index(rest+"/", "/") {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}
