// Package testforge provides an in-process fake of the GitHub REST endpoints
// the forge client uses, for tests.
package testforge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Repo is a fake repository.
type Repo struct {
	Owner         string
	Name          string
	DefaultBranch string
	CloneURL      string
	Fork          bool
	Parent        string // owner/name of the forked repository
	ReleaseTag    string
}

// PullRequest is a pull request recorded by the fake.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	Head   string
	Base   string
	State  string
	Repo   string
}

// GitHub is a fake GitHub API server.
type GitHub struct {
	Server *httptest.Server

	mu        sync.Mutex
	login     string
	repos     map[string]*Repo
	prs       []*PullRequest
	forkDelay int
	pending   map[string]int
	failures  map[string][]int
	requests  []string

	// ForkCloneURL maps a fork's owner/name to the clone URL it reports.
	ForkCloneURL func(fullName string) string
}

// NewGitHub starts a fake server that is closed when the test ends.
func NewGitHub(t testing.TB, login string) *GitHub {
	t.Helper()
	g := &GitHub{
		login:    login,
		repos:    make(map[string]*Repo),
		pending:  make(map[string]int),
		failures: make(map[string][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", g.handleUser)
	mux.HandleFunc("GET /repos/{owner}/{repo}", g.handleGetRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/latest", g.handleLatestRelease)
	mux.HandleFunc("POST /repos/{owner}/{repo}/forks", g.handleCreateFork)
	mux.HandleFunc("GET /repos/{owner}/{repo}/pulls", g.handleListPulls)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", g.handleCreatePull)

	g.Server = httptest.NewServer(g.middleware(mux))
	t.Cleanup(g.Server.Close)
	return g
}

// URL is the API base URL to configure the forge client with.
func (g *GitHub) URL() string {
	return g.Server.URL + "/"
}

// AddRepo registers a repository.
func (g *GitHub) AddRepo(r Repo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.DefaultBranch == "" {
		r.DefaultBranch = "main"
	}
	g.repos[r.Owner+"/"+r.Name] = &r
}

// SetRelease sets the latest release tag of a registered repository.
func (g *GitHub) SetRelease(fullName, tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.repos[fullName]; ok {
		r.ReleaseTag = tag
	}
}

// SetForkDelay makes a newly created fork return 404 for n reads.
func (g *GitHub) SetForkDelay(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forkDelay = n
}

// FailNext makes the next len(statuses) requests to "METHOD /path" fail with the given statuses.
func (g *GitHub) FailNext(route string, statuses ...int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[route] = append(g.failures[route], statuses...)
}

// PullRequests returns a copy of every recorded pull request.
func (g *GitHub) PullRequests() []PullRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PullRequest, 0, len(g.prs))
	for _, pr := range g.prs {
		out = append(out, *pr)
	}
	return out
}

// Requests returns the "METHOD /path" log of served requests.
func (g *GitHub) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}

// HasRepo reports whether owner/name exists.
func (g *GitHub) HasRepo(fullName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.repos[fullName]
	return ok
}

func (g *GitHub) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		g.mu.Lock()
		g.requests = append(g.requests, route)
		var status int
		if queue := g.failures[route]; len(queue) > 0 {
			status = queue[0]
			g.failures[route] = queue[1:]
		}
		g.mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		if status != 0 {
			writeJSON(w, status, map[string]any{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *GitHub) handleUser(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"login": g.login})
}

func (g *GitHub) lookup(r *http.Request) (*Repo, bool) {
	name := r.PathValue("owner") + "/" + r.PathValue("repo")
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := g.pending[name]; n > 0 {
		g.pending[name] = n - 1
		return nil, false
	}
	repo, ok := g.repos[name]
	if !ok {
		return nil, false
	}
	cp := *repo
	return &cp, true
}

func (g *GitHub) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	repo, ok := g.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, repoJSON(g.Server.URL, repo))
}

func (g *GitHub) handleLatestRelease(w http.ResponseWriter, r *http.Request) {
	repo, ok := g.lookup(r)
	if !ok || repo.ReleaseTag == "" {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tag_name":     repo.ReleaseTag,
		"name":         repo.ReleaseTag,
		"html_url":     fmt.Sprintf("%s/%s/%s/releases/tag/%s", g.Server.URL, repo.Owner, repo.Name, repo.ReleaseTag),
		"published_at": "2024-01-25T12:00:00Z",
	})
}

// handleCreateFork mirrors GitHub: an existing fork of the upstream is
// returned as is, and a name taken by another repository gets a numeric suffix.
func (g *GitHub) handleCreateFork(w http.ResponseWriter, r *http.Request) {
	upstream, ok := g.lookup(r)
	if !ok {
		notFound(w)
		return
	}
	parent := upstream.Owner + "/" + upstream.Name

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, repo := range g.repos {
		if repo.Owner == g.login && repo.Parent == parent {
			writeJSON(w, http.StatusAccepted, repoJSON(g.Server.URL, repo))
			return
		}
	}

	name := upstream.Name
	for i := 1; g.repos[g.login+"/"+name] != nil; i++ {
		name = fmt.Sprintf("%s-%d", upstream.Name, i)
	}
	fork := &Repo{Owner: g.login, Name: name, DefaultBranch: upstream.DefaultBranch, Fork: true, Parent: parent}
	full := fork.Owner + "/" + fork.Name
	if g.ForkCloneURL != nil {
		fork.CloneURL = g.ForkCloneURL(full)
	}
	g.repos[full] = fork
	g.pending[full] = g.forkDelay

	writeJSON(w, http.StatusAccepted, repoJSON(g.Server.URL, fork))
}

func (g *GitHub) handleListPulls(w http.ResponseWriter, r *http.Request) {
	full := r.PathValue("owner") + "/" + r.PathValue("repo")
	head := r.URL.Query().Get("head")
	state := r.URL.Query().Get("state")

	g.mu.Lock()
	var out []map[string]any
	for _, pr := range g.prs {
		if pr.Repo != full || (state != "" && state != "all" && pr.State != state) || (head != "" && pr.Head != head) {
			continue
		}
		out = append(out, g.prJSON(pr))
	}
	g.mu.Unlock()

	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *GitHub) handleCreatePull(w http.ResponseWriter, r *http.Request) {
	full := r.PathValue("owner") + "/" + r.PathValue("repo")
	var body struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Base  string `json:"base"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, pr := range g.prs {
		if pr.Repo == full && pr.Head == body.Head && pr.State == "open" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "Validation Failed",
				"errors":  []map[string]any{{"resource": "PullRequest", "code": "custom", "message": "A pull request already exists for " + body.Head + "."}},
			})
			return
		}
	}
	pr := &PullRequest{
		Number: len(g.prs) + 1,
		Title:  body.Title,
		Body:   body.Body,
		Head:   body.Head,
		Base:   body.Base,
		State:  "open",
		Repo:   full,
	}
	g.prs = append(g.prs, pr)
	writeJSON(w, http.StatusCreated, g.prJSON(pr))
}

func (g *GitHub) prJSON(pr *PullRequest) map[string]any {
	return map[string]any{
		"number":   pr.Number,
		"title":    pr.Title,
		"body":     pr.Body,
		"state":    pr.State,
		"html_url": fmt.Sprintf("%s/%s/pull/%d", g.Server.URL, pr.Repo, pr.Number),
		"head":     map[string]any{"label": pr.Head, "ref": branchOf(pr.Head)},
		"base":     map[string]any{"ref": pr.Base},
	}
}

func repoJSON(base string, r *Repo) map[string]any {
	return map[string]any{
		"name":           r.Name,
		"full_name":      r.Owner + "/" + r.Name,
		"owner":          map[string]any{"login": r.Owner},
		"default_branch": r.DefaultBranch,
		"clone_url":      r.CloneURL,
		"html_url":       base + "/" + r.Owner + "/" + r.Name,
		"fork":           r.Fork,
	}
}

func branchOf(head string) string {
	if _, branch, ok := strings.Cut(head, ":"); ok {
		return branch
	}
	return head
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
