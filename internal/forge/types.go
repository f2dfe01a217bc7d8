package forge

import "time"

// Release is a published release of a repository.
type Release struct {
	Tag         string
	Name        string
	URL         string
	PublishedAt time.Time
}

// Repository is the subset of repository metadata the pipeline needs.
type Repository struct {
	Repo          Repo
	DefaultBranch string
	CloneURL      string
	HTMLURL       string
	Fork          bool
}

// PullRequestSpec describes a pull request to open against an upstream repository.
type PullRequestSpec struct {
	Title     string
	Body      string
	HeadOwner string // owner of the fork holding Branch
	Branch    string
	Base      string
}

// Head returns the owner:branch form GitHub uses for cross-repository heads.
func (s PullRequestSpec) Head() string {
	return s.HeadOwner + ":" + s.Branch
}

// PullRequest is an open or newly created pull request.
type PullRequest struct {
	Number   int
	URL      string
	State    string
	Head     string
	Existing bool // true when the pull request was already open
}
