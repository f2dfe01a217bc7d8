package forge

import (
	"fmt"
	"strings"
)

// Repo identifies a repository as owner/name.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepo validates an owner/name reference.
func ParseRepo(ref string) (Repo, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	ref = strings.TrimSuffix(ref, ".git")
	owner, name, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || name == "" || strings.ContainsAny(name, "/ ") || strings.Contains(owner, " ") {
		return Repo{}, fmt.Errorf("invalid repository reference %q: expected owner/name", ref)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// MustParseRepo is ParseRepo for references known to be valid.
func MustParseRepo(ref string) Repo {
	r, err := ParseRepo(ref)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

