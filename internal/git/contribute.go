package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/retry"
)

// UpstreamRemote is the remote name of the repository the fork was made from.
const UpstreamRemote = "upstream"

// Contribution describes the checkout that receives a docset commit.
type Contribution struct {
	ForkURL        string
	UpstreamURL    string
	Dir            string
	Branch         string // branch created for the contribution
	UpstreamBranch string // upstream default branch the contribution starts from
}

// PrepareContribution clones the fork, adds and fetches the upstream remote,
// and checks out Branch at upstream/UpstreamBranch, discarding any fork drift.
func (c *Client) PrepareContribution(ctx context.Context, opts Contribution) error {
	var repo *git.Repository
	err := retry.Do(ctx, c.policy, "clone fork", func(ctx context.Context) error {
		if err := os.RemoveAll(opts.Dir); err != nil {
			return derrors.WorkspaceError("clean fork target", err)
		}
		var err error
		repo, err = git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
			URL:  opts.ForkURL,
			Auth: c.authFor(opts.ForkURL),
			Tags: git.NoTags,
		})
		return classify("clone fork", opts.ForkURL, err)
	})
	if err != nil {
		return err
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: UpstreamRemote,
		URLs: []string{opts.UpstreamURL},
	}); err != nil && !errors.Is(err, git.ErrRemoteExists) {
		return classify("add upstream remote", opts.UpstreamURL, err)
	}

	remoteRef := plumbing.NewRemoteReferenceName(UpstreamRemote, opts.UpstreamBranch)
	spec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(opts.UpstreamBranch), remoteRef))
	err = retry.Do(ctx, c.policy, "fetch upstream", func(ctx context.Context) error {
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: UpstreamRemote,
			RefSpecs:   []gitconfig.RefSpec{spec},
			Auth:       c.authFor(opts.UpstreamURL),
			Tags:       git.NoTags,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return classify("fetch upstream", opts.UpstreamURL, err)
	})
	if err != nil {
		return err
	}

	target, err := repo.Reference(remoteRef, true)
	if err != nil {
		return classify("resolve upstream branch", opts.UpstreamURL, err)
	}

	branchRef := plumbing.NewBranchReferenceName(opts.Branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, target.Hash())); err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "create branch").
			WithContext("branch", opts.Branch)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "open worktree")
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "checkout branch").
			WithContext("branch", opts.Branch)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: target.Hash(), Mode: git.HardReset}); err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "reset branch").
			WithContext("branch", opts.Branch)
	}

	slog.Info("Prepared contribution branch",
		logfields.Branch(opts.Branch),
		slog.String("base", UpstreamRemote+"/"+opts.UpstreamBranch),
		slog.String("commit", short(target.Hash().String())))
	return nil
}

// CommitAll stages every change under subpath, deletions included, and commits it.
func (c *Client) CommitAll(dir, subpath, message string, sig Signature) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "open repository").WithContext("path", dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "open worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "worktree status")
	}

	prefix := filepath.ToSlash(filepath.Clean(subpath))
	staged := 0
	for file, st := range status {
		if prefix != "." && file != prefix && !strings.HasPrefix(file, prefix+"/") {
			continue
		}
		switch {
		case st.Worktree == git.Deleted:
			if _, err := wt.Remove(file); err != nil {
				return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "stage deletion").WithContext("path", file)
			}
			staged++
		case st.Worktree != git.Unmodified:
			if _, err := wt.Add(file); err != nil {
				return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "stage file").WithContext("path", file)
			}
			staged++
		case st.Staging != git.Unmodified:
			staged++
		}
	}
	if staged == 0 {
		return "", ErrNothingToCommit
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: sig.Name, Email: sig.Email, When: time.Now()},
	})
	if err != nil {
		return "", derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "commit")
	}
	slog.Info("Committed changes", logfields.Path(prefix), slog.Int("files", staged), slog.String("commit", short(hash.String())))
	return hash.String(), nil
}

// Push pushes branch to origin and records origin as its upstream.
// The push is forced because the branch is always rebuilt from upstream.
func (c *Client) Push(ctx context.Context, dir, branch string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "open repository").WithContext("path", dir)
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "resolve origin")
	}
	url := ""
	if urls := remote.Config().URLs; len(urls) > 0 {
		url = urls[0]
	}

	ref := plumbing.NewBranchReferenceName(branch)
	spec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", ref, ref))
	err = retry.Do(ctx, c.policy, "push", func(ctx context.Context) error {
		err := repo.PushContext(ctx, &git.PushOptions{
			RemoteName: git.DefaultRemoteName,
			RefSpecs:   []gitconfig.RefSpec{spec},
			Auth:       c.authFor(url),
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return classify("push", url, err)
	})
	if err != nil {
		return err
	}

	cfg, err := repo.Config()
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "read repository config")
	}
	cfg.Branches[branch] = &gitconfig.Branch{Name: branch, Remote: git.DefaultRemoteName, Merge: ref}
	if err := repo.SetConfig(cfg); err != nil {
		return derrors.Wrap(err, derrors.CategoryGit, derrors.SeverityFatal, "set branch upstream")
	}

	slog.Info("Pushed branch", logfields.Branch(branch), logfields.URL(redact(url)))
	return nil
}
