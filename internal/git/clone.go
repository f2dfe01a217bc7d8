package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/retry"
)

// CloneAtTag clones url into dir with HEAD detached at tag and returns the commit hash.
func (c *Client) CloneAtTag(ctx context.Context, url, tag, dir string) (string, error) {
	var commit string
	err := retry.Do(ctx, c.policy, "clone", func(ctx context.Context) error {
		if err := os.RemoveAll(dir); err != nil {
			return derrors.WorkspaceError("clean clone target", err)
		}
		slog.Debug("Cloning repository", logfields.URL(redact(url)), logfields.Tag(tag), logfields.Path(dir))

		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			Auth:          c.authFor(url),
			ReferenceName: plumbing.NewTagReferenceName(tag),
			SingleBranch:  true,
			Depth:         c.depth,
		})
		if err != nil {
			return classify("clone", url, err)
		}
		head, err := repo.Head()
		if err != nil {
			return classify("clone", url, fmt.Errorf("resolve HEAD: %w", err))
		}
		commit = head.Hash().String()
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("Repository cloned", logfields.URL(redact(url)), logfields.Tag(tag), slog.String("commit", short(commit)))
	return commit, nil
}

// HeadCommit returns the commit hash HEAD points to.
func HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
