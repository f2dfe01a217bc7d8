package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/docsetbot/internal/docset"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/git"
	"git.home.luguber.info/inful/docsetbot/internal/workspace"
)

// fallbackEmail signs commits when author.email is not configured.
const fallbackEmail = "docsetbot@users.noreply.github.com"

func (p *Pipeline) upstreamRepo(rc *runContext) (forge.Repository, error) {
	if rc.upstream != nil {
		return *rc.upstream, nil
	}
	ref, err := forge.ParseRepo(p.cfg.Aggregator.Upstream)
	if err != nil {
		return forge.Repository{}, derrors.ValidationFailed("aggregator.upstream", err.Error())
	}
	repo, err := p.forge.GetRepository(rc.ctx, ref)
	if err != nil {
		return forge.Repository{}, err
	}
	if repo.CloneURL == "" {
		repo.CloneURL = repoURL(repo.Repo.String()) + ".git"
	}
	rc.upstream = &repo
	return repo, nil
}

func (p *Pipeline) forkRepo(rc *runContext) (forge.Repository, error) {
	if rc.fork != nil {
		return *rc.fork, nil
	}
	upstream, err := p.upstreamRepo(rc)
	if err != nil {
		return forge.Repository{}, err
	}
	fork, err := p.forge.EnsureFork(rc.ctx, upstream.Repo)
	if err != nil {
		return forge.Repository{}, err
	}
	if fork.CloneURL == "" {
		fork.CloneURL = repoURL(fork.Repo.String()) + ".git"
	}
	rc.fork = &fork
	return fork, nil
}

func (p *Pipeline) branch(rc *runContext) string {
	return BranchName(p.cfg.Library.Name, rc.version)
}

// fork makes sure the fork exists and checks out a fresh branch at the
// upstream default branch.
func (p *Pipeline) fork(rc *runContext) error {
	upstream, err := p.upstreamRepo(rc)
	if err != nil {
		return err
	}
	fork, err := p.forkRepo(rc)
	if err != nil {
		return err
	}
	dir, err := p.ws.Reset(workspace.AggregatorDir)
	if err != nil {
		return err
	}
	err = p.git.PrepareContribution(rc.ctx, git.Contribution{
		ForkURL:        fork.CloneURL,
		UpstreamURL:    upstream.CloneURL,
		Dir:            dir,
		Branch:         p.branch(rc),
		UpstreamBranch: upstream.DefaultBranch,
	})
	if err != nil {
		return err
	}
	rc.note("fork", fork.Repo.String())
	rc.note("branch", p.branch(rc))
	return nil
}

func (p *Pipeline) aggregatorCheckout() (string, error) {
	dir := p.ws.Path(workspace.AggregatorDir)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", derrors.New(derrors.CategoryValidation, derrors.SeverityFatal, "no aggregator checkout; run the fork stage first").
			WithContext("path", dir)
	}
	return dir, nil
}

// docsetDir is the library's directory inside the aggregator checkout.
func (p *Pipeline) docsetDir() (root, dir string, err error) {
	root, err = p.aggregatorCheckout()
	if err != nil {
		return "", "", err
	}
	dir, err = docset.Locate(root, p.cfg.Aggregator.DocsetsDir, p.cfg.Library.Name)
	if err != nil {
		return "", "", derrors.WorkspaceError("locate docset dir", err)
	}
	return root, dir, nil
}

func (p *Pipeline) createDirectory(rc *runContext) error {
	_, dir, err := p.docsetDir()
	if err != nil {
		return err
	}
	if err := docset.EnsureDir(dir); err != nil {
		return derrors.WorkspaceError("create docset dir", err)
	}
	rc.note("path", dir)
	return nil
}

func (p *Pipeline) removeOld(_ *runContext) error {
	_, dir, err := p.docsetDir()
	if err != nil {
		return err
	}
	if err := docset.RemoveOld(dir); err != nil {
		return derrors.WorkspaceError("remove old docsets", err)
	}
	return nil
}

// copyContents copies the icons and archives the docset bundle.
func (p *Pipeline) copyContents(rc *runContext) error {
	bundle, err := p.builtDocset()
	if err != nil {
		return err
	}
	_, dir, err := p.docsetDir()
	if err != nil {
		return err
	}
	if err := docset.EnsureDir(dir); err != nil {
		return derrors.WorkspaceError("create docset dir", err)
	}
	icons, err := docset.CopyIcons(bundle, dir)
	if err != nil {
		return derrors.WorkspaceError("copy icons", err)
	}
	archive := filepath.Join(dir, docset.ArchiveName(p.cfg.Library.Name))
	if err := docset.Archive(bundle, archive); err != nil {
		return derrors.WorkspaceError("archive docset", err)
	}
	rc.note("icons", strconv.Itoa(len(icons)))
	rc.note("archive", archive)
	return nil
}

// fillForms writes docset.json and README.md.
func (p *Pipeline) fillForms(rc *runContext) error {
	_, dir, err := p.docsetDir()
	if err != nil {
		return err
	}
	if err := docset.EnsureDir(dir); err != nil {
		return derrors.WorkspaceError("create docset dir", err)
	}
	lib := p.cfg.Library.Name
	if _, err := docset.WriteManifest(dir, docset.Manifest{
		Name:    lib,
		Version: rc.version,
		Archive: docset.ArchiveName(lib),
		Author:  docset.Author{Name: p.cfg.Author.Name, URL: p.cfg.Author.URL},
		Aliases: p.cfg.Library.Aliases,
	}); err != nil {
		return derrors.WorkspaceError("write manifest", err)
	}
	readme, err := docset.WriteReadme(dir, p.readmeData())
	if err != nil {
		return derrors.WorkspaceError("write readme", err)
	}
	if err := docset.ValidateReadme(readme); err != nil {
		return derrors.Wrap(err, derrors.CategoryValidation, derrors.SeverityFatal, "generated README is incomplete").
			WithContext("path", readme)
	}
	return nil
}

func (p *Pipeline) commit(rc *runContext) error {
	root, dir, err := p.docsetDir()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return derrors.WorkspaceError("relative docset path", err)
	}
	sig := git.Signature{Name: p.cfg.Author.Name, Email: p.cfg.Author.Email}
	if sig.Email == "" {
		sig.Email = fallbackEmail
	}
	hash, err := p.git.CommitAll(root, filepath.ToSlash(rel), CommitMessage(p.cfg.Library.Name, rc.version), sig)
	if errors.Is(err, git.ErrNothingToCommit) {
		return derrors.Wrap(err, derrors.CategoryValidation, derrors.SeverityError, "docset is identical to the published one").
			WithContext("path", rel)
	}
	if err != nil {
		return err
	}
	rc.note("commit", hash)
	return nil
}

func (p *Pipeline) push(rc *runContext) error {
	root, err := p.aggregatorCheckout()
	if err != nil {
		return err
	}
	return p.git.Push(rc.ctx, root, p.branch(rc))
}

// pullRequest opens, or finds, the pull request for the branch.
func (p *Pipeline) pullRequest(rc *runContext) error {
	upstream, err := p.upstreamRepo(rc)
	if err != nil {
		return err
	}
	fork, err := p.forkRepo(rc)
	if err != nil {
		return err
	}
	title := PullRequestTitle(p.cfg.Library.Name, rc.version)
	pr, err := p.forge.CreatePullRequest(rc.ctx, upstream.Repo, forge.PullRequestSpec{
		Title:     title,
		Body:      PullRequestBody(title, p.cfg.Publisher.Repository),
		HeadOwner: fork.Repo.Owner,
		Branch:    p.branch(rc),
		Base:      upstream.DefaultBranch,
	})
	if err != nil {
		return err
	}
	rc.pr = pr
	p.recorder.SetLastPublished(p.now())
	rc.note("pr_url", pr.URL)
	rc.note("existing", strconv.FormatBool(pr.Existing))
	return nil
}
