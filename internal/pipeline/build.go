package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/generate"
	"git.home.luguber.info/inful/docsetbot/internal/git"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/pin"
	"git.home.luguber.info/inful/docsetbot/internal/workspace"
)

// clone checks out the documentation source at the pinned release.
func (p *Pipeline) clone(rc *runContext) error {
	src, err := forge.ParseRepo(p.cfg.Library.Source)
	if err != nil {
		return derrors.ValidationFailed("library.source", err.Error())
	}
	repo, err := p.forge.GetRepository(rc.ctx, src)
	if err != nil {
		return err
	}
	url := repo.CloneURL
	if url == "" {
		url = repoURL(src.String()) + ".git"
	}

	dir, err := p.ws.Reset(workspace.SourceDir)
	if err != nil {
		return err
	}

	var lastErr error
	for _, tag := range p.candidateTags(rc, src) {
		commit, err := p.git.CloneAtTag(rc.ctx, url, tag, dir)
		if err == nil {
			rc.note("tag", tag)
			rc.note("commit", commit)
			return nil
		}
		var nf *git.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		slog.Debug("Tag not found, trying next candidate", logfields.Tag(tag))
		lastErr = err
	}
	return derrors.Wrap(lastErr, derrors.CategoryGit, derrors.SeverityFatal, "no tag matches the pinned version").
		WithContext("version", rc.version)
}

// candidateTags lists the tags that may name the pinned release. The latest
// release tag wins when it matches the pin; otherwise the usual spellings are
// tried.
func (p *Pipeline) candidateTags(rc *runContext, src forge.Repo) []string {
	var tags []string
	rel, err := p.forge.LatestRelease(rc.ctx, src)
	switch {
	case err == nil && pin.NormalizeTag(rel.Tag) == rc.version:
		tags = append(tags, rel.Tag)
	case err != nil && !errors.Is(err, forge.ErrNoRelease):
		slog.Warn("Latest release lookup failed, guessing tag", logfields.Repository(src.String()), logfields.Error(err))
	}
	for _, t := range []string{"v" + rc.version, rc.version} {
		if len(tags) == 0 || tags[0] != t {
			tags = append(tags, t)
		}
	}
	return tags
}

func (p *Pipeline) sourceCheckout() (string, error) {
	dir := p.ws.Path(workspace.SourceDir)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return "", derrors.New(derrors.CategoryValidation, derrors.SeverityFatal, "no documentation source checkout; run the clone stage first").
			WithContext("path", dir)
	}
	return dir, nil
}

// docs builds the HTML documentation.
func (p *Pipeline) docs(rc *runContext) error {
	dir, err := p.sourceCheckout()
	if err != nil {
		return err
	}
	return p.gen.BuildDocs(rc.ctx, dir)
}

// icon renders the docset icons into the output directory.
func (p *Pipeline) icon(rc *runContext) error {
	dir, err := p.sourceCheckout()
	if err != nil {
		return err
	}
	out, err := p.ws.Reset(workspace.OutputDir)
	if err != nil {
		return err
	}
	icons, err := p.gen.Icons(dir, out)
	if errors.Is(err, generate.ErrNoIcon) {
		slog.Warn("No icon found, the docset will use the default icon", logfields.Library(p.cfg.Library.Name))
		rc.note("icon", "none")
		return nil
	}
	if err != nil {
		return err
	}
	rc.note("icon", icons.Small)
	return nil
}

// dash runs the docset generator.
func (p *Pipeline) dash(rc *runContext) error {
	dir, err := p.sourceCheckout()
	if err != nil {
		return err
	}
	out, err := p.ws.Subdir(workspace.OutputDir)
	if err != nil {
		return err
	}

	var icons generate.IconSet
	if small := filepath.Join(out, generate.IconFile); fileExists(small) {
		icons.Small = small
	}
	if large := filepath.Join(out, generate.Icon2xFile); fileExists(large) {
		icons.Large = large
	}

	// The generator refuses to overwrite an existing bundle.
	stale := filepath.Join(out, p.cfg.Library.Name+".docset")
	if err := os.RemoveAll(stale); err != nil {
		return derrors.WorkspaceError("remove stale docset", err).WithContext("path", stale)
	}

	ds, err := p.gen.Dash(rc.ctx, dir, icons, out)
	if err != nil {
		return err
	}
	rc.note("docset", ds.Path)
	return nil
}

// builtDocset returns the docset bundle a previous dash stage produced.
func (p *Pipeline) builtDocset() (string, error) {
	path := filepath.Join(p.ws.Path(workspace.OutputDir), p.cfg.Library.Name+".docset")
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return "", derrors.New(derrors.CategoryValidation, derrors.SeverityFatal, fmt.Sprintf("no %s.docset found; run the build stages first", p.cfg.Library.Name)).
			WithContext("path", path)
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
