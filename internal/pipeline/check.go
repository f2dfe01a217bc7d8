package pipeline

import (
	"context"
	"log/slog"

	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/pin"
)

// CheckResult compares the pinned version with the latest upstream release.
type CheckResult struct {
	Current string // pinned version before the check
	Latest  string // normalized latest release version
	Release forge.Release
	Changed bool
	Written bool // the pin file was rewritten to Latest
}

// Check looks up the latest release of the documentation source. With write
// set and a different release available, the pin file is updated in place.
func (p *Pipeline) Check(ctx context.Context, write bool) (*CheckResult, error) {
	res, err := p.check(ctx, write)
	switch {
	case err != nil:
		p.recorder.IncReleaseCheck(metrics.CheckError)
	case res.Changed:
		p.recorder.IncReleaseCheck(metrics.CheckChanged)
	default:
		p.recorder.IncReleaseCheck(metrics.CheckUnchanged)
	}
	return res, err
}

func (p *Pipeline) check(ctx context.Context, write bool) (*CheckResult, error) {
	src, err := forge.ParseRepo(p.cfg.Library.Source)
	if err != nil {
		return nil, derrors.ValidationFailed("library.source", err.Error())
	}
	current, err := pin.ParseFile(p.PinPath())
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "cannot read version pin").
			WithContext("path", p.PinPath())
	}
	rel, err := p.forge.LatestRelease(ctx, src)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		Current: current.Version,
		Latest:  pin.NormalizeTag(rel.Tag),
		Release: rel,
	}
	res.Changed = res.Latest != res.Current
	log := slog.With(logfields.Library(p.cfg.Library.Name), logfields.Repository(src.String()))
	if !res.Changed {
		log.Info("Pinned version is the latest release", logfields.Version(res.Current))
		return res, nil
	}

	log.Info("New release available", slog.String("current", res.Current), slog.String("latest", res.Latest), logfields.Tag(rel.Tag))
	p.publish(ctx, events.RunEvent{Kind: events.KindRelease, Library: p.cfg.Library.Name, Version: res.Latest, Status: "from " + res.Current})

	if write {
		if err := pin.WriteFile(p.PinPath(), current.WithVersion(res.Latest)); err != nil {
			return res, derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityFatal, "cannot update version pin").
				WithContext("path", p.PinPath())
		}
		res.Written = true
		log.Info("Updated version pin", logfields.Path(p.PinPath()), logfields.Version(res.Latest))
	}
	return res, nil
}
