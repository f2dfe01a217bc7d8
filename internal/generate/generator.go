package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	derrors "git.home.luguber.info/inful/docsetbot/internal/errors"
	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// Docset is a generated documentation set bundle.
type Docset struct {
	Path string // <out>/<name>.docset
	Name string
}

// Generator runs the configured documentation build and docset generator.
type Generator struct {
	lib    config.LibraryConfig
	gen    config.GeneratorConfig
	runner Runner
}

// New creates a generator. A nil runner executes real processes.
func New(cfg *config.Config, runner Runner) *Generator {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Generator{lib: cfg.Library, gen: cfg.Generator, runner: runner}
}

// HTMLDir is where the documentation build leaves its HTML inside checkout.
func (g *Generator) HTMLDir(checkout string) string {
	return filepath.Join(checkout, filepath.FromSlash(g.lib.HTMLDir))
}

// CheckoutPlaceholder expands to the absolute source checkout in build commands.
const CheckoutPlaceholder = "{checkout}"

func buildCommand(bc config.BuildCommand, checkout, docsDir string) Command {
	if abs, err := filepath.Abs(checkout); err == nil {
		checkout = abs
	}
	expand := func(v string) string { return strings.ReplaceAll(v, CheckoutPlaceholder, checkout) }

	argv := make([]string, len(bc.Command))
	for i, a := range bc.Command {
		argv[i] = expand(a)
	}
	var env map[string]string
	if len(bc.Env) > 0 {
		env = make(map[string]string, len(bc.Env))
		for k, v := range bc.Env {
			env[k] = expand(v)
		}
	}
	dir := docsDir
	if bc.Dir != "" {
		dir = filepath.Join(checkout, filepath.FromSlash(bc.Dir))
	}
	return Command{Name: argv[0], Args: argv[1:], Dir: dir, Env: env}
}

// BuildDocs runs every build command in order inside the docs directory.
func (g *Generator) BuildDocs(ctx context.Context, checkout string) error {
	dir := filepath.Join(checkout, filepath.FromSlash(g.lib.DocsDir))
	if _, err := os.Stat(dir); err != nil {
		return derrors.Wrap(err, derrors.CategoryGenerate, derrors.SeverityFatal, "docs directory missing").
			WithContext("path", dir)
	}

	for _, bc := range g.lib.BuildCommands {
		if len(bc.Command) == 0 {
			continue
		}
		slog.Info("Building documentation", slog.String("step", bc.Name), logfields.Library(g.lib.Name))
		cmd := buildCommand(bc, checkout, dir)
		if err := g.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}

	if _, err := os.Stat(g.HTMLDir(checkout)); err != nil {
		return derrors.Wrap(err, derrors.CategoryGenerate, derrors.SeverityFatal, "documentation build produced no HTML").
			WithContext("path", g.HTMLDir(checkout))
	}
	return nil
}

// Icons resolves the icon source, from configuration or the index page, and
// writes the docset icons to outDir.
func (g *Generator) Icons(checkout, outDir string) (IconSet, error) {
	htmlDir := g.HTMLDir(checkout)
	src := ""
	if g.lib.Icon != "" {
		src = filepath.Join(htmlDir, filepath.FromSlash(g.lib.Icon))
	} else {
		found, err := DiscoverIcon(htmlDir, g.lib.IndexPage)
		if err != nil {
			return IconSet{}, derrors.Wrap(err, derrors.CategoryGenerate, derrors.SeverityFatal, "icon discovery failed")
		}
		src = found
	}
	slog.Info("Creating docset icons", logfields.Path(src))

	set, err := MakeIcons(src, outDir)
	if err != nil {
		return IconSet{}, derrors.Wrap(err, derrors.CategoryGenerate, derrors.SeverityFatal, "icon creation failed").
			WithContext("path", src)
	}
	return set, nil
}

// Dash runs the docset generator against the built HTML and copies the 2x
// icon into the docset, which the generator does not handle itself.
func (g *Generator) Dash(ctx context.Context, checkout string, icons IconSet, outDir string) (Docset, error) {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return Docset{}, derrors.WorkspaceError("create output dir", err)
	}

	args := []string{"--index-page=" + g.lib.IndexPage}
	if icons.Small != "" {
		args = append(args, "--icon="+icons.Small)
	}
	if g.lib.OnlineRedirectURL != "" {
		args = append(args, "--online-redirect-url="+g.lib.OnlineRedirectURL)
	}
	args = append(args, "--name", g.lib.Name, "--destination", outDir)
	args = append(args, g.gen.ExtraArgs...)
	args = append(args, g.HTMLDir(checkout))

	if err := g.runner.Run(ctx, Command{Name: g.gen.Binary, Args: args, Dir: outDir}); err != nil {
		return Docset{}, err
	}

	docset := Docset{Name: g.lib.Name, Path: filepath.Join(outDir, g.lib.Name+".docset")}
	if info, err := os.Stat(docset.Path); err != nil || !info.IsDir() {
		return Docset{}, derrors.New(derrors.CategoryGenerate, derrors.SeverityFatal, "generator produced no docset").
			WithContext("path", docset.Path)
	}

	if icons.Large != "" {
		if err := copyFile(icons.Large, filepath.Join(docset.Path, Icon2xFile)); err != nil {
			return Docset{}, derrors.Wrap(err, derrors.CategoryFileSystem, derrors.SeverityFatal, "copy 2x icon")
		}
	}
	slog.Info("Docset generated", logfields.Path(docset.Path))
	return docset, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- workspace path
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 -- workspace path
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
