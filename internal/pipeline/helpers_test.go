package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
	"git.home.luguber.info/inful/docsetbot/internal/generate"
	gitops "git.home.luguber.info/inful/docsetbot/internal/git"
	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/retry"
	"git.home.luguber.info/inful/docsetbot/internal/state"
	"git.home.luguber.info/inful/docsetbot/internal/testforge"
	"git.home.luguber.info/inful/docsetbot/internal/workspace"
)

const (
	testLogin    = "docbot"
	testUpstream = "Kapeli/Dash-User-Contributions"
	testSource   = "mwaskom/seaborn"
)

// env is a complete fake world: GitHub, git remotes, generator and stores.
type env struct {
	t         *testing.T
	dir       string
	cfg       *config.Config
	fake      *testforge.GitHub
	runner    *generate.RecordingRunner
	store     *state.SQLiteStore
	events    *events.Recorder
	recorder  *metrics.PrometheusRecorder
	sourceGit string
	srcWork   *git.Repository
	srcPath   string
	forkGit   string
	upstream  string
	seed      *git.Repository
	seedPath  string
}

func commitFiles(t *testing.T, repo *git.Repository, root string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()}})
	require.NoError(t, err)
	return hash
}

// newRemote creates a bare repository and a working clone that pushes to it.
func newRemote(t *testing.T, dir, name string) (bare string, work *git.Repository, workPath string) {
	t.Helper()
	bare = filepath.Join(dir, name+".git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)
	workPath = filepath.Join(dir, name+"-seed")
	work, err = git.PlainInit(workPath, false)
	require.NoError(t, err)
	_, err = work.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	return bare, work, workPath
}

func pushAll(t *testing.T, repo *git.Repository) {
	t.Helper()
	err := repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []gitconfig.RefSpec{
		"refs/heads/*:refs/heads/*", "refs/tags/*:refs/tags/*",
	}})
	if !errors.Is(err, git.NoErrAlreadyUpToDate) {
		require.NoError(t, err)
	}
}

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for x := range size {
		for y := range size {
			img.Set(x, y, color.NRGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// fakeTools simulates "make html" and doc2dash on disk.
func fakeTools(t *testing.T) func(context.Context, generate.Command) error {
	return func(_ context.Context, cmd generate.Command) error {
		switch cmd.Name {
		case "make":
			html := filepath.Join(cmd.Dir, "_build", "html")
			writePNG(t, filepath.Join(html, "_static", "logo.png"), 64)
			return os.WriteFile(filepath.Join(html, "index.html"),
				[]byte(`<html><head><link rel="icon" href="_static/logo.png"></head><body>seaborn</body></html>`), 0o600)
		case "doc2dash":
			i := slices.Index(cmd.Args, "--destination")
			if i < 0 {
				return errors.New("no destination")
			}
			bundle := filepath.Join(cmd.Args[i+1], "seaborn.docset")
			docs := filepath.Join(bundle, "Contents", "Resources", "Documents")
			require.NoError(t, os.MkdirAll(docs, 0o750))
			require.NoError(t, os.WriteFile(filepath.Join(docs, "index.html"), []byte("docs"), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte("plist"), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(bundle, ".DS_Store"), []byte("junk"), 0o600))
			for _, a := range cmd.Args {
				if icon, ok := strings.CutPrefix(a, "--icon="); ok {
					data, err := os.ReadFile(icon)
					require.NoError(t, err)
					require.NoError(t, os.WriteFile(filepath.Join(bundle, "icon.png"), data, 0o600))
				}
			}
		}
		return nil
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{t: t, dir: dir}

	// Documentation source with a tagged release and later development.
	src, srcWork, srcPath := newRemote(t, dir, "seaborn")
	tagged := commitFiles(t, srcWork, srcPath, map[string]string{"doc/index.rst": "release"}, "release")
	_, err := srcWork.CreateTag("v0.13.2", tagged, nil)
	require.NoError(t, err)
	commitFiles(t, srcWork, srcPath, map[string]string{"doc/index.rst": "dev"}, "dev")
	pushAll(t, srcWork)
	e.sourceGit, e.srcWork, e.srcPath = src, srcWork, srcPath

	// Aggregator with an existing, differently cased docset directory.
	up, upWork, upPath := newRemote(t, dir, "dash")
	commitFiles(t, upWork, upPath, map[string]string{
		"docsets/Seaborn/README.md":                   "old readme",
		"docsets/Seaborn/seaborn.tgz":                 "old archive",
		"docsets/Seaborn/versions/0.12.2/seaborn.tgz": "older archive",
		"docsets/numpy/README.md":                     "numpy",
	}, "initial")
	pushAll(t, upWork)
	e.upstream, e.seed, e.seedPath = up, upWork, upPath

	e.forkGit = filepath.Join(dir, "fork.git")
	_, err = git.PlainClone(e.forkGit, true, &git.CloneOptions{URL: up})
	require.NoError(t, err)

	e.fake = testforge.NewGitHub(t, testLogin)
	e.fake.AddRepo(testforge.Repo{Owner: "mwaskom", Name: "seaborn", DefaultBranch: "master", CloneURL: src, ReleaseTag: "v0.13.2"})
	e.fake.AddRepo(testforge.Repo{Owner: "Kapeli", Name: "Dash-User-Contributions", DefaultBranch: "master", CloneURL: up})
	e.fake.ForkCloneURL = func(string) string { return e.forkGit }

	cfg, err := config.Parse([]byte(`version: "1"
library:
  name: seaborn
  source: mwaskom/seaborn
  online_redirect_url: https://seaborn.pydata.org/
  aliases: [python, graph]
  build_commands:
    - name: html
      command: ["make", "html"]
author:
  name: Docset Bot
  url: https://github.com/docbot
  email: bot@example.com
publisher:
  repository: docbot/seaborn-docset
`))
	require.NoError(t, err)
	e.cfg = cfg
	e.writePin("seaborn==0.13.2\n")

	e.runner = &generate.RecordingRunner{Handler: fakeTools(t)}
	e.store, err = state.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.store.Close() })
	e.events = &events.Recorder{}
	e.recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
	return e
}

func (e *env) writePin(content string) {
	e.t.Helper()
	require.NoError(e.t, os.WriteFile(filepath.Join(e.dir, config.DefaultPinFile), []byte(content), 0o600))
}

func (e *env) pipeline(ws *workspace.Manager) *Pipeline {
	e.t.Helper()
	fc, err := forge.NewClient(e.t.Context(), "test-token",
		forge.WithAPIURL(e.fake.URL()),
		forge.WithRateLimiter(forge.NewRateLimiter(0, 1)),
		forge.WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 1)),
		forge.WithForkPolling(time.Millisecond, 5),
	)
	require.NoError(e.t, err)
	if ws == nil {
		ws = workspace.NewManager(filepath.Join(e.dir, "tmp"))
	}
	p, err := New(e.t.Context(), e.cfg,
		WithForge(fc),
		WithGit(gitops.NewClient(gitops.WithDepth(0))),
		WithRunner(e.runner),
		WithWorkspace(ws),
		WithStore(e.store),
		WithPublisher(e.events),
		WithRecorder(e.recorder),
		WithBaseDir(e.dir),
	)
	require.NoError(e.t, err)
	return p
}

// forkTree returns the file contents at the tip of a branch of the fork.
func (e *env) forkTree(branch string) (*object.Commit, map[string]string) {
	e.t.Helper()
	repo, err := git.PlainOpen(e.forkGit)
	require.NoError(e.t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(e.t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(e.t, err)
	tree, err := commit.Tree()
	require.NoError(e.t, err)
	files := map[string]string{}
	require.NoError(e.t, tree.Files().ForEach(func(f *object.File) error {
		content, err := f.Contents()
		files[f.Name] = content
		return err
	}))
	return commit, files
}
