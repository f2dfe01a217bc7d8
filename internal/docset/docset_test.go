package docset

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLocateIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docsets", "Seaborn"), 0o750))

	dir, err := Locate(root, "docsets", "seaborn")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docsets", "Seaborn"), dir)

	dir, err = Locate(root, "docsets", "numpy")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docsets", "numpy"), dir)
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}

func TestLocateWithoutDocsetsDir(t *testing.T) {
	root := t.TempDir()
	dir, err := Locate(root, "docsets", "seaborn")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docsets", "seaborn"), dir)
}

func TestLocateConcurrently(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docsets", "SciPy"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docsets", "Seaborn"), 0o750))

	var wg sync.WaitGroup
	for _, name := range []string{"seaborn", "SEABORN", "scipy", "Scipy", "seaborn", "scipy"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir, err := Locate(root, "docsets", name)
			assert.NoError(t, err)
			assert.Contains(t, []string{
				filepath.Join(root, "docsets", "SciPy"),
				filepath.Join(root, "docsets", "Seaborn"),
			}, dir)
		}()
	}
	wg.Wait()
}

func TestRemoveOld(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "versions", "0.12.0", "seaborn.tgz"), "x")
	touch(t, filepath.Join(dir, "seaborn.tgz"), "x")
	touch(t, filepath.Join(dir, "seaborn.tgz.txt"), "x")
	touch(t, filepath.Join(dir, "README.md"), "keep")

	require.NoError(t, RemoveOld(dir))
	assert.NoDirExists(t, filepath.Join(dir, "versions"))
	assert.NoFileExists(t, filepath.Join(dir, "seaborn.tgz"))
	assert.NoFileExists(t, filepath.Join(dir, "seaborn.tgz.txt"))
	assert.FileExists(t, filepath.Join(dir, "README.md"))

	// Nothing left to remove.
	assert.NoError(t, RemoveOld(dir))
}

func TestCopyIcons(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "seaborn.docset")
	touch(t, filepath.Join(bundle, "icon.png"), "small")
	touch(t, filepath.Join(bundle, "icon@2x.png"), "large")
	touch(t, filepath.Join(bundle, "Contents", "Info.plist"), "plist")
	dst := t.TempDir()

	copied, err := CopyIcons(bundle, dst)
	require.NoError(t, err)
	assert.Len(t, copied, 2)
	data, err := os.ReadFile(filepath.Join(dst, "icon@2x.png"))
	require.NoError(t, err)
	assert.Equal(t, "large", string(data))
	assert.NoFileExists(t, filepath.Join(dst, "Info.plist"))
}

func TestArchive(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "seaborn.docset")
	touch(t, filepath.Join(bundle, "Contents", "Info.plist"), "plist")
	touch(t, filepath.Join(bundle, "Contents", "Resources", "docSet.dsidx"), "index")
	touch(t, filepath.Join(bundle, ".DS_Store"), "junk")
	touch(t, filepath.Join(bundle, "Contents", ".DS_Store"), "junk")
	dst := filepath.Join(t.TempDir(), ArchiveName("seaborn"))

	require.NoError(t, Archive(bundle, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	contents := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			b, err := io.ReadAll(tr)
			require.NoError(t, err)
			contents[hdr.Name] = string(b)
		}
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"seaborn.docset/",
		"seaborn.docset/Contents/",
		"seaborn.docset/Contents/Info.plist",
		"seaborn.docset/Contents/Resources/",
		"seaborn.docset/Contents/Resources/docSet.dsidx",
	}, names)
	assert.Equal(t, "index", contents["seaborn.docset/Contents/Resources/docSet.dsidx"])
}

func TestArchiveMissingBundle(t *testing.T) {
	assert.Error(t, Archive(filepath.Join(t.TempDir(), "nope.docset"), filepath.Join(t.TempDir(), "x.tgz")))
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteManifest(dir, Manifest{
		Name:    "seaborn",
		Version: "0.13.2",
		Archive: ArchiveName("seaborn"),
		Author:  Author{Name: "Tester", URL: "https://github.com/tester"},
		Aliases: []string{"python", "graph"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "name": "seaborn",
  "version": "0.13.2",
  "archive": "seaborn.tgz",
  "author": {
    "name": "Tester",
    "url": "https://github.com/tester"
  },
  "aliases": [
    "python",
    "graph"
  ]
}
`, string(data))

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.13.2", m.Version)
}

func TestWriteAndValidateReadme(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteReadme(dir, ReadmeData{
		Name:      "seaborn",
		Author:    Link{Title: "Tester", URL: "https://github.com/tester"},
		Publisher: Link{Title: "tester/docsets", URL: "https://github.com/tester/docsets"},
		Requirements: []Link{
			{Title: "docsetbot", URL: "https://github.com/tester/docsets"},
			{Title: "doc2dash", URL: "https://github.com/hynek/doc2dash"},
		},
		BuildCommands: []string{"docsetbot build -c docsetbot.yaml"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# seaborn\n\n"+
		"## Who am I\n\n"+
		"[Tester](https://github.com/tester)\n\n"+
		"## How to generate docset\n\n"+
		"This docset is automatically generated via [tester/docsets](https://github.com/tester/docsets).\n\n"+
		"### Requirements\n\n"+
		"- [docsetbot](https://github.com/tester/docsets)\n"+
		"- [doc2dash](https://github.com/hynek/doc2dash)\n\n"+
		"### Build directions\n\n"+
		"To build the docs, run:\n\n"+
		"```console\n"+
		"$ docsetbot build -c docsetbot.yaml\n"+
		"```\n", string(data))

	assert.NoError(t, ValidateReadme(path))
}

func TestValidateReadmeRejectsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), ReadmeFile)
	touch(t, path, "# seaborn\n\n## Who am I\n\nSomebody\n")

	err := ValidateReadme(path)
	require.ErrorIs(t, err, ErrInvalidReadme)
	assert.Contains(t, err.Error(), HeadingGenerate)
	assert.Contains(t, err.Error(), "link")
}
