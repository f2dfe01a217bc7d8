package docset

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/docsetbot/internal/logfields"
)

// Locate returns the directory of the named docset under repoRoot/docsetsDir.
// An existing directory whose name matches case-insensitively wins; otherwise
// the path for a new directory is returned.
func Locate(repoRoot, docsetsDir, name string) (string, error) {
	base := filepath.Join(repoRoot, filepath.FromSlash(docsetsDir))
	entries, err := os.ReadDir(base)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read docsets dir: %w", err)
	}
	fold := cases.Fold()
	want := fold.String(name)
	for _, e := range entries {
		if e.IsDir() && fold.String(e.Name()) == want {
			return filepath.Join(base, e.Name()), nil
		}
	}
	return filepath.Join(base, name), nil
}

// EnsureDir creates dir if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create docset dir: %w", err)
	}
	return nil
}

// RemoveOld deletes the versions/ directory and every *.tgz* archive in dir.
func RemoveOld(dir string) error {
	versions := filepath.Join(dir, "versions")
	if _, err := os.Stat(versions); err == nil {
		if err := os.RemoveAll(versions); err != nil {
			return fmt.Errorf("remove versions: %w", err)
		}
		slog.Info("Removed old versions", logfields.Path(versions))
	}

	archives, err := filepath.Glob(filepath.Join(dir, "*.tgz*"))
	if err != nil {
		return fmt.Errorf("glob archives: %w", err)
	}
	for _, a := range archives {
		if err := os.Remove(a); err != nil {
			return fmt.Errorf("remove archive: %w", err)
		}
		slog.Info("Removed old archive", logfields.Path(a))
	}
	return nil
}

// CopyIcons copies every icon*.png from the docset bundle into dir.
func CopyIcons(docsetPath, dir string) ([]string, error) {
	icons, err := filepath.Glob(filepath.Join(docsetPath, "icon*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob icons: %w", err)
	}
	copied := make([]string, 0, len(icons))
	for _, src := range icons {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// ArchiveName is the tarball name for a docset.
func ArchiveName(name string) string {
	return name + ".tgz"
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
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
