package docset

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// excluded names never enter the archive.
var excluded = map[string]bool{".DS_Store": true}

// Archive writes a gzipped tarball of the docset bundle at docsetPath into dst.
// Entry names are rooted at "<name>.docset/".
func Archive(docsetPath, dst string) (err error) {
	info, err := os.Stat(docsetPath)
	if err != nil {
		return fmt.Errorf("stat docset: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("docset %s is not a directory", docsetPath)
	}

	f, err := os.Create(dst) // #nosec G304 -- workspace path
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	root := filepath.Base(docsetPath)
	walkErr := filepath.WalkDir(docsetPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if excluded[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(docsetPath, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(root, rel))
		return addEntry(tw, path, name, d)
	})
	if walkErr != nil {
		return fmt.Errorf("archive %s: %w", docsetPath, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uname, hdr.Gname = "", ""
	hdr.Uid, hdr.Gid = 0, 0
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	src, err := os.Open(path) // #nosec G304 -- walking the docset bundle
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	_, err = io.Copy(tw, src)
	return err
}
