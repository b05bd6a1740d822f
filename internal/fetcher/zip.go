package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ValidateZIP checks that the file at path is a readable ZIP archive holding
// at least one regular file. The shapefile cache runs it before promoting a
// downloaded archive.
func ValidateZIP(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return eris.Wrapf(err, "open archive %s", path)
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			return nil
		}
	}
	return eris.Errorf("archive %s contains no files", path)
}

// ExtractZIP unpacks every entry of the archive into destDir and returns the
// paths of the regular files written. Entry names are confined to destDir;
// an entry that would escape it fails the whole extraction.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "open archive %s", filepath.Base(zipPath))
	}
	defer r.Close() //nolint:errcheck

	var written []string
	for _, f := range r.File {
		dest, err := entryDest(destDir, f.Name)
		if err != nil {
			return written, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, eris.Wrapf(err, "create directory for %s", f.Name)
			}
			continue
		}
		if err := writeEntry(f, dest); err != nil {
			return written, err
		}
		written = append(written, dest)
	}
	return written, nil
}

// entryDest joins an archive entry name onto destDir, rejecting names that
// would resolve outside it.
func entryDest(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("entry %q escapes the extraction directory", name)
	}
	return dest, nil
}

func writeEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "create parent for %s", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "create %s", filepath.Base(dest))
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "write %s", filepath.Base(dest))
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "close %s", filepath.Base(dest))
	}
	return nil
}
