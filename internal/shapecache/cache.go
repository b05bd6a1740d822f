// Package shapecache caches Census Bureau geometry archives on disk.
// Downloads stream to a partial file, validate as ZIP archives, and
// promote by rename; a SQLite manifest records promoted archives for
// status reporting. The filesystem is authoritative for presence.
package shapecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/acs-cli/internal/acs"
	"github.com/sells-group/acs-cli/internal/fetcher"
)

// Kind distinguishes the two archive series the cache holds.
type Kind string

const (
	KindShapefile Kind = "shapefile"
	KindGazetteer Kind = "gazetteer"
)

// Key identifies one upstream archive.
type Key struct {
	Kind       Kind
	Year       int
	GeoType    acs.GeoType
	StateFIPS  string
	Resolution acs.Resolution
}

// ShapefileKey builds the key for a cartographic boundary archive. An
// empty resolution takes the geography's default.
func ShapefileKey(year int, geoType acs.GeoType, stateFIPS string, resolution acs.Resolution) Key {
	if resolution == "" {
		resolution = acs.DefaultResolution(geoType)
	}
	return Key{
		Kind:       KindShapefile,
		Year:       year,
		GeoType:    geoType,
		StateFIPS:  stateFIPS,
		Resolution: resolution,
	}
}

// GazetteerKey builds the key for a gazetteer archive.
func GazetteerKey(year int, geoType acs.GeoType) Key {
	return Key{Kind: KindGazetteer, Year: year, GeoType: geoType}
}

// URL maps the key to its upstream archive URL. ok is false when the
// Bureau publishes no series for the geography and vintage.
func (k Key) URL() (string, bool) {
	switch k.Kind {
	case KindShapefile:
		return acs.ShapefileURL(k.Year, k.GeoType, k.StateFIPS, k.Resolution)
	case KindGazetteer:
		return acs.GazetteerURL(k.Year, k.GeoType)
	}
	return "", false
}

func (k Key) String() string {
	if k.Kind == KindShapefile {
		return fmt.Sprintf("%s:%d:%s:%s:%s", k.Kind, k.Year, k.GeoType, k.StateFIPS, k.Resolution)
	}
	return fmt.Sprintf("%s:%d:%s", k.Kind, k.Year, k.GeoType)
}

// DefaultRoot returns the conventional cache location, ~/.acs-cli/cache,
// falling back to the system temp directory when no home directory can
// be determined.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "acs-cli", "cache")
	}
	return filepath.Join(home, ".acs-cli", "cache")
}

// Option configures the cache.
type Option func(*Cache)

// WithFetcher sets the HTTP fetcher used for downloads.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Cache) {
		c.http = f
	}
}

// WithFTP sets the FTP fetcher used for the mirror fallback.
func WithFTP(f *fetcher.FTPFetcher) Option {
	return func(c *Cache) {
		c.ftp = f
	}
}

// WithoutFTPFallback disables the FTP mirror fallback.
func WithoutFTPFallback() Option {
	return func(c *Cache) {
		c.noFTP = true
	}
}

// WithoutManifest disables the SQLite manifest.
func WithoutManifest() Option {
	return func(c *Cache) {
		c.noManifest = true
	}
}

// Cache is an on-disk archive store rooted at a directory. When the
// root cannot be created the cache degrades to an ephemeral temp
// directory: every key fetches, nothing outlives the process, and no
// operation fails because of the root.
type Cache struct {
	root       string
	ephemeral  bool
	http       fetcher.Fetcher
	ftp        *fetcher.FTPFetcher
	noFTP      bool
	noManifest bool
	group      singleflight.Group
	logger     *zap.Logger

	mu       sync.Mutex
	manifest *Manifest
}

// New creates a cache rooted at root.
func New(root string, opts ...Option) (*Cache, error) {
	c := &Cache{
		root:   root,
		logger: zap.L().With(zap.String("component", "shapecache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.ftp == nil && !c.noFTP {
		c.ftp = fetcher.NewFTPFetcher(fetcher.FTPOptions{})
	}

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		tmp, terr := os.MkdirTemp("", "acs-cache-")
		if terr != nil {
			return nil, eris.Wrapf(err, "shapecache: create cache root %s", root)
		}
		c.logger.Warn("cache root unavailable, running ephemeral",
			zap.String("root", root),
			zap.Error(err),
		)
		c.root = tmp
		c.ephemeral = true
	}

	if !c.ephemeral && !c.noManifest {
		m, err := OpenManifest(filepath.Join(c.root, ManifestName))
		if err != nil {
			c.logger.Warn("cache manifest unavailable", zap.Error(err))
		} else {
			c.manifest = m
		}
	}
	return c, nil
}

// Dir returns the directory archives land in.
func (c *Cache) Dir() string { return c.root }

// Ephemeral reports whether the cache fell back to a temp directory.
func (c *Cache) Ephemeral() bool { return c.ephemeral }

// Fetch returns the local path of the archive for key, downloading and
// promoting it on a miss. Concurrent fetches for the same key share
// one download. A cached archive that no longer validates is evicted
// and fetched once more.
func (c *Cache) Fetch(ctx context.Context, key Key) (string, error) {
	rawURL, ok := key.URL()
	if !ok {
		return "", &UnpublishedError{Key: key}
	}
	filename := path.Base(rawURL)
	dest := filepath.Join(c.root, filename)

	v, err, _ := c.group.Do(filename, func() (any, error) {
		return c.locate(ctx, key, rawURL, dest)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) locate(ctx context.Context, key Key, rawURL, dest string) (string, error) {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		if err := fetcher.ValidateZIP(dest); err == nil {
			c.logger.Debug("cache hit", zap.String("archive", dest))
			return dest, nil
		}
		c.logger.Warn("evicting corrupt cached archive", zap.String("archive", dest))
		c.evict(ctx, key, dest)
	}
	return c.download(ctx, key, rawURL, dest)
}

func (c *Cache) download(ctx context.Context, key Key, rawURL, dest string) (string, error) {
	c.logger.Info("downloading archive",
		zap.String("key", key.String()),
		zap.String("url", rawURL),
	)
	partial := dest + ".partial"
	defer os.Remove(partial) //nolint:errcheck

	n, err := c.http.DownloadToFile(ctx, rawURL, partial)
	if err != nil {
		if fetcher.IsNotFound(err) {
			return "", &UnpublishedError{Key: key, URL: rawURL}
		}
		n, err = c.downloadMirror(ctx, rawURL, partial, err)
		if err != nil {
			return "", err
		}
	}

	if err := fetcher.ValidateZIP(partial); err != nil {
		return "", &CorruptArchiveError{Path: dest, Err: err}
	}
	if err := os.Rename(partial, dest); err != nil {
		return "", eris.Wrap(err, "shapecache: promote archive")
	}
	c.record(ctx, key, dest, n)
	return dest, nil
}

// downloadMirror tries the download once against the anonymous FTP
// mirror. The original HTTPS error is what surfaces when no mirror
// exists for the host or the mirror fails too.
func (c *Cache) downloadMirror(ctx context.Context, rawURL, partial string, httpErr error) (int64, error) {
	if c.ftp == nil {
		return 0, eris.Wrapf(httpErr, "shapecache: download %s", rawURL)
	}
	mirror, err := fetcher.FTPMirrorURL(rawURL)
	if err != nil {
		return 0, eris.Wrapf(httpErr, "shapecache: download %s", rawURL)
	}
	c.logger.Warn("https download failed, trying ftp mirror",
		zap.String("url", rawURL),
		zap.Error(httpErr),
	)
	n, err := c.ftp.DownloadToFile(ctx, mirror, partial)
	if err != nil {
		c.logger.Warn("ftp mirror download failed",
			zap.String("url", mirror),
			zap.Error(err),
		)
		return 0, eris.Wrapf(httpErr, "shapecache: download %s", rawURL)
	}
	return n, nil
}

func (c *Cache) evict(ctx context.Context, key Key, dest string) {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("evict archive", zap.String("archive", dest), zap.Error(err))
	}
	if m := c.man(); m != nil {
		if err := m.Delete(ctx, key.String()); err != nil {
			c.logger.Warn("evict manifest row", zap.String("key", key.String()), zap.Error(err))
		}
	}
}

func (c *Cache) record(ctx context.Context, key Key, dest string, bytes int64) {
	m := c.man()
	if m == nil {
		return
	}
	sum, err := hashFile(dest)
	if err != nil {
		c.logger.Warn("hash archive", zap.String("archive", dest), zap.Error(err))
		return
	}
	if err := m.Record(ctx, key.String(), filepath.Base(dest), bytes, sum); err != nil {
		c.logger.Warn("record archive", zap.String("key", key.String()), zap.Error(err))
	}
}

// Status lists cached archives. The manifest supplies rich entries;
// without one, the directory listing stands in.
func (c *Cache) Status(ctx context.Context) ([]Entry, error) {
	if m := c.man(); m != nil {
		return m.List(ctx)
	}
	dirents, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "shapecache: read cache root")
	}
	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".zip") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Filename:  de.Name(),
			Bytes:     info.Size(),
			FetchedAt: info.ModTime().UTC(),
		})
	}
	return entries, nil
}

// Clear removes every cached archive and the manifest, then recreates
// the empty root. Safe to call repeatedly and when the root is gone.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manifest != nil {
		if err := c.manifest.Close(); err != nil {
			c.logger.Warn("close manifest", zap.Error(err))
		}
		c.manifest = nil
	}
	if err := os.RemoveAll(c.root); err != nil {
		return eris.Wrap(err, "shapecache: clear cache root")
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return eris.Wrap(err, "shapecache: recreate cache root")
	}
	if !c.ephemeral && !c.noManifest {
		m, err := OpenManifest(filepath.Join(c.root, ManifestName))
		if err != nil {
			c.logger.Warn("cache manifest unavailable", zap.Error(err))
			return nil
		}
		c.manifest = m
	}
	return nil
}

// Close releases the manifest handle.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manifest == nil {
		return nil
	}
	err := c.manifest.Close()
	c.manifest = nil
	return err
}

func (c *Cache) man() *Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manifest
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "shapecache: open archive")
	}
	defer f.Close() //nolint:errcheck
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrap(err, "shapecache: hash archive")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
