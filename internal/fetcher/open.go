package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Opener resolves a source location to a byte stream. Locations are local
// paths, file:// URLs, http(s):// URLs or ftp:// URLs.
type Opener struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewOpener wires the default HTTP and FTP fetchers.
func NewOpener(httpOpts HTTPOptions, ftpOpts FTPOptions) *Opener {
	return &Opener{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// IsRemote reports whether location names an http, https or ftp resource.
func IsRemote(location string) bool {
	switch scheme(location) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Ext returns the lowercased extension of the location's path, ignoring any query string.
func Ext(location string) string {
	p := location
	if scheme(location) != "" {
		if u, err := url.Parse(location); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(path.Ext(p))
}

// Open returns a reader for the location. The caller closes it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("location", location))

	switch scheme(location) {
	case "http", "https":
		if o.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", location)
		}
		log.Debug("opening remote source")
		return o.HTTP.Download(ctx, location)
	case "ftp":
		if o.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", location)
		}
		log.Debug("opening remote source")
		return o.FTP.Download(ctx, location)
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: parse file url")
		}
		return openLocal(u.Path)
	case "":
		return openLocal(location)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme in %q", location)
	}
}

// FetchToFile materializes the location as a file inside dir and returns its
// path. Local paths are returned as-is without copying.
func (o *Opener) FetchToFile(ctx context.Context, location, dir string) (string, error) {
	switch scheme(location) {
	case "":
		return location, nil
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return "", eris.Wrap(err, "fetcher: parse file url")
		}
		return u.Path, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create temp dir")
	}

	name := "download" + Ext(location)
	if u, err := url.Parse(location); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	dest := filepath.Join(dir, name)

	rc, err := o.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck

	n, err := writeFile(dest, rc)
	if err != nil {
		return "", err
	}

	zap.L().Info("fetched source",
		zap.String("component", "fetcher"),
		zap.String("location", location),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

func openLocal(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", p)
	}
	return f, nil
}

// scheme returns the lowercased URL scheme, or "" for plain paths. Single
// letter schemes are Windows drive letters, not URLs.
func scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(location[:i])
}
