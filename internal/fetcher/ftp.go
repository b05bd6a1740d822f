package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	// Timeout bounds the control-connection dial. Default: 1m.
	Timeout time.Duration
}

// FTPFetcher downloads files over anonymous FTP. The Bureau mirrors its
// archive tree on ftp2.census.gov, which serves as a fallback when the HTTPS
// host misbehaves.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher builds a fetcher with defaults applied.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = time.Minute
	}
	return &FTPFetcher{opts: opts}
}

// FTPMirrorURL maps an archive URL on www2.census.gov to the equivalent path
// on the ftp2.census.gov mirror. URLs on other hosts have no mirror.
func FTPMirrorURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "parse archive url")
	}
	if u.Host != "www2.census.gov" {
		return "", eris.Errorf("no ftp mirror for host %q", u.Host)
	}
	mirror := url.URL{Scheme: "ftp", Host: "ftp2.census.gov", Path: u.Path}
	return mirror.String(), nil
}

// parseFTPURL splits an ftp:// URL into a dialable host:port and the remote
// path. Port 21 is assumed when the URL names none.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("unsupported scheme %q, want ftp", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.Errorf("ftp url %q has no path", rawURL)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	return host, u.Path, nil
}

// retrReader keeps the control connection alive for the duration of a RETR
// stream. Closing it drains the transfer and quits the session.
type retrReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *retrReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *retrReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	switch {
	case respErr != nil:
		return eris.Wrap(respErr, "close ftp response")
	case quitErr != nil:
		return eris.Wrap(quitErr, "quit ftp session")
	}
	return nil
}

// Download opens a RETR stream for ftpURL. Closing the returned ReadCloser
// releases the session.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("dialing ftp mirror", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login("anonymous", "acs-cli@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp login")
	}
	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp retrieve")
	}
	return &retrReader{resp: resp, conn: conn}, nil
}

// DownloadToFile streams ftpURL into path and reports the bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(out, rc)
	if err != nil {
		out.Close() //nolint:errcheck
		return n, eris.Wrap(err, "write file")
	}
	if err := out.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}
	return n, nil
}
