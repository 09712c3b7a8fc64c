package blob

import (
	"context"
	"io"
	"net"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exceptions-cli/internal/resilience"
)

// FTPStore fetches documents from an FTP-exposed capture share. Each fetch
// opens and closes its own connection; document volume per run is low enough
// that connection reuse is not worth the staleness handling.
type FTPStore struct {
	host    string
	prefix  string
	timeout time.Duration
	retry   resilience.Policy
}

// NewFTPStore creates an FTPStore. Host may omit the port (21 is assumed).
// Prefix is joined in front of every requested filename.
func NewFTPStore(host, prefix string, timeout time.Duration) *FTPStore {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	p := resilience.DefaultPolicy()
	p.OnRetry = resilience.RetryLogger("ftp", "fetch")
	return &FTPStore{host: host, prefix: prefix, timeout: timeout, retry: p}
}

// Fetch downloads the named document, retrying transient network failures.
func (s *FTPStore) Fetch(ctx context.Context, filename string) ([]byte, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		return s.fetchOnce(ctx, filename)
	})
}

func (s *FTPStore) fetchOnce(ctx context.Context, filename string) ([]byte, error) {
	remote := path.Join(s.prefix, filename)
	zap.L().Debug("blob: fetching document",
		zap.String("host", s.host),
		zap.String("path", remote),
	)

	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "blob: ftp dial"), 0)
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, eris.Wrap(err, "blob: ftp login")
	}

	resp, err := conn.Retr(remote)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: ftp retrieve %s", remote)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "blob: ftp read %s", remote), 0)
	}
	return data, nil
}
