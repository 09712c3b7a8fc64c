// Package blob fetches supporting documents from the invoice document store.
package blob

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exceptions-cli/internal/config"
)

// Store fetches a named object's bytes.
type Store interface {
	Fetch(ctx context.Context, filename string) ([]byte, error)
}

// NewStore creates a Store based on config.
func NewStore(cfg config.BlobConfig) (Store, error) {
	switch cfg.Provider {
	case "local", "":
		if cfg.Dir == "" {
			return nil, eris.New("blob: local provider requires dir")
		}
		return NewLocalStore(cfg.Dir), nil
	case "ftp":
		if cfg.Host == "" {
			return nil, eris.New("blob: ftp provider requires host")
		}
		return NewFTPStore(cfg.Host, cfg.Prefix, 0), nil
	default:
		return nil, eris.Errorf("blob: unknown provider %q", cfg.Provider)
	}
}
