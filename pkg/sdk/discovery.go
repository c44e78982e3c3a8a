package sdk

import (
	"log/slog"
	"os"

	"github.com/celerix-dev/celerix-web/pkg/engine"
)

// Options selects the store backend.
type Options struct {
	// Addr of a remote store daemon. Empty means embedded mode.
	Addr string
	// DisableTLS talks plain TCP to the remote daemon.
	DisableTLS bool
	// DataDir is where the embedded engine keeps its tables.
	DataDir string
}

// Open returns a remote client when opts.Addr is set and reachable, and
// falls back to the embedded engine otherwise.
func Open(opts Options) (Store, error) {
	if opts.Addr != "" {
		client, err := Dial(opts.Addr, !opts.DisableTLS)
		if err == nil {
			return client, nil
		}
		slog.Warn("sdk.remote_unavailable", "addr", opts.Addr, "error", err)
	}

	// Embedded mode uses the same engine the daemon uses, inside the app process.
	p, err := engine.NewPersistence(opts.DataDir)
	if err != nil {
		return nil, err
	}

	allData, err := p.LoadAll()
	if err != nil {
		return nil, err
	}

	return engine.NewMemStore(allData, p), nil
}

// New initializes the store based on the environment.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(dataDir string) (Store, error) {
	return Open(Options{
		Addr:       os.Getenv("CELERIX_STORE_ADDR"),
		DisableTLS: os.Getenv("CELERIX_DISABLE_TLS") == "true",
		DataDir:    dataDir,
	})
}
