// Package tlsprovider holds the process-wide TLS client configuration used
// by every wss:// transport connection. It is initialized exactly once at
// startup; re-initialization is an error, and absence at connect time with
// a wss:// URI fails the connect attempt.
package tlsprovider

import (
	"crypto/tls"
	"errors"
	"sync"
)

// ErrAlreadyInitialized is returned by Init when called more than once.
var ErrAlreadyInitialized = errors.New("tlsprovider: already initialized")

// ErrNotInitialized is returned by Get before Init has run.
var ErrNotInitialized = errors.New("tlsprovider: not initialized")

var (
	mu     sync.Mutex
	config *tls.Config
)

// Init installs the process-wide TLS client configuration. ServerName is
// left empty and is set per-dial by the transport from the connection URI;
// everything else uses Go's default trust verification against the host
// platform's certificate store (crypto/tls already consults it when RootCAs
// is nil), matching the platform-trust-store contract spec'd for this
// provider without needing a third-party verifier.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if config != nil {
		return ErrAlreadyInitialized
	}
	config = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	return nil
}

// Get returns a clone of the process-wide TLS configuration, safe for the
// caller to mutate (e.g. to set ServerName) without affecting other
// concurrent connect attempts. Returns ErrNotInitialized if Init has not
// run yet.
func Get() (*tls.Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if config == nil {
		return nil, ErrNotInitialized
	}
	return config.Clone(), nil
}

// reset clears the singleton. Test-only: production code never resets the
// provider once initialized.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	config = nil
}
