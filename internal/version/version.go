// Package version provides build-time version information.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/catenarymaps/spruce-sync/internal/version.Version=0.3.0 \
//	                   -X github.com/catenarymaps/spruce-sync/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/spruce-tap
package version

var (
	Version = "dev"
	Commit  = "unknown"
)

// Product is the client name sent to the sync backend.
const Product = "spruce-tap"

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ")"
}

// UserAgent returns the User-Agent header value for the WebSocket handshake.
func UserAgent() string {
	return Product + "/" + Version
}
