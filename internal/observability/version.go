package observability

// Build identity reported by --version and /api/version. Set with
// -ldflags "-X capture-broker/internal/observability.Version=...".
var (
	Version = "0.0.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
)
