// Package version holds build metadata set through -ldflags
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String returns the version line printed by the CLI
func String() string {
	return Version + " (" + Commit + ") " + BuildTime
}
