package config

// Set at build time through -ldflags -X.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func VersionString() string {
	return Version + "-" + Date + "-" + Commit
}
