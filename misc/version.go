// Package misc keeps program identification shared by all other packages.
package misc

// set with -ldflags at build time
var (
	version = "dev"
	githash = "unknown"
)

// GetAppName returns program name used for log, report and temporary files.
func GetAppName() string {
	return "critcss"
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return githash
}
