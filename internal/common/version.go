package common

// These variables are set via ldflags during build
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

const serviceName = "aktis-analytics-jira"

func GetVersion() string {
	return Version
}

func GetBuild() string {
	return Build
}

func GetGitCommit() string {
	return GitCommit
}

// UserAgent identifies the engine to the Jira API
func UserAgent() string {
	return serviceName + "/" + GetFullVersion()
}

// GetFullVersion returns the complete version information
func GetFullVersion() string {
	if Build != "unknown" {
		return Version + "-" + Build
	}
	return Version
}
