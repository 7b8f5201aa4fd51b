// Package version reports build metadata for camcore.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags during build. When left at their defaults the VCS stamp
// embedded by the Go toolchain fills GitCommit and BuildDate.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" example:"3f2a9c1" doc:"Source revision"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	Modified  bool   `json:"modified,omitempty" doc:"Built from a dirty tree"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type vcsStamp struct {
	revision string
	time     string
	modified bool
}

var readStamp = sync.OnceValue(func() vcsStamp {
	var s vcsStamp
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	for _, kv := range bi.Settings {
		switch kv.Key {
		case "vcs.revision":
			s.revision = kv.Value
		case "vcs.time":
			s.time = kv.Value
		case "vcs.modified":
			s.modified = kv.Value == "true"
		}
	}
	return s
})

// Get returns version and build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	stamp := readStamp()
	if info.GitCommit == "unknown" && stamp.revision != "" {
		info.GitCommit = shortRevision(stamp.revision)
		info.Modified = stamp.modified
	}
	if info.BuildDate == "unknown" && stamp.time != "" {
		info.BuildDate = stamp.time
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns the application version string.
func String() string {
	return Version
}

// Platform is the one-line description reported to callers, such as
// "camcore dev (linux/arm64)".
func Platform() string {
	return fmt.Sprintf("camcore %s (%s)", Version, Get().Platform)
}
