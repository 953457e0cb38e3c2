// Package version reports build information injected with -ldflags:
//
//	go build -ldflags "-X github.com/teranos/omekalink/version.Version=v0.3.0 \
//	  -X github.com/teranos/omekalink/version.CommitHash=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
)

const devVersion = "dev"

// Set at build time
var (
	Version    = devVersion
	CommitHash = "dev"
	BuildTime  = "unknown"
)

// Info describes the running binary
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the build information of this binary
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("omekalink %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short is the commit hash cut to seven characters
func (i Info) Short() string {
	if len(i.CommitHash) > 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// UserAgent identifies API requests in the Omeka S access log.
// Untagged builds report the commit instead of "dev".
func (i Info) UserAgent() string {
	v := i.Version
	if v == devVersion {
		v = devVersion + "+" + i.Short()
	}
	return "omekalink/" + v
}
