// Package version reports build information for the controller.
package version

import "fmt"

// Set at build time with -ldflags "-X .../internal/version.Version=...".
var (
	Name      = "Stellar MusicCast"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is the version payload served at /api/v1/version.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the current version information.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// UserAgent returns the HTTP user agent sent to devices.
func (i Info) UserAgent() string {
	return fmt.Sprintf("Stellar-MusicCast/%s", i.Version)
}

// String formats the info for the startup banner. Commits are shortened to 7 characters.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
