// Package version holds the build identity of the MoeKoe shell.
package version

import (
	"fmt"
	"strings"
)

// These variables are set at build time using -ldflags
var (
	// Name is the application name
	Name = "MoeKoe"

	// Version is the semantic version, compared against release tags by the updater
	Version = "1.0.0"

	// BuildTime is the build timestamp
	BuildTime = ""

	// GitCommit is the git commit hash
	GitCommit = ""

	// Repository is the GitHub "owner/repo" releases are published under
	Repository = "iAJue/MoeKoeMusic"
)

// Info contains version information
type Info struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	BuildTime  string `json:"buildTime,omitempty"`
	GitCommit  string `json:"gitCommit,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// GetInfo returns the current version information
func GetInfo() Info {
	return Info{
		Name:       Name,
		Version:    Version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		Repository: Repository,
	}
}

// ReleaseRepo splits Repository into its GitHub owner and repo.
func ReleaseRepo(repository string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// UserAgent identifies the shell in outgoing requests, e.g. "MoeKoe/1.0.0".
func (i Info) UserAgent() string {
	return i.Name + "/" + i.Version
}

// String returns a formatted version string
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}
