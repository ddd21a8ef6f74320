// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the dbmeter binary at
// link time: name, build timestamp, commit and semantic version.
//
//	go build -ldflags "-X dbmeter/pkg/build.buildName=dbmeter \
//	  -X dbmeter/pkg/build.buildVersion=v0.3.0 ..."
package build

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:    "dbmeter",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "v0.0.0-dev",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Returns an error if any flag is missing or the
// version is not valid semver; the development defaults stay in place then.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	version := canonicalVersion(buildVersion)
	if !semver.IsValid(version) {
		return fmt.Errorf("BuildVersion %q is not a semantic version", buildVersion)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = version

	return nil
}

// canonicalVersion accepts "1.2.3" as well as "v1.2.3".
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for the version command.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
