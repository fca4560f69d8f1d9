// SPDX-License-Identifier: MIT
//
// Package build holds metadata embedded into the binary at link time. The
// values are injected with -ldflags, for example:
//
//	go build -ldflags "-X tuner/pkg/build.buildName=tuner -X tuner/pkg/build.buildVersion=0.2.0"
//
// Development builds run without them and report "dev" for every field.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown by the CLI.
const Description = "Practice-session tuner that tracks per-note intonation tendencies"

// ErrMissingFlag is returned by Initialize when a link-time value is absent.
var ErrMissingFlag = errors.New("build flag missing")

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "tuner",
		Time:    "dev",
		Commit:  "dev",
		Version: "dev",
	}
)

// Initialize copies the link-time values into the build info. Every value is
// checked before any is copied, so a partial set leaves the defaults intact.
func Initialize() error {
	required := []struct {
		name  string
		value string
	}{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingFlag, r.name)
		}
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// VersionString formats the build info for `--version` output.
func VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", buildFlags.Version, buildFlags.Commit, buildFlags.Time)
}
