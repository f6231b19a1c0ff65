/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries build information.
package version

import "fmt"

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/haulroster/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the VCS revision, set at build time.
var Commit = "unknown"

// Info is the build information reported by /healthz and the CLI.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Current returns the running build's information.
func Current() Info {
	return Info{Version: Version, Commit: Commit}
}

func (i Info) String() string {
	return fmt.Sprintf("haulroster %s (%s)", i.Version, i.Commit)
}
