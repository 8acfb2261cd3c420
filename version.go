package main

import (
	"strings"

	"github.com/oszuidwest/zwfm-audiotap/internal/util"
	"golang.org/x/mod/semver"
)

// Build metadata, set via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// VersionInfo describes the running build.
type VersionInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	BuildTime  string `json:"build_time"`
	Release    bool   `json:"release"`
	Prerelease string `json:"prerelease,omitempty"`
}

// buildInfo returns the normalized build metadata.
func buildInfo() VersionInfo {
	info := VersionInfo{
		Version:   normalizeVersion(Version),
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}

	canon := canonicalVersion(Version)
	if semver.IsValid(canon) {
		info.Version = normalizeVersion(semver.Canonical(canon))
		info.Prerelease = strings.TrimPrefix(semver.Prerelease(canon), "-")
		info.Release = info.Prerelease == ""
	}
	return info
}

// normalizeVersion returns a normalized version string.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// canonicalVersion returns the version in canonical semver format.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
