// Package runtimever maps a target framework version to the runtime version
// the framework requires. It is the fallback used whenever an oracle omits
// the runtime version.
package runtimever

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// DefaultRuntime is returned for missing or unparseable input.
	DefaultRuntime = "18.13.0"
	// NewestRuntime is the runtime of the open-ended newest band.
	NewestRuntime = "20.9.0"
)

// Band maps every major version up to and including MaxMajor to Runtime.
type Band struct {
	MaxMajor int
	Runtime  string
}

// bands is ascending by MaxMajor. Majors above the last band map to NewestRuntime.
var bands = []Band{
	{MaxMajor: 9, Runtime: "10.13.0"},
	{MaxMajor: 12, Runtime: "12.14.0"},
	{MaxMajor: 13, Runtime: "16.10.0"},
	{MaxMajor: 14, Runtime: "16.13.0"},
	{MaxMajor: 15, Runtime: "18.10.0"},
	{MaxMajor: 16, Runtime: "18.13.0"},
	{MaxMajor: 17, Runtime: "18.19.0"},
}

var nonVersionChars = regexp.MustCompile(`[^0-9.]`)

// Bands returns a copy of the band table.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}

// Resolve returns the runtime version required by target. It never fails.
func Resolve(target string) string {
	major, ok := Major(target)
	if !ok {
		return DefaultRuntime
	}
	for _, b := range bands {
		if major <= b.MaxMajor {
			return b.Runtime
		}
	}
	return NewestRuntime
}

// Major extracts the leading major version after stripping every character
// that is not a digit or a dot, so "~13.0.0" and "v13" both yield 13.
func Major(version string) (int, bool) {
	clean := nonVersionChars.ReplaceAllString(version, "")
	if clean == "" {
		return 0, false
	}

	if v, err := semver.NewVersion(clean); err == nil {
		return int(v.Major()), true
	}

	lead, _, _ := strings.Cut(clean, ".")
	major, err := strconv.Atoi(lead)
	if err != nil {
		return 0, false
	}
	return major, true
}
