// Package source lists and fetches project files from where a project lives:
// a GitHub repository, a local git checkout or an in-memory fixture.
package source

import (
	"context"
	"strings"
)

// Provider is the read-only view of a repository the scanner works against.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// ListFiles returns the filtered file paths of ref. Tree-level failures
	// abort the listing.
	ListFiles(ctx context.Context, ref string) ([]string, error)
	// FetchFile returns the content of path. A file that cannot be read for
	// reasons other than credentials or quota is reported absent.
	FetchFile(ctx context.Context, ref, path string) (string, bool, error)
}

// CredentialSetter is implemented by providers that accept a token at runtime.
type CredentialSetter interface {
	SetCredentials(token string)
}

// Filter selects which repository paths are worth scanning.
type Filter struct {
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	// Excludes are matched anywhere in the path.
	Excludes []string `mapstructure:"excludes" yaml:"excludes"`
}

// DefaultFilter keeps sources, markup, styles and JSON, and skips build
// output, dependencies and tests.
func DefaultFilter() Filter {
	return Filter{
		Extensions: []string{".ts", ".html", ".scss", ".css", ".json"},
		Excludes:   []string{"node_modules", "dist/", "coverage/", ".spec.ts", "test.ts"},
	}
}

// Match reports whether path passes the filter
func (f Filter) Match(path string) bool {
	for _, ex := range f.Excludes {
		if strings.Contains(path, ex) {
			return false
		}
	}
	for _, ext := range f.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Apply returns the paths that pass the filter, preserving order.
func (f Filter) Apply(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
