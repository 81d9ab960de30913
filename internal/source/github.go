package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/google/go-github/v73/github"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/retry"
)

var repoRefPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.)?(?:github\.com/)?([A-Za-z0-9-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

// ParseGitHubRef extracts owner and repository from a URL such as
// https://github.com/owner/repo or the short form owner/repo.
func ParseGitHubRef(ref string) (owner, repo string, err error) {
	m := repoRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return "", "", errors.New(errors.ErrCodeSourceInvalidRef, fmt.Sprintf("invalid GitHub repository reference: %q", ref)).
			WithSuggestion("Use https://github.com/<owner>/<repo> or <owner>/<repo>")
	}
	return m[1], m[2], nil
}

// GitHub reads repositories through the GitHub REST API.
type GitHub struct {
	mu       sync.RWMutex
	client   *github.Client
	http     *http.Client
	baseURL  *url.URL
	token    string
	branches map[string]string
	filter   Filter
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// GitHubOption configures a GitHub provider
type GitHubOption func(*GitHub)

// WithBaseURL points the provider at a GitHub Enterprise or test API root.
func WithBaseURL(raw string) GitHubOption {
	return func(g *GitHub) {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err == nil {
			g.baseURL = u
		}
	}
}

// WithToken sets the initial API token.
func WithToken(token string) GitHubOption {
	return func(g *GitHub) { g.token = token }
}

// WithGitHubHTTPClient sets the underlying HTTP client.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.http = c }
}

// WithSourceMetrics records request outcomes.
func WithSourceMetrics(m *metrics.Metrics) GitHubOption {
	return func(g *GitHub) { g.metrics = m }
}

// WithSourceLogger sets the logger used for skipped files.
func WithSourceLogger(l *log.Logger) GitHubOption {
	return func(g *GitHub) { g.logger = l }
}

// WithFilter overrides the default path filter.
func WithFilter(f Filter) GitHubOption {
	return func(g *GitHub) { g.filter = f }
}

// NewGitHub creates a GitHub source provider
func NewGitHub(opts ...GitHubOption) *GitHub {
	g := &GitHub{
		branches: make(map[string]string),
		filter:   DefaultFilter(),
		metrics:  metrics.Nop(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client = g.newClient()
	return g
}

func (g *GitHub) newClient() *github.Client {
	c := github.NewClient(g.http)
	if g.token != "" {
		c = c.WithAuthToken(g.token)
	}
	if g.baseURL != nil {
		c.BaseURL = g.baseURL
	}
	return c
}

// Name implements Provider.
func (g *GitHub) Name() string { return "github" }

// SetCredentials implements CredentialSetter. The token applies to every
// request made after the call.
func (g *GitHub) SetCredentials(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = strings.TrimSpace(token)
	g.client = g.newClient()
}

func (g *GitHub) api() *github.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// ListFiles implements Provider. It resolves the default branch and walks
// its tree recursively.
func (g *GitHub) ListFiles(ctx context.Context, ref string) ([]string, error) {
	owner, name, err := ParseGitHubRef(ref)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	client := g.api()

	repo, _, err := client.Repositories.Get(ctx, owner, name)
	if err != nil {
		g.observe("repo", false)
		return nil, classify(ctx, ref, err)
	}
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}

	tree, _, err := client.Git.GetTree(ctx, owner, name, branch, true)
	if err != nil {
		g.observe("tree", false)
		return nil, classify(ctx, ref, err)
	}
	g.observe("tree", true)
	if tree.GetTruncated() {
		g.logger.Warn("repository tree truncated", "ref", ref, "entries", len(tree.Entries))
	}

	g.mu.Lock()
	g.branches[owner+"/"+name] = branch
	g.mu.Unlock()

	paths := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return g.filter.Apply(paths), nil
}

// FetchFile implements Provider. Missing files and unexpected per-file
// failures are reported absent; credential and quota failures are returned.
func (g *GitHub) FetchFile(ctx context.Context, ref, path string) (string, bool, error) {
	owner, name, err := ParseGitHubRef(ref)
	if err != nil {
		return "", false, retry.Fatal(err)
	}

	g.mu.RLock()
	branch := g.branches[owner+"/"+name]
	g.mu.RUnlock()

	var opts *github.RepositoryContentGetOptions
	if branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: branch}
	}

	file, _, _, err := g.api().Repositories.GetContents(ctx, owner, name, path, opts)
	if err != nil {
		g.observe("file", false)
		classified := classify(ctx, ref+"/"+path, err)
		switch {
		case ctx.Err() != nil:
			return "", false, ctx.Err()
		case stderrors.Is(classified, errors.ErrUnauthorized), stderrors.Is(classified, errors.ErrRateLimited):
			return "", false, classified
		case stderrors.Is(classified, errors.ErrNotFound):
			g.logger.Warn("file not found, skipping", "ref", ref, "path", path)
		default:
			g.logger.WithError(err).Warn("file fetch failed, skipping", "ref", ref, "path", path)
		}
		return "", false, nil
	}
	g.observe("file", true)

	if file == nil {
		g.logger.Warn("path is a directory, skipping", "ref", ref, "path", path)
		return "", false, nil
	}
	content, err := file.GetContent()
	if err != nil {
		g.logger.WithError(err).Warn("file content undecodable, skipping", "ref", ref, "path", path)
		return "", false, nil
	}
	return content, true, nil
}

func (g *GitHub) observe(operation string, success bool) {
	g.metrics.SourceRequests.WithLabelValues(g.Name(), operation, fmt.Sprint(success)).Inc()
}

// classify maps GitHub API failures onto source error kinds and retry classes.
func classify(ctx context.Context, ref string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var rateErr *github.RateLimitError
	if stderrors.As(err, &rateErr) {
		return retry.Fatal(errors.NewSourceRateLimitedError(ref))
	}
	var abuseErr *github.AbuseRateLimitError
	if stderrors.As(err, &abuseErr) {
		return retry.Fatal(errors.NewSourceRateLimitedError(ref))
	}

	var respErr *github.ErrorResponse
	if stderrors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return retry.Fatal(errors.NewSourceUnauthorizedError(ref))
		case code == http.StatusForbidden:
			return retry.Fatal(errors.NewSourceRateLimitedError(ref))
		case code == http.StatusNotFound:
			return retry.Fatal(errors.NewSourceNotFoundError(ref))
		case code >= http.StatusInternalServerError:
			return retry.Transient(errors.Wrap(errors.ErrCodeSourceAPI, fmt.Sprintf("GitHub API error (status %d)", code), err))
		default:
			return retry.Fatal(errors.Wrap(errors.ErrCodeSourceAPI, fmt.Sprintf("GitHub API error (status %d)", code), err))
		}
	}

	return retry.Transient(errors.Wrap(errors.ErrCodeSourceAPI, "GitHub request failed", err))
}
