package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/retry"
)

func TestParseGitHubRef(t *testing.T) {
	tests := []struct {
		ref   string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/bezkoder/angular-11-crud-app", "bezkoder", "angular-11-crud-app", true},
		{"https://github.com/acme/app.git", "acme", "app", true},
		{"github.com/acme/app/", "acme", "app", true},
		{"acme/app", "acme", "app", true},
		{"https://github.com/acme", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			owner, repo, err := ParseGitHubRef(tt.ref)
			if !tt.ok {
				require.Error(t, err)
				code, _ := errors.CodeOf(err)
				assert.Equal(t, errors.ErrCodeSourceInvalidRef, code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func contentJSON(content string) string {
	return fmt.Sprintf(`{"type":"file","encoding":"base64","content":%q}`,
		base64.StdEncoding.EncodeToString([]byte(content)))
}

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"app","default_branch":"develop"}`)
	})
	mux.HandleFunc("/repos/acme/app/git/trees/develop", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha":"abc","truncated":false,"tree":[
			{"path":"package.json","type":"blob"},
			{"path":"src","type":"tree"},
			{"path":"src/main.ts","type":"blob"},
			{"path":"src/app/app.component.spec.ts","type":"blob"},
			{"path":"README.md","type":"blob"}
		]}`)
	})
	mux.HandleFunc("/repos/acme/app/contents/package.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "develop", r.URL.Query().Get("ref"))
		fmt.Fprint(w, contentJSON(`{"name":"app"}`))
	})
	mux.HandleFunc("/repos/acme/app/contents/src/missing.ts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	mux.HandleFunc("/repos/acme/app/contents/src/broken.ts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message":"bad gateway"}`)
	})
	mux.HandleFunc("/repos/acme/app/contents/src/secret.ts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGitHubListAndFetch(t *testing.T) {
	server := newGitHubServer(t)
	_, m := metrics.NewRegistry()
	gh := NewGitHub(WithBaseURL(server.URL), WithSourceMetrics(m), WithSourceLogger(log.Discard()))
	ctx := context.Background()

	paths, err := gh.ListFiles(ctx, "https://github.com/acme/app")
	require.NoError(t, err)
	assert.Equal(t, []string{"package.json", "src/main.ts"}, paths)

	content, ok, err := gh.FetchFile(ctx, "acme/app", "package.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"name":"app"}`, content)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRequests.WithLabelValues("github", "tree", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceRequests.WithLabelValues("github", "file", "true")))
}

func TestGitHubFetchSkipsMissingAndBrokenFiles(t *testing.T) {
	server := newGitHubServer(t)
	gh := NewGitHub(WithBaseURL(server.URL), WithSourceLogger(log.Discard()))

	for _, path := range []string{"src/missing.ts", "src/broken.ts"} {
		content, ok, err := gh.FetchFile(context.Background(), "acme/app", path)
		require.NoError(t, err, path)
		assert.False(t, ok, path)
		assert.Empty(t, content, path)
	}
}

func TestGitHubFetchUnauthorizedFails(t *testing.T) {
	server := newGitHubServer(t)
	gh := NewGitHub(WithBaseURL(server.URL), WithSourceLogger(log.Discard()))

	_, _, err := gh.FetchFile(context.Background(), "acme/app", "src/secret.ts")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestGitHubListErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  error
		transient bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: errors.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantKind: errors.ErrRateLimited},
		{name: "not found", status: http.StatusNotFound, wantKind: errors.ErrNotFound},
		{name: "server error", status: http.StatusInternalServerError, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			}))
			defer server.Close()

			gh := NewGitHub(WithBaseURL(server.URL), WithSourceLogger(log.Discard()))
			_, err := gh.ListFiles(context.Background(), "acme/app")
			require.Error(t, err)
			if tt.wantKind != nil {
				assert.ErrorIs(t, err, tt.wantKind)
			}
			assert.Equal(t, tt.transient, retry.IsTransient(err))
		})
	}
}

func TestGitHubSetCredentials(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	}))
	defer server.Close()

	gh := NewGitHub(WithBaseURL(server.URL), WithSourceLogger(log.Discard()))
	_, _ = gh.ListFiles(context.Background(), "acme/app")
	assert.Empty(t, auth)

	gh.SetCredentials(" ghp_token ")
	_, _ = gh.ListFiles(context.Background(), "acme/app")
	assert.Equal(t, "Bearer ghp_token", auth)
}

func TestGitHubInvalidRef(t *testing.T) {
	gh := NewGitHub(WithSourceLogger(log.Discard()))
	_, err := gh.ListFiles(context.Background(), "not a repo")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
}
