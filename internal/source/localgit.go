package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/retry"
)

// LocalGit reads the HEAD commit of a repository on disk. The ref is the
// repository path; uncommitted changes are not seen.
type LocalGit struct {
	filter  Filter
	metrics *metrics.Metrics
}

// NewLocalGit creates a local repository provider
func NewLocalGit(filter Filter, m *metrics.Metrics) *LocalGit {
	if m == nil {
		m = metrics.Nop()
	}
	return &LocalGit{filter: filter, metrics: m}
}

// Name implements Provider.
func (l *LocalGit) Name() string { return "git" }

func (l *LocalGit) headTree(ref string) (*object.Tree, error) {
	repo, err := git.PlainOpenWithOptions(ref, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return nil, retry.Fatal(errors.NewSourceNotFoundError(ref))
		}
		return nil, retry.Fatal(errors.Wrap(errors.ErrCodeSourceAPI, fmt.Sprintf("open repository %s", ref), err))
	}

	head, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, retry.Fatal(errors.Wrap(errors.ErrCodeSourceAPI, "resolve HEAD", err))
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, retry.Fatal(errors.Wrap(errors.ErrCodeSourceAPI, "read HEAD commit", err))
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, retry.Fatal(errors.Wrap(errors.ErrCodeSourceAPI, "read HEAD tree", err))
	}
	return tree, nil
}

// ListFiles implements Provider. A repository without commits lists no files.
func (l *LocalGit) ListFiles(ctx context.Context, ref string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := l.headTree(ref)
	if err != nil {
		l.observe("tree", false)
		return nil, err
	}
	l.observe("tree", true)
	if tree == nil {
		return []string{}, nil
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return l.filter.Apply(paths), nil
}

// FetchFile implements Provider.
func (l *LocalGit) FetchFile(ctx context.Context, ref, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	tree, err := l.headTree(ref)
	if err != nil || tree == nil {
		l.observe("file", false)
		return "", false, err
	}

	f, err := tree.File(path)
	if err != nil {
		l.observe("file", false)
		return "", false, nil
	}
	content, err := f.Contents()
	if err != nil {
		l.observe("file", false)
		return "", false, nil
	}
	l.observe("file", true)
	return content, true, nil
}

func (l *LocalGit) observe(operation string, success bool) {
	l.metrics.SourceRequests.WithLabelValues(l.Name(), operation, fmt.Sprint(success)).Inc()
}
