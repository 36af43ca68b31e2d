// Package gitsource fetches a git-hosted directory of unit definitions
// before handing them to a nested loader.Loader, adapted from the
// teacher's internal/git.Repository clone/pull-then-checkout sequence.
// Parsing the fetched files into UnitDesc values is left to Inner: this
// package only owns "get the bytes onto local disk".
package gitsource

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/trly/unitd/internal/loader"
)

// Loader clones (or pulls) URL into Path at Reference, then delegates to
// Inner to turn the checked-out tree into Load/Update calls.
type Loader struct {
	URL       string
	Reference string
	Path      string
	Inner     loader.Loader

	repo *git.Repository
}

// New builds a git-backed Loader. inner is re-synced against target
// after every successful fetch.
func New(url, reference, path string, inner loader.Loader) *Loader {
	return &Loader{URL: url, Reference: reference, Path: path, Inner: inner}
}

// Sync implements loader.Loader: clone-or-pull, checkout Reference if
// set, then run Inner.Sync against the now-current working tree.
func (l *Loader) Sync(ctx context.Context, target loader.Target) error {
	if err := l.fetch(ctx); err != nil {
		return fmt.Errorf("gitsource: fetching %s: %w", l.URL, err)
	}
	if l.Inner == nil {
		return fmt.Errorf("gitsource: no inner loader configured to parse %s", l.Path)
	}
	return l.Inner.Sync(ctx, target)
}

func (l *Loader) fetch(ctx context.Context) error {
	repo, err := git.PlainCloneContext(ctx, l.Path, false, &git.CloneOptions{URL: l.URL})
	if err != nil {
		if err == git.ErrRepositoryAlreadyExists {
			repo, err = git.PlainOpen(l.Path)
			if err != nil {
				return err
			}
			l.repo = repo
			if err := l.pullLatest(ctx); err != nil {
				return err
			}
		} else {
			return err
		}
	} else {
		l.repo = repo
	}

	if l.Reference != "" {
		return l.checkout()
	}
	return nil
}

func (l *Loader) pullLatest(ctx context.Context) error {
	worktree, err := l.repo.Worktree()
	if err != nil {
		return err
	}
	if err := worktree.PullContext(ctx, &git.PullOptions{}); err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}

func (l *Loader) checkout() error {
	hash, err := l.repo.ResolveRevision(plumbing.Revision(l.Reference))
	if err != nil {
		return fmt.Errorf("reference %q not found: %w", l.Reference, err)
	}
	worktree, err := l.repo.Worktree()
	if err != nil {
		return err
	}
	return worktree.Checkout(&git.CheckoutOptions{Hash: *hash})
}
