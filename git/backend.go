package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/justinsantoro/warframesync/workspace"
)

const (
	DefaultAuthorName  = "Clem"
	DefaultAuthorEmail = "clem@warframeblog.com"
	DefaultTimeout     = 2 * time.Minute

	//tokenPassword is the password paired with a token for basic auth
	tokenPassword = "x-oauth-basic"
)

//Options configures a Backend. The trust decisions for the remote (token
//and certificate validation) are made here and nowhere else.
type Options struct {
	//Token is sent as the basic auth username. Empty means anonymous.
	Token string
	//InsecureSkipTLS disables certificate validation for clone, fetch and push
	InsecureSkipTLS bool
	AuthorName      string
	AuthorEmail     string
	//Timeout bounds every network operation
	Timeout time.Duration
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.AuthorName == "" {
		o.AuthorName = DefaultAuthorName
	}
	if o.AuthorEmail == "" {
		o.AuthorEmail = DefaultAuthorEmail
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

//Backend performs the version control primitives on the working trees laid
//out by a workspace.Layout. It applies no policy of its own.
type Backend struct {
	layout workspace.Layout
	opts   Options
	remote Remote
	log    *zap.SugaredLogger
}

//NewBackend returns a new Backend
func NewBackend(layout workspace.Layout, opts Options, log *zap.SugaredLogger) *Backend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts = opts.withDefaults()
	remote := Remote{InsecureSkipTLS: opts.InsecureSkipTLS}
	if opts.Token != "" {
		remote.Auth = &githttp.BasicAuth{Username: opts.Token, Password: tokenPassword}
	}
	if opts.InsecureSkipTLS {
		log.Warnw("TLS certificate validation is disabled for git remotes")
	}
	return &Backend{layout: layout, opts: opts, remote: remote, log: log}
}

func (b *Backend) fail(op Op, d workspace.Descriptor, err error) error {
	path := b.layout.RepoPath(d)
	b.log.Errorw("git operation failed", "op", op, "path", path, "url", d.URL, "branch", d.Branch, "error", err)
	return &Error{Op: op, Path: path, Err: err}
}

func (b *Backend) open(op Op, d workspace.Descriptor) (*Repository, error) {
	r, err := Open(b.layout.RepoPath(d))
	if err != nil {
		return nil, b.fail(op, d, fmt.Errorf("open: %w", err))
	}
	return r, nil
}

//EnsureCloned clones d when its working tree path is absent. It reports
//whether a clone happened.
func (b *Backend) EnsureCloned(ctx context.Context, d workspace.Descriptor) (bool, error) {
	ok, err := b.layout.Exists(d)
	if err != nil {
		return false, b.fail(OpClone, d, err)
	}
	if ok {
		return false, nil
	}
	path := b.layout.RepoPath(d)
	b.log.Infow("cloning repository", "url", d.URL, "path", path, "branch", d.Branch)

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	if _, err := Clone(ctx, path, d.URL, d.Branch, b.remote); err != nil {
		return false, b.fail(OpClone, d, err)
	}
	return true, nil
}

//ResetToUpstream discards every local modification and untracked file, then
//brings d.Branch to origin/d.Branch. A branch that diverged from origin is
//moved back onto it.
func (b *Backend) ResetToUpstream(ctx context.Context, d workspace.Descriptor) error {
	r, err := b.open(OpCheckout, d)
	if err != nil {
		return err
	}
	if err := ResetHeadHard(r); err != nil {
		return b.fail(OpCheckout, d, fmt.Errorf("reset: %w", err))
	}
	if err := CleanDir(r); err != nil {
		return b.fail(OpCheckout, d, fmt.Errorf("clean: %w", err))
	}

	fctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	if err := FetchContext(fctx, r, b.remote); err != nil {
		return b.fail(OpFetchMerge, d, fmt.Errorf("fetch: %w", err))
	}
	upstream, err := RemoteBranch(r, d.Branch)
	if err != nil {
		return b.fail(OpFetchMerge, d, fmt.Errorf("upstream %s/%s: %w", remoteOrigin, d.Branch, err))
	}
	if err := CheckoutBranch(r, d.Branch, upstream.Hash()); err != nil {
		return b.fail(OpFetchMerge, d, fmt.Errorf("checkout %s: %w", d.Branch, err))
	}
	ff, err := MergeFastForward(r, upstream)
	if err != nil {
		return b.fail(OpFetchMerge, d, fmt.Errorf("merge %s: %w", upstream.Name(), err))
	}
	if !ff {
		b.log.Warnw("branch diverged from upstream, discarding local commits",
			"path", b.layout.RepoPath(d), "branch", d.Branch, "upstream", upstream.Hash().String())
	}
	//the merge only moves the branch; the worktree follows here
	if err := Reset(r, upstream.Hash(), true); err != nil {
		return b.fail(OpFetchMerge, d, fmt.Errorf("reset to %s: %w", upstream.Hash(), err))
	}
	return nil
}

//HasUncommittedChanges reports whether the working tree of d is dirty
func (b *Backend) HasUncommittedChanges(_ context.Context, d workspace.Descriptor) (bool, error) {
	r, err := b.open(OpStatus, d)
	if err != nil {
		return false, err
	}
	clean, err := IsClean(r)
	if err != nil {
		return false, b.fail(OpStatus, d, err)
	}
	return !clean, nil
}

//CommitAndPush stages everything, commits it on d.Branch and pushes the
//branch to origin. It returns the new commit hash.
func (b *Backend) CommitAndPush(ctx context.Context, d workspace.Descriptor) (plumbing.Hash, error) {
	r, err := b.open(OpCommit, d)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := AddAll(r); err != nil {
		return plumbing.ZeroHash, b.fail(OpCommit, d, fmt.Errorf("add: %w", err))
	}
	now := b.opts.Now()
	sig := &object.Signature{Name: b.opts.AuthorName, Email: b.opts.AuthorEmail, When: now}
	hash, err := Commit(r, fmt.Sprintf("Update data: %d", now.UnixMilli()), sig)
	if err != nil {
		return plumbing.ZeroHash, b.fail(OpCommit, d, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	if err := PushContext(ctx, r, d.Branch, b.remote); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("push timed out after %s: %w", b.opts.Timeout, err)
		}
		return hash, b.fail(OpPush, d, err)
	}
	b.log.Infow("pushed changes", "url", d.URL, "branch", d.Branch, "commit", hash.String())
	return hash, nil
}
