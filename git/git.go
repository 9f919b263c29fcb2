package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

const remoteOrigin = "origin"

//Remote holds the credentials and TLS policy used when talking to origin
type Remote struct {
	Auth            transport.AuthMethod
	InsecureSkipTLS bool
}

type Repository struct {
	*git.Repository
}

//Open opens the git repository at path
func Open(path string) (*Repository, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return &Repository{r}, nil
}

//Clone clones url into path with branch checked out
func Clone(ctx context.Context, path, url, branch string, remote Remote) (*Repository, error) {
	r, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:             url,
		RemoteName:      remoteOrigin,
		ReferenceName:   plumbing.NewBranchReferenceName(branch),
		Auth:            remote.Auth,
		InsecureSkipTLS: remote.InsecureSkipTLS,
	})
	if err != nil {
		return nil, err
	}
	return &Repository{r}, nil
}

//Reset git resets to the given hash
func Reset(r *Repository, hash plumbing.Hash, hard bool) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	mode := git.MixedReset
	if hard {
		mode = git.HardReset
	}
	return wt.Reset(&git.ResetOptions{
		Commit: hash,
		Mode:   mode,
	})
}

//ResetHeadHard git resets to the head commit with the --hard flag
func ResetHeadHard(r *Repository) error {
	h, err := r.Head()
	if err != nil {
		return err
	}
	return Reset(r, h.Hash(), true)
}

//CleanDir git cleans all untracked files with the -d option
func CleanDir(r *Repository) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	return wt.Clean(&git.CleanOptions{Dir: true})
}

//FetchContext fetches every branch of origin into refs/remotes/origin
func FetchContext(ctx context.Context, r *Repository, remote Remote) error {
	err := r.FetchContext(ctx, &git.FetchOptions{
		RemoteName:      remoteOrigin,
		RefSpecs:        []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:            remote.Auth,
		InsecureSkipTLS: remote.InsecureSkipTLS,
		Force:           true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

//RemoteBranch returns the origin tracking reference of branch
func RemoteBranch(r *Repository, branch string) (*plumbing.Reference, error) {
	return r.Reference(plumbing.NewRemoteReferenceName(remoteOrigin, branch), true)
}

//CheckoutBranch force checks out branch, creating it at from when it does
//not exist locally yet
func CheckoutBranch(r *Repository, branch string, from plumbing.Hash) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	name := plumbing.NewBranchReferenceName(branch)
	err = wt.Checkout(&git.CheckoutOptions{Branch: name, Force: true})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return wt.Checkout(&git.CheckoutOptions{Branch: name, Hash: from, Create: true, Force: true})
	}
	return err
}

//MergeFastForward fast-forwards the current branch to ref. It returns false
//when the branches have diverged.
func MergeFastForward(r *Repository, ref *plumbing.Reference) (bool, error) {
	err := r.Merge(*ref, git.MergeOptions{Strategy: git.FastForwardMerge})
	if errors.Is(err, git.ErrFastForwardMergeNotPossible) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

//IsClean reports whether the worktree has no modified, staged or untracked
//entries
func IsClean(r *Repository) (bool, error) {
	wt, err := r.Worktree()
	if err != nil {
		return false, err
	}
	st, err := wt.Status()
	if err != nil {
		return false, err
	}
	return st.IsClean(), nil
}

//AddAll git adds all changes
func AddAll(r *Repository) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	return wt.AddWithOptions(&git.AddOptions{All: true})
}

//Commit commits the index on top of the current HEAD, which becomes the
//sole parent
func Commit(r *Repository, msg string, sig *object.Signature) (plumbing.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	wt, err := r.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return wt.Commit(msg, &git.CommitOptions{
		All:       true,
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{head.Hash()},
	})
}

//PushContext pushes branch to the same branch on origin. A rejected
//reference update is returned as an error.
func PushContext(ctx context.Context, r *Repository, branch string, remote Remote) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := r.PushContext(ctx, &git.PushOptions{
		RemoteName:      remoteOrigin,
		RefSpecs:        []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:            remote.Auth,
		InsecureSkipTLS: remote.InsecureSkipTLS,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}
