// Package gittest builds throwaway git remotes for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var signature = object.Signature{Name: "Test", Email: "test@example.com"}

//NewRemote creates a bare repository whose branch holds files in a single
//commit. HEAD of the bare repository points at branch. It returns the bare
//repository path, usable as a clone URL.
func NewRemote(t *testing.T, branch string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	bare := filepath.Join(dir, "remote.git")
	br, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	work := filepath.Join(dir, "seed")
	r, err := git.PlainInit(work, false)
	require.NoError(t, err)
	_, err = r.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)

	hash := commitFiles(t, r, work, files, "initial commit")
	name := plumbing.NewBranchReferenceName(branch)
	require.NoError(t, r.Storer.SetReference(plumbing.NewHashReference(name, hash)))
	require.NoError(t, r.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(name + ":" + name)},
	}))
	require.NoError(t, br.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, name)))
	return bare
}

//PushUpstream commits files on top of branch in remote from a separate
//clone, simulating a change made by someone else.
func PushUpstream(t *testing.T, remote, branch string, files map[string]string) plumbing.Hash {
	t.Helper()
	work := filepath.Join(t.TempDir(), "upstream")
	name := plumbing.NewBranchReferenceName(branch)
	r, err := git.PlainClone(work, false, &git.CloneOptions{URL: remote, ReferenceName: name})
	require.NoError(t, err)

	hash := commitFiles(t, r, work, files, "upstream change")
	require.NoError(t, r.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(name + ":" + name)},
	}))
	return hash
}

//Head returns the commit branch points to in the repository at path
func Head(t *testing.T, path, branch string) *object.Commit {
	t.Helper()
	r, err := git.PlainOpen(path)
	require.NoError(t, err)
	ref, err := r.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	c, err := r.CommitObject(ref.Hash())
	require.NoError(t, err)
	return c
}

//ReadFile returns the content of file as committed on branch in the
//repository at path
func ReadFile(t *testing.T, path, branch, file string) string {
	t.Helper()
	f, err := Head(t, path, branch).File(file)
	require.NoError(t, err)
	s, err := f.Contents()
	require.NoError(t, err)
	return s
}

func commitFiles(t *testing.T, r *git.Repository, work string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	wt, err := r.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		p := filepath.Join(work, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	sig := signature
	sig.When = time.Now()
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: &sig, Committer: &sig, AllowEmptyCommits: true})
	require.NoError(t, err)
	return hash
}
