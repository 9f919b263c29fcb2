package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinsantoro/warframesync/content"
	"github.com/justinsantoro/warframesync/git"
	"github.com/justinsantoro/warframesync/git/gittest"
	"github.com/justinsantoro/warframesync/workflow"
	"github.com/justinsantoro/warframesync/workspace"
)

const eventFile = "content/balor-fomorian-event.md"

type eventPlace struct {
	Platform string `yaml:"platform"`
	Place    string `yaml:"place"`
}

type balor struct {
	places []eventPlace
}

func (balor) Name() string { return "balor" }

func (b balor) Produce(context.Context, workspace.ExecutionContext) ([]content.Intent, error) {
	return []content.Intent{{
		Target:  content.Target{Category: "content", Subfolder: "content", Filename: "balor-fomorian-event.md"},
		Payload: map[string]any{"eventPlace": b.places},
	}}, nil
}

type stack struct {
	desc    workspace.Descriptor
	layout  workspace.Layout
	backend *git.Backend
	gate    *content.Gate
	flow    *workflow.Workflow
}

func newStack(t *testing.T) *stack {
	t.Helper()
	remote := gittest.NewRemote(t, "develop", map[string]string{
		eventFile: "---\neventPlace: []\ntitle: Balor Fomorian\n---\nBalor guide.\n",
	})
	s := &stack{
		desc:   workspace.Descriptor{URL: remote, Directory: "blog", Branch: "develop"},
		layout: workspace.Layout{BaseDir: t.TempDir(), ReposRoot: "repos"},
	}
	s.backend = git.NewBackend(s.layout, git.Options{}, nil)
	s.gate = content.NewGate(s.layout, nil, nil)
	s.flow = workflow.New(s.backend, workflow.Options{}, nil)
	return s
}

func (s *stack) dirty(t *testing.T) bool {
	t.Helper()
	dirty, err := s.backend.HasUncommittedChanges(context.Background(), s.desc)
	require.NoError(t, err)
	return dirty
}

func TestFirstRunClonesAndPublishes(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	larunda := balor{places: []eventPlace{{Platform: "PC", Place: "Larunda"}}}

	exists, err := s.layout.Exists(s.desc)
	require.NoError(t, err)
	require.False(t, exists)
	before := gittest.Head(t, s.desc.URL, "develop").Hash

	published, err := s.flow.Run(ctx, s.desc, content.Task(s.gate, larunda))
	require.NoError(t, err)
	assert.True(t, published)
	assert.False(t, s.dirty(t))

	pushed := gittest.Head(t, s.desc.URL, "develop")
	assert.NotEqual(t, before, pushed.Hash)
	doc, err := content.ParseDocument([]byte(gittest.ReadFile(t, s.desc.URL, "develop", eventFile)))
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"platform": "PC", "place": "Larunda"}}, doc.Meta["eventPlace"])
	assert.Contains(t, doc.Meta, content.DateKey)
	assert.Equal(t, "Balor guide.\n", string(doc.Body))

	//the same data a moment later changes nothing
	published, err = s.flow.Run(ctx, s.desc, content.Task(s.gate, larunda))
	require.NoError(t, err)
	assert.False(t, published)
	assert.Equal(t, pushed.Hash, gittest.Head(t, s.desc.URL, "develop").Hash)
	assert.False(t, s.dirty(t))
}

func TestFailedTaskRollsBack(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	boom := errors.New("source unavailable")
	before := gittest.Head(t, s.desc.URL, "develop").Hash

	task := func(ctx context.Context, ec workspace.ExecutionContext) error {
		path := s.layout.ContentPath(ec.Repository, "content", "", "balor-fomorian-event.md")
		if err := os.WriteFile(path, []byte("half written"), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.layout.RepoPath(ec.Repository), "stray.txt"), []byte("x"), 0o644); err != nil {
			return err
		}
		return boom
	}

	published, err := s.flow.Run(ctx, s.desc, task)
	assert.False(t, published)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.dirty(t))
	assert.NoFileExists(t, filepath.Join(s.layout.RepoPath(s.desc), "stray.txt"))
	assert.Equal(t, before, gittest.Head(t, s.desc.URL, "develop").Hash)
}

func TestRunPicksUpUpstreamChanges(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	larunda := balor{places: []eventPlace{{Platform: "PC", Place: "Larunda"}}}

	_, err := s.flow.Run(ctx, s.desc, content.Task(s.gate, larunda))
	require.NoError(t, err)

	//someone else pushes; the next run must build on top of it
	gittest.PushUpstream(t, s.desc.URL, "develop", map[string]string{
		"content/other.md": "other\n",
	})
	exodus := balor{places: []eventPlace{{Platform: "PC", Place: "Exodus"}}}
	published, err := s.flow.Run(ctx, s.desc, content.Task(s.gate, exodus))
	require.NoError(t, err)
	assert.True(t, published)
	assert.Equal(t, "other\n", gittest.ReadFile(t, s.desc.URL, "develop", "content/other.md"))
	assert.Contains(t, gittest.ReadFile(t, s.desc.URL, "develop", eventFile), "Exodus")
}
