package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinsantoro/warframesync/workspace"
)

type place struct {
	Platform string `yaml:"platform"`
	Place    string `yaml:"place"`
}

const balorFile = "---\ndate: 2019-06-01T10:00:00Z\neventPlace: []\ntitle: Balor Fomorian\n---\nBody.\n"

type fixture struct {
	gate *Gate
	ec   workspace.ExecutionContext
	path string
	now  time.Time
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	layout := workspace.Layout{BaseDir: t.TempDir(), ReposRoot: "repos"}
	ec := workspace.ExecutionContext{Repository: workspace.Descriptor{URL: "https://example/repo.git", Directory: "blog", Branch: "develop"}}
	f := &fixture{ec: ec, now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.gate = NewGate(layout, func() time.Time { return f.now }, nil)
	f.path = layout.ContentPath(ec.Repository, "content", "", "balor-fomorian-event.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(f.path), 0o755))
	require.NoError(t, os.WriteFile(f.path, []byte(body), 0o644))
	return f
}

func balorIntent(payload map[string]any) Intent {
	return Intent{
		Target:  Target{Category: "content", Subfolder: "content", Filename: "balor-fomorian-event.md"},
		Payload: payload,
	}
}

func (f *fixture) read(t *testing.T) *Document {
	t.Helper()
	b, err := os.ReadFile(f.path)
	require.NoError(t, err)
	doc, err := ParseDocument(b)
	require.NoError(t, err)
	return doc
}

func TestApplyChangedPayload(t *testing.T) {
	f := newFixture(t, balorFile)

	applied, err := f.gate.Apply(f.ec, balorIntent(map[string]any{
		"eventPlace": []place{{Platform: "PC", Place: "Larunda"}},
	}))
	require.NoError(t, err)
	assert.True(t, applied)

	doc := f.read(t)
	assert.Equal(t, []any{map[string]any{"platform": "PC", "place": "Larunda"}}, doc.Meta["eventPlace"])
	assert.Equal(t, "Balor Fomorian", doc.Meta["title"])
	assert.Equal(t, "Body.\n", string(doc.Body))

	before, err := time.Parse(time.RFC3339Nano, "2019-06-01T10:00:00Z")
	require.NoError(t, err)
	after, err := time.Parse(time.RFC3339Nano, doc.Meta[DateKey].(string))
	require.NoError(t, err)
	assert.True(t, after.After(before), "date must move forward")
	assert.True(t, after.Equal(f.now))
}

func TestApplyIdenticalPayloadIsNoop(t *testing.T) {
	f := newFixture(t, balorFile)
	payload := map[string]any{"eventPlace": []place{{Platform: "PC", Place: "Larunda"}}}

	applied, err := f.gate.Apply(f.ec, balorIntent(payload))
	require.NoError(t, err)
	require.True(t, applied)
	written, err := os.ReadFile(f.path)
	require.NoError(t, err)
	stat, err := os.Stat(f.path)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	applied, err = f.gate.Apply(f.ec, balorIntent(payload))
	require.NoError(t, err)
	assert.False(t, applied)

	again, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, written, again, "no write and no date bump")
	restat, err := os.Stat(f.path)
	require.NoError(t, err)
	assert.Equal(t, stat.ModTime(), restat.ModTime())
}

func TestApplyEmptyPayloadIsNoop(t *testing.T) {
	f := newFixture(t, balorFile)

	for _, payload := range []map[string]any{nil, {}} {
		applied, err := f.gate.Apply(f.ec, balorIntent(payload))
		require.NoError(t, err)
		assert.False(t, applied)
	}
	got, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, balorFile, string(got))
}

func TestApplyEqualValuesOfDifferentGoTypes(t *testing.T) {
	f := newFixture(t, "---\ncount: 3\neventPlace:\n  - place: Larunda\n    platform: PC\n---\n")

	applied, err := f.gate.Apply(f.ec, balorIntent(map[string]any{
		"count":      3,
		"eventPlace": []map[string]string{{"platform": "PC", "place": "Larunda"}},
	}))
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyNewField(t *testing.T) {
	f := newFixture(t, balorFile)

	applied, err := f.gate.Apply(f.ec, balorIntent(map[string]any{"availableOn": []any{}}))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []any{}, f.read(t).Meta["availableOn"])
}

func TestApplyMissingFile(t *testing.T) {
	f := newFixture(t, balorFile)
	in := balorIntent(map[string]any{"eventPlace": []any{}})
	in.Target.Filename = "missing.md"

	_, err := f.gate.Apply(f.ec, in)
	var rerr *ReadError
	require.True(t, errors.As(err, &rerr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoFileExists(t, rerr.Path, "the gate never creates files")
}

func TestApplyReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	f := newFixture(t, balorFile)
	require.NoError(t, os.Chmod(f.path, 0o444))

	_, err := f.gate.Apply(f.ec, balorIntent(map[string]any{"eventPlace": []any{"x"}}))
	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, f.path, werr.Path)
}

type staticProducer struct {
	name    string
	intents []Intent
	err     error
}

func (p staticProducer) Name() string { return p.name }

func (p staticProducer) Produce(context.Context, workspace.ExecutionContext) ([]Intent, error) {
	return p.intents, p.err
}

func TestTask(t *testing.T) {
	f := newFixture(t, balorFile)
	task := Task(f.gate,
		staticProducer{name: "balor", intents: []Intent{balorIntent(map[string]any{"eventPlace": []any{"PC"}})}},
		staticProducer{name: "empty"},
	)

	require.NoError(t, task(context.Background(), f.ec))
	assert.Equal(t, []any{"PC"}, f.read(t).Meta["eventPlace"])
}

func TestTaskProducerError(t *testing.T) {
	f := newFixture(t, balorFile)
	boom := errors.New("boom")
	task := Task(f.gate,
		staticProducer{name: "balor", intents: []Intent{balorIntent(map[string]any{"eventPlace": []any{"PC"}})}},
		staticProducer{name: "broken", err: boom},
	)

	err := task(context.Background(), f.ec)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")

	got, rerr := os.ReadFile(f.path)
	require.NoError(t, rerr)
	assert.Equal(t, balorFile, string(got), "no intent is applied when a producer fails")
}

func TestApplyRewritesOnlyChangedKeys(t *testing.T) {
	f := newFixture(t, "---\n# balor page\ntitle: Balor Fomorian\nweight: 10\neventPlace: []\ndate: 2019-06-01T10:00:00Z\n---\nBody.\n")

	applied, err := f.gate.Apply(f.ec, balorIntent(map[string]any{
		"eventPlace": []place{{Platform: "PC", Place: "Larunda"}},
	}))
	require.NoError(t, err)
	require.True(t, applied)

	b, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "---\n# balor page\ntitle: Balor Fomorian\nweight: 10\neventPlace:\n"), string(b))
	assert.Contains(t, string(b), "date: 2024-03-01T12:00:00Z\n---\nBody.\n")
}
