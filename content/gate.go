package content

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/justinsantoro/warframesync/workspace"
)

//DateKey is the front-matter field bumped whenever a file's data changes
const DateKey = "date"

//Target locates a content file inside a repository's working tree
type Target struct {
	Category  string
	Subfolder string
	Filename  string
}

//Intent asks for the front-matter fields in Payload to be written to Target
type Intent struct {
	Target  Target
	Payload map[string]any
}

type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

//Gate writes an intent to disk only when it changes the file's front-matter
type Gate struct {
	layout workspace.Layout
	now    func() time.Time
	log    *zap.SugaredLogger
}

//NewGate returns a Gate resolving files with layout. A nil now defaults to
//time.Now.
func NewGate(layout workspace.Layout, now func() time.Time, log *zap.SugaredLogger) *Gate {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{layout: layout, now: now, log: log}
}

//Path returns the file in in's target for the repository of ec
func (g *Gate) Path(ec workspace.ExecutionContext, in Intent) string {
	t := in.Target
	return g.layout.ContentPath(ec.Repository, t.Category, t.Subfolder, t.Filename)
}

//Apply merges in.Payload into the file's front-matter. The file is rewritten,
//with its date field set to the current time, only when at least one field
//changes. It reports whether a write happened. The file must already exist.
func (g *Gate) Apply(ec workspace.ExecutionContext, in Intent) (bool, error) {
	path := g.Path(ec, in)
	b, err := os.ReadFile(path)
	if err != nil {
		return false, g.readFailed(path, err)
	}
	doc, err := ParseDocument(b)
	if err != nil {
		return false, g.readFailed(path, err)
	}
	payload, err := normalize(in.Payload)
	if err != nil {
		return false, g.readFailed(path, fmt.Errorf("payload: %w", err))
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []string
	for _, k := range keys {
		if old, ok := doc.Meta[k]; !ok || !cmp.Equal(old, payload[k]) {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		g.log.Debugw("content unchanged", "path", path)
		return false, nil
	}
	for _, k := range changed {
		if err := doc.Set(k, payload[k]); err != nil {
			return false, g.writeFailed(path, err)
		}
	}
	if err := doc.Set(DateKey, g.now().UTC()); err != nil {
		return false, g.writeFailed(path, err)
	}

	out, err := doc.Bytes()
	if err != nil {
		return false, g.writeFailed(path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return false, g.writeFailed(path, err)
	}
	g.log.Infow("content updated", "path", path, "fields", changed)
	return true, nil
}

func (g *Gate) readFailed(path string, err error) error {
	g.log.Errorw("cannot read content file", "path", path, "error", err)
	return &ReadError{Path: path, Err: err}
}

func (g *Gate) writeFailed(path string, err error) error {
	g.log.Errorw("cannot write content file", "path", path, "error", err)
	return &WriteError{Path: path, Err: err}
}

//normalize round-trips p through YAML so its values have the same shapes
//as values decoded from a file
func normalize(p map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(p) == 0 {
		return out, nil
	}
	b, err := yaml.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
