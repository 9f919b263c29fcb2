// Package content reads and rewrites front-matter content files and decides
// whether freshly produced data is worth writing.
package content

import (
	"bytes"
	"errors"
	"sort"

	"gopkg.in/yaml.v3"
)

var delimiter = []byte("---")

//Document is a content file: a YAML front-matter mapping followed by a
//free-form body. Meta is decoded from the front-matter; change it with Set
//so that the rest of the front-matter keeps its order and comments.
type Document struct {
	Meta map[string]any
	Body []byte

	root *yaml.Node
}

//ParseDocument splits b into its front-matter and body. Content without a
//leading front-matter block parses to an empty mapping and the whole input
//as body.
func ParseDocument(b []byte) (*Document, error) {
	doc := &Document{Meta: map[string]any{}}
	head, rest, ok := cutLine(b)
	if !ok || !bytes.Equal(head, delimiter) {
		doc.Body = b
		return doc, nil
	}

	var matter []byte
	for {
		var line []byte
		line, rest, ok = cutLine(rest)
		if bytes.Equal(line, delimiter) {
			break
		}
		if !ok {
			return nil, errors.New("front-matter is not closed")
		}
		matter = append(matter, line...)
		matter = append(matter, '\n')
	}

	var root yaml.Node
	if err := yaml.Unmarshal(matter, &root); err != nil {
		return nil, err
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		switch m := root.Content[0]; {
		case m.Kind == yaml.MappingNode:
			if err := m.Decode(&doc.Meta); err != nil {
				return nil, err
			}
			doc.root = &root
		case m.Tag != "!!null":
			return nil, errors.New("front-matter is not a mapping")
		}
	}
	if doc.Meta == nil {
		doc.Meta = map[string]any{}
	}
	doc.Body = rest
	return doc, nil
}

//cutLine returns the first line of b without its line ending, the rest of
//b, and whether a line ending was found
func cutLine(b []byte) (line, rest []byte, ok bool) {
	line, rest, ok = bytes.Cut(b, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'}), rest, ok
}

//mapping returns the front-matter mapping node, building it from Meta when
//the document was not parsed
func (d *Document) mapping() (*yaml.Node, error) {
	if d.root != nil {
		return d.root.Content[0], nil
	}
	if d.Meta == nil {
		d.Meta = map[string]any{}
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	keys := make([]string, 0, len(d.Meta))
	for k := range d.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var val yaml.Node
		if err := val.Encode(d.Meta[k]); err != nil {
			return nil, err
		}
		m.Content = append(m.Content, scalarKey(k), &val)
	}
	d.root = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{m}}
	return m, nil
}

func scalarKey(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

//Set stores v under key. An existing key keeps its position and comments;
//a new key goes last.
func (d *Document) Set(key string, v any) error {
	m, err := d.mapping()
	if err != nil {
		return err
	}
	var val yaml.Node
	if err := val.Encode(v); err != nil {
		return err
	}
	d.Meta[key] = v

	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		old := m.Content[i+1]
		val.HeadComment, val.LineComment, val.FootComment = old.HeadComment, old.LineComment, old.FootComment
		m.Content[i+1] = &val
		return nil
	}
	m.Content = append(m.Content, scalarKey(key), &val)
	return nil
}

//Bytes returns the document in its on-disk form
func (d *Document) Bytes() ([]byte, error) {
	if len(d.Meta) == 0 {
		return d.Body, nil
	}
	if _, err := d.mapping(); err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	buf.Write(delimiter)
	buf.WriteByte('\n')
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.Write(delimiter)
	buf.WriteByte('\n')
	buf.Write(d.Body)
	return buf.Bytes(), nil
}
