package bannercfg

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/gacha-engine/internal/gacha"
)

// Loader reads the banner file and caches the parsed document until
// Invalidate is called.
type Loader struct {
	path string

	mu     sync.RWMutex
	cached *Document
}

// NewLoader creates a loader for the banner file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path is the banner file location.
func (l *Loader) Path() string { return l.path }

// Load returns the document, reading the file on first use.
func (l *Loader) Load() (Document, error) {
	l.mu.RLock()
	if l.cached != nil {
		doc := *l.cached
		l.mu.RUnlock()
		return doc, nil
	}
	l.mu.RUnlock()

	doc, err := readYAML(l.path)
	if err != nil {
		return Document{}, err
	}

	l.mu.Lock()
	l.cached = &doc
	l.mu.Unlock()
	return doc, nil
}

// Invalidate clears the cache. Call after the watcher reports a change.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
}

// Banners loads and builds the banner file. Generated UUIDs are written
// back at once so the banners keep them across reloads and restarts.
func (l *Loader) Banners() ([]*gacha.Banner, Diagnostics, error) {
	doc, err := l.Load()
	if err != nil {
		return nil, nil, err
	}
	banners, ds := Build(doc)
	if len(ds.GeneratedIDs()) > 0 {
		if err := l.Save(banners); err != nil {
			return banners, ds, fmt.Errorf("write back generated UUIDs: %w", err)
		}
	}
	return banners, ds, nil
}

// Save writes the runtime projection of banners back into the file.
func (l *Loader) Save(banners []*gacha.Banner) error {
	if err := SaveProjection(l.path, banners); err != nil {
		return err
	}
	l.Invalidate()
	return nil
}

// Parse decodes a banner document.
func Parse(b []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("parse banners: %w", err)
	}
	return doc, nil
}

// readYAML loads the banner file. A missing file is an empty document.
func readYAML(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("read banners: %w", err)
	}
	return Parse(b)
}

// SaveProjection writes each banner's UUID and Locations into the file at
// path, keeping every other node as it was. Banners missing from the file
// get a new section holding just those keys.
func SaveProjection(path string, banners []*gacha.Banner) error {
	root, err := readNode(path)
	if err != nil {
		return err
	}
	crates := mappingChild(documentMapping(root), "Crates")
	for _, b := range banners {
		sec := mappingChild(crates, b.Name())
		setScalar(sec, "UUID", b.ID().String())
		locs := b.Locations()
		vals := make([]string, len(locs))
		for i, loc := range locs {
			vals[i] = loc.String()
		}
		setSequence(sec, "Locations", vals)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode banners: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode banners: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func readNode(path string) (*yaml.Node, error) {
	root := &yaml.Node{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		b = nil
	case err != nil:
		return nil, fmt.Errorf("read banners: %w", err)
	}
	if len(bytes.TrimSpace(b)) > 0 {
		if err := yaml.Unmarshal(b, root); err != nil {
			return nil, fmt.Errorf("parse banners: %w", err)
		}
	}
	if root.Kind != yaml.DocumentNode {
		root = &yaml.Node{Kind: yaml.DocumentNode}
	}
	return root, nil
}

func documentMapping(doc *yaml.Node) *yaml.Node {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	return doc.Content[0]
}

// mappingChild returns the mapping stored under key, creating or replacing
// it when it is absent or not a mapping.
func mappingChild(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			v := m.Content[i+1]
			if v.Kind != yaml.MappingNode {
				v = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
				m.Content[i+1] = v
			}
			return v
		}
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	return v
}

func setValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
}

func setScalar(m *yaml.Node, key, value string) {
	setValue(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func setSequence(m *yaml.Node, key string, values []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
	}
	setValue(m, key, seq)
}

// writeAtomic writes through a temp file in the same directory and renames
// it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
