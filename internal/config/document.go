package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the untyped view of the configuration file, used by
// 'config --set' so unknown keys survive a round trip.
type Document struct {
	path string
	root map[string]any
}

// LoadDocument parses the file at path into a Document. A missing file is an
// error; 'config --init' creates one.
func LoadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s (run 'waterworks config --init')", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	root := make(map[string]any)
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &Document{path: path, root: root}, nil
}

// Get resolves a dot-separated key path, e.g. "llm.provider".
func (d *Document) Get(keyPath string) (any, bool) {
	var cur any = d.root
	for _, key := range strings.Split(keyPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dot-separated key path, creating intermediate maps.
// Setting through a non-map value is an error.
func (d *Document) Set(keyPath string, value any) error {
	keys := strings.Split(keyPath, ".")
	cur := d.root
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key]
		if !ok {
			m := make(map[string]any)
			cur[key] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %q is not a section", keyPath, key)
		}
		cur = m
	}
	cur[keys[len(keys)-1]] = value
	return nil
}

// Save writes the document back to its file.
func (d *Document) Save() error {
	out, err := yaml.Marshal(d.root)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(d.path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the file the document was loaded from.
func (d *Document) Path() string {
	return d.path
}
