package resolve

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/inspection-risk/internal/model"
)

// Matcher resolves restaurant names to registry identifiers using a static
// reference table. Lookups try the exact name first and then the normalized,
// case-folded name. A Matcher is read-only after construction.
type Matcher struct {
	exact      map[string]model.MappingEntry
	normalized map[string]model.MappingEntry
	names      []string
}

// NewMatcher builds a Matcher from reference entries. When two entries share
// a name or a normalized key, the later one wins.
func NewMatcher(entries []model.MappingEntry) *Matcher {
	m := &Matcher{
		exact:      make(map[string]model.MappingEntry, len(entries)),
		normalized: make(map[string]model.MappingEntry, len(entries)),
	}
	for _, e := range entries {
		if _, seen := m.exact[e.Name]; !seen {
			m.names = append(m.names, e.Name)
		}
		m.exact[e.Name] = e
		m.normalized[foldKey(e.Name)] = e
	}
	return m
}

// LoadMatcher reads the reference table at path. A missing or unreadable
// file yields an empty Matcher so every name resolves as unmatched.
func LoadMatcher(path string) *Matcher {
	log := zap.L().With(zap.String("component", "matcher"), zap.String("path", path))

	entries, err := ReadMapping(path)
	if err != nil {
		log.Warn("mapping unavailable, continuing with empty mapping", zap.Error(err))
		return NewMatcher(nil)
	}

	m := NewMatcher(entries)
	log.Info("loaded restaurant mappings", zap.Int("count", m.Len()))
	return m
}

// ReadMapping parses a JSON or YAML reference file of the form
// {"<name>": {"camis": "...", "boro": "...", "dba": "..."}}. Top-level keys
// starting with "_" hold metadata and are skipped. File order is preserved.
func ReadMapping(path string) ([]model.MappingEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: open mapping")
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAMLMapping(f)
	default:
		return decodeJSONMapping(f)
	}
}

func decodeJSONMapping(r io.Reader) ([]model.MappingEntry, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "resolve: read mapping")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, eris.Errorf("resolve: mapping must be an object, got %v", tok)
	}

	var entries []model.MappingEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "resolve: read mapping key")
		}
		name, _ := keyTok.(string)

		var fields map[string]any
		if strings.HasPrefix(name, "_") {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, eris.Wrapf(err, "resolve: read mapping metadata %q", name)
			}
			continue
		}
		if err := dec.Decode(&fields); err != nil {
			return nil, eris.Wrapf(err, "resolve: decode mapping entry %q", name)
		}
		entries = append(entries, entryFromFields(name, fields))
	}
	return entries, nil
}

func decodeYAMLMapping(r io.Reader) ([]model.MappingEntry, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "resolve: decode yaml mapping")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, eris.New("resolve: yaml mapping must be a mapping")
	}

	var entries []model.MappingEntry
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := doc.Content[i].Value
		val := doc.Content[i+1]
		if strings.HasPrefix(name, "_") || val.Kind != yaml.MappingNode {
			continue
		}
		// Scalars are read as raw text so identifiers like 0041 keep their zeros.
		fields := make(map[string]any, len(val.Content)/2)
		for j := 0; j+1 < len(val.Content); j += 2 {
			fields[val.Content[j].Value] = val.Content[j+1].Value
		}
		entries = append(entries, entryFromFields(name, fields))
	}
	return entries, nil
}

func entryFromFields(name string, fields map[string]any) model.MappingEntry {
	return model.MappingEntry{
		Name:              name,
		Identifier:        stringField(fields["camis"]),
		Borough:           stringField(fields["boro"]),
		EstablishmentName: stringField(fields["dba"]),
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// foldKey is the normalized-table key for a name.
func foldKey(name string) string {
	return cases.Fold().String(Normalize(name))
}

func (m *Matcher) lookup(name string) (model.MappingEntry, bool) {
	if e, ok := m.exact[name]; ok {
		return e, true
	}
	e, ok := m.normalized[foldKey(name)]
	return e, ok
}

// Resolve returns the registry identifier for a restaurant name.
func (m *Matcher) Resolve(name string) (string, bool) {
	e, ok := m.lookup(name)
	if !ok || e.Identifier == "" {
		return "", false
	}
	return e.Identifier, true
}

// Info returns the whole reference entry for a restaurant name.
func (m *Matcher) Info(name string) (model.MappingEntry, bool) {
	return m.lookup(name)
}

// Unmatched returns the distinct names, in first-seen order, that do not resolve.
func (m *Matcher) Unmatched(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := m.Resolve(n); !ok {
			out = append(out, n)
		}
	}
	return out
}

// MatchedCount returns how many distinct names resolve.
func (m *Matcher) MatchedCount(names []string) int {
	seen := make(map[string]bool, len(names))
	n := 0
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := m.Resolve(name); ok {
			n++
		}
	}
	return n
}

// Identifiers returns every identifier in the table, in load order.
func (m *Matcher) Identifiers() []string {
	out := make([]string, 0, len(m.names))
	for _, name := range m.names {
		if id := m.exact[name].Identifier; id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of reference entries.
func (m *Matcher) Len() int {
	return len(m.exact)
}
