package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testMatcher() *Matcher {
	return NewMatcher([]model.MappingEntry{
		{Name: "Joe's Pizza", Identifier: "41234567", Borough: "MANHATTAN"},
		{Name: "Shake Shack - UES", Identifier: "50012345", Borough: "MANHATTAN"},
		{Name: "Nathan's Famous", Identifier: "00040356", Borough: "BROOKLYN"},
		{Name: "No Camis Cafe"},
	})
}

func TestMatcher_ResolveExact(t *testing.T) {
	m := testMatcher()
	id, ok := m.Resolve("Joe's Pizza")
	require.True(t, ok)
	assert.Equal(t, "41234567", id)
}

func TestMatcher_ResolveNormalized(t *testing.T) {
	m := testMatcher()

	id, ok := m.Resolve("Joe's Pizza - CLOSED")
	require.True(t, ok)
	assert.Equal(t, "41234567", id)

	id, ok = m.Resolve("JOE'S PIZZA")
	require.True(t, ok)
	assert.Equal(t, "41234567", id)

	// Table keys are normalized too.
	id, ok = m.Resolve("Shake Shack")
	require.True(t, ok)
	assert.Equal(t, "50012345", id)
}

func TestMatcher_LeadingZerosPreserved(t *testing.T) {
	id, ok := testMatcher().Resolve("Nathan's Famous")
	require.True(t, ok)
	assert.Equal(t, "00040356", id)
}

func TestMatcher_Unresolved(t *testing.T) {
	m := testMatcher()
	for _, name := range []string{"", "Unknown Bistro", "Joe's Pizzeria", "No Camis Cafe"} {
		id, ok := m.Resolve(name)
		assert.False(t, ok, name)
		assert.Empty(t, id, name)
	}
}

func TestMatcher_Info(t *testing.T) {
	m := testMatcher()

	info, ok := m.Info("Nathan's Famous $0 Delivery Fee")
	require.True(t, ok)
	assert.Equal(t, "BROOKLYN", info.Borough)
	assert.Equal(t, "Nathan's Famous", info.Name)

	_, ok = m.Info("Unknown Bistro")
	assert.False(t, ok)
}

func TestMatcher_Unmatched(t *testing.T) {
	m := testMatcher()
	names := []string{"Joe's Pizza", "Unknown Bistro", "Tacombi", "Unknown Bistro", "Shake Shack"}
	assert.Equal(t, []string{"Unknown Bistro", "Tacombi"}, m.Unmatched(names))
	assert.Equal(t, 2, m.MatchedCount(names))
}

func TestMatcher_Identifiers(t *testing.T) {
	m := testMatcher()
	assert.Equal(t, []string{"41234567", "50012345", "00040356"}, m.Identifiers())
	assert.Equal(t, 4, m.Len())
}

func TestMatcher_LaterEntryWins(t *testing.T) {
	m := NewMatcher([]model.MappingEntry{
		{Name: "Tacombi - Downtown", Identifier: "1"},
		{Name: "Tacombi", Identifier: "2"},
	})
	id, ok := m.Resolve("tacombi - midtown")
	require.True(t, ok)
	assert.Equal(t, "2", id)

	// Exact keys still win over the normalized table.
	id, _ = m.Resolve("Tacombi - Downtown")
	assert.Equal(t, "1", id)
}

func TestMatcher_EmptyTable(t *testing.T) {
	m := NewMatcher(nil)
	_, ok := m.Resolve("Joe's Pizza")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Identifiers())
}

func TestLoadMatcher_JSON(t *testing.T) {
	path := writeFile(t, "mapping.json", `{
  "_meta": {"source": "manual", "count": 2},
  "Joe's Pizza": {"camis": "41234567", "boro": "Manhattan", "dba": "JOE'S PIZZA"},
  "Katz's Delicatessen": {"camis": 40364445, "boro": "Manhattan"}
}`)

	m := LoadMatcher(path)
	require.Equal(t, 2, m.Len())

	id, ok := m.Resolve("Katz's Delicatessen")
	require.True(t, ok)
	assert.Equal(t, "40364445", id)

	info, ok := m.Info("Joe's Pizza")
	require.True(t, ok)
	assert.Equal(t, "JOE'S PIZZA", info.EstablishmentName)
	assert.Equal(t, []string{"41234567", "40364445"}, m.Identifiers())
}

func TestLoadMatcher_YAML(t *testing.T) {
	path := writeFile(t, "mapping.yaml", `
_meta:
  source: manual
Joe's Pizza:
  camis: "41234567"
  boro: Manhattan
Corner Deli:
  camis: 0041
`)

	m := LoadMatcher(path)
	require.Equal(t, 2, m.Len())

	id, ok := m.Resolve("Corner Deli")
	require.True(t, ok)
	assert.Equal(t, "0041", id)
}

func TestLoadMatcher_MissingFile(t *testing.T) {
	m := LoadMatcher(filepath.Join(t.TempDir(), "missing.json"))
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	_, ok := m.Resolve("Joe's Pizza")
	assert.False(t, ok)
}

func TestLoadMatcher_InvalidFile(t *testing.T) {
	m := LoadMatcher(writeFile(t, "mapping.json", `["not", "an", "object"]`))
	assert.Equal(t, 0, m.Len())
}

func TestReadMapping_Errors(t *testing.T) {
	_, err := ReadMapping(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open mapping")

	_, err = ReadMapping(writeFile(t, "bad.json", `{"a": [1,2]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode mapping entry")
}

func TestReadMapping_Empty(t *testing.T) {
	entries, err := ReadMapping(writeFile(t, "empty.json", ``))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
