package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesUnitPath(t *testing.T) {
	s := loadScenario(t, "counter_increment_safe.yaml")

	assert.Equal(t, "counter_increment_safe", s.Name)
	assert.Equal(t, filepath.Join("testdata", "units", "counter.yaml"), s.Unit)
	assert.Empty(t, s.Library)
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertHelperCalled, s.Assertions[1].Type)
	assert.Equal(t, "incrementAndGet", s.Assertions[1].Helper)
	assert.Equal(t, 1, s.Assertions[1].Count)
	assert.Equal(t, "Int", s.Assertions[3].Expect)
}

func TestLoadScenario_Invalid(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "unit.yaml")
	require.NoError(t, os.WriteFile(unit, []byte("name: u\npackage: p\n"), 0o644))

	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "unknown field",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertion: []\n",
			contains: "field assertion not found",
		},
		{
			name:     "missing name",
			yaml:     "description: d\nunit: unit.yaml\nassertions: [{type: no_wrappers}]\n",
			contains: "name is required",
		},
		{
			name:     "missing description",
			yaml:     "name: s\nunit: unit.yaml\nassertions: [{type: no_wrappers}]\n",
			contains: "description is required",
		},
		{
			name:     "missing unit",
			yaml:     "name: s\ndescription: d\nassertions: [{type: no_wrappers}]\n",
			contains: "unit is required",
		},
		{
			name:     "unit not found",
			yaml:     "name: s\ndescription: d\nunit: nope.yaml\nassertions: [{type: no_wrappers}]\n",
			contains: "unit file not found",
		},
		{
			name:     "library not found",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nlibrary: nope.cue\nassertions: [{type: no_wrappers}]\n",
			contains: "library file not found",
		},
		{
			name:     "no assertions",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: []\n",
			contains: "assertions list is required",
		},
		{
			name:     "unknown assertion type",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: trace_order}]\n",
			contains: `unknown assertion type "trace_order"`,
		},
		{
			name:     "helper without name",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: helper_called}]\n",
			contains: "helper is required",
		},
		{
			name:     "param count without function",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: param_count, count: 1}]\n",
			contains: "function is required",
		},
		{
			name:     "field type without expect",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: field_type, field: a}]\n",
			contains: "expect is required",
		},
		{
			name:     "fails_with without code",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: fails_with}]\n",
			contains: "code is required",
		},
		{
			name:     "fails_with combined",
			yaml:     "name: s\ndescription: d\nunit: unit.yaml\nassertions: [{type: fails_with, code: X}, {type: no_wrappers}]\n",
			contains: "cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
