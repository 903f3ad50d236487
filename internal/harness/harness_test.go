package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/store"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestRun_CounterGolden(t *testing.T) {
	scenario := loadScenario(t, "counter_increment_safe.yaml")

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Code)
	assert.Equal(t, 1, result.Stats.Expanded)
	assert.Equal(t, 1, result.Stats.Redirected)
	assert.Equal(t, 1, result.Stats.HelperCalls)
}

func TestRun_RecordsRun(t *testing.T) {
	scenario := loadScenario(t, "counter_increment_safe.yaml")

	result, err := Run(scenario)
	require.NoError(t, err)

	run := result.Run
	assert.Equal(t, "scenario-counter_increment_safe", run.ID)
	assert.Equal(t, "counter.kt", run.Unit)
	assert.Equal(t, store.StatusOK, run.Status)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, ir.PassVersion, run.PassVersion)
	assert.NotEmpty(t, run.InputHash)
	assert.NotEmpty(t, run.OutputHash)
	assert.NotEmpty(t, run.LibraryVersion)
	assert.Equal(t, int64(result.Stats.Rewrites()), run.Rewrites)
	assert.Equal(t, int64(1), run.Counts["expanded"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadScenario(t, "counter_increment_safe.yaml")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.Run, second.Run)
}

func TestRun_CUEUnitMatchesYAML(t *testing.T) {
	yamlScenario := loadScenario(t, "counter_increment_safe.yaml")
	cueScenario := *yamlScenario
	cueScenario.Unit = filepath.Join("testdata", "units", "counter.cue")

	fromYAML, err := Run(yamlScenario)
	require.NoError(t, err)
	fromCUE, err := Run(&cueScenario)
	require.NoError(t, err)

	assert.True(t, fromCUE.Pass, "errors: %v", fromCUE.Errors)
	assert.Equal(t, fromYAML.Output, fromCUE.Output)
	assert.Equal(t, fromYAML.Run.OutputHash, fromCUE.Run.OutputHash)
}

func TestRun_Registry(t *testing.T) {
	scenario := loadScenario(t, "registry.yaml")

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Output, "val lock: kotlin.Any? = null")
	assert.Equal(t, 3, result.Stats.Initializers)
}

func TestRun_FailsWith(t *testing.T) {
	scenario := loadScenario(t, "illegal_initializer.yaml")

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "SHAPE_VIOLATION", result.Code)
	assert.Contains(t, result.Failure, "illegal initializer")
	assert.Empty(t, result.Output)
	assert.Equal(t, store.StatusFailed, result.Run.Status)
	assert.Empty(t, result.Run.OutputHash)
	assert.Equal(t, result.Failure, result.Run.Error)
}

func TestRun_FailedPassFailsOtherAssertions(t *testing.T) {
	scenario := loadScenario(t, "illegal_initializer.yaml")
	scenario.Assertions = []Assertion{{Type: AssertNoWrappers}}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "pass failed")
}

func TestRun_AssertionFailures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		contains  string
	}{
		{
			name:      "helper count mismatch",
			assertion: Assertion{Type: AssertHelperCalled, Helper: "incrementAndGet", Count: 3},
			contains:  "3 calls to atomicfu_incrementAndGet",
		},
		{
			name:      "helper never called",
			assertion: Assertion{Type: AssertHelperCalled, Helper: "getAndSet"},
			contains:  "at least one call to atomicfu_getAndSet",
		},
		{
			name:      "param count mismatch",
			assertion: Assertion{Type: AssertParamCount, Function: "incrementSafe", Count: 0},
			contains:  "demo.Counter.incrementSafe with 0 parameters",
		},
		{
			name:      "unknown function",
			assertion: Assertion{Type: AssertParamCount, Function: "missing", Count: 0},
			contains:  "not declared",
		},
		{
			name:      "field type mismatch",
			assertion: Assertion{Type: AssertFieldType, Field: "a", Expect: "Long"},
			contains:  "a: kotlin.Long",
		},
		{
			name:      "expected failure",
			assertion: Assertion{Type: AssertFailsWith, Code: "SHAPE_VIOLATION"},
			contains:  "pass succeeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := loadScenario(t, "counter_increment_safe.yaml")
			scenario.Assertions = []Assertion{tt.assertion}

			result, err := Run(scenario)
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.contains)
			assert.Contains(t, result.Errors[0], "Transformed unit:")
		})
	}
}

func TestRun_MissingUnit(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "unit does not exist",
		Unit:        filepath.Join(t.TempDir(), "missing.yaml"),
		Assertions:  []Assertion{{Type: AssertNoWrappers}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read unit")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFieldType,
		Expected: "a: kotlin.Int",
		Actual:   "a: kotlinx.atomicfu.AtomicInt",
		Output:   "package demo\n\nval a: kotlinx.atomicfu.AtomicInt\n",
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: field_type")
	assert.Contains(t, msg, "  Expected: a: kotlin.Int\n")
	assert.Contains(t, msg, "  Actual: a: kotlinx.atomicfu.AtomicInt\n")
	assert.Contains(t, msg, "  val a: kotlinx.atomicfu.AtomicInt\n")
}
