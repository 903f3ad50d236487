package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/source"
	"github.com/roach88/atomicfu/internal/store"
	"github.com/roach88/atomicfu/internal/transform"
)

// Harness is the test execution engine.
// It runs scenarios against a private in-memory journal with a
// deterministic clock and run id.
type Harness struct {
	store   *store.Store
	clock   *store.Clock
	ids     store.IDGenerator
	logger  *slog.Logger
	surface *library.Surface
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Create fresh in-memory journal
// 2. Load the runtime surface and decode the unit
// 3. Run the pass over the unit
// 4. Record the run and evaluate assertions
//
// A returned error means the scenario itself is broken (missing unit,
// undecodable document). A failing pass is reported through the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	surface, err := library.Load(ctx, library.Options{Path: scenario.Library, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	h := &Harness{
		store:   st,
		clock:   store.NewClockAt(0),
		ids:     store.NewFixedGenerator("scenario-" + scenario.Name),
		logger:  logger,
		surface: surface,
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	data, err := os.ReadFile(scenario.Unit)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit: %w", err)
	}
	unit, err := source.Decode(scenario.Unit, bytes.NewReader(data), h.surface.Index())
	if err != nil {
		return nil, fmt.Errorf("failed to decode unit: %w", err)
	}

	result := newResult()
	stats, passErr := transform.Transform(unit, h.surface.Context(unit), transform.Options{Logger: h.logger})
	result.Stats = stats

	run := store.Run{
		ID:             h.ids.Generate(),
		Unit:           unit.Name,
		InputHash:      ir.SourceHash(data),
		Status:         store.StatusOK,
		Rewrites:       int64(stats.Rewrites()),
		Counts:         stats.Counts(),
		LibraryVersion: h.surface.Version.String(),
		PassVersion:    ir.PassVersion,
		Seq:            h.clock.Next(),
	}
	if passErr != nil {
		result.Code = string(transform.CodeOf(passErr))
		result.Failure = passErr.Error()
		run.Status = store.StatusFailed
		run.Error = passErr.Error()
	} else {
		result.Output = ir.Render(unit)
		if run.OutputHash, err = ir.UnitHash(unit); err != nil {
			return nil, fmt.Errorf("failed to hash unit: %w", err)
		}
	}

	if err := h.store.WriteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	runs, err := h.store.ReadRuns(ctx, unit.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	if len(runs) != 1 {
		return nil, fmt.Errorf("expected 1 recorded run, got %d", len(runs))
	}
	result.Run = runs[0]

	actx := &AssertionContext{Unit: unit, Err: passErr}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.fail(msg)
	}

	return result, nil
}
