package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("r1", "counter.kt", 1)
	run.Rewrites = 5
	run.Counts = map[string]int64{"helper_calls": 3, "expanded": 1}
	run.LibraryVersion = "0.23.1"
	require.NoError(t, s.WriteRun(ctx, run))

	runs, err := s.ReadRuns(ctx, "counter.kt")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
}

func TestWriteRun_DuplicateIDIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, createTestRun("r1", "a.kt", 1)))
	dup := createTestRun("r1", "a.kt", 2)
	dup.OutputHash = "different"
	require.NoError(t, s.WriteRun(ctx, dup))

	runs, err := s.ReadRuns(ctx, "a.kt")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "out-r1", runs[0].OutputHash)
}

func TestWriteRun_InvalidStatus(t *testing.T) {
	s := createTestStore(t)

	run := createTestRun("r1", "a.kt", 1)
	run.Status = "pending"
	assert.ErrorContains(t, s.WriteRun(context.Background(), run), "invalid status")
}

func TestReadRuns_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Same seq for b and a: ties break on id.
	for _, r := range []Run{
		createTestRun("c", "u.kt", 3),
		createTestRun("b", "u.kt", 1),
		createTestRun("a", "u.kt", 1),
		createTestRun("z", "other.kt", 2),
	} {
		require.NoError(t, s.WriteRun(ctx, r))
	}

	runs, err := s.ReadRuns(ctx, "u.kt")
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	all, err := s.ReadRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReadRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ReadRuns(context.Background(), "none.kt")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestLastOutput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastOutput(ctx, "u.kt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteRun(ctx, createTestRun("r1", "u.kt", 1)))
	require.NoError(t, s.WriteRun(ctx, createTestRun("r2", "u.kt", 2)))
	failed := createTestRun("r3", "u.kt", 3)
	failed.Status = StatusFailed
	failed.OutputHash = ""
	failed.Error = "SHAPE_VIOLATION: boom"
	require.NoError(t, s.WriteRun(ctx, failed))

	last, ok, err := s.LastOutput(ctx, "u.kt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r2", last.ID, "failed runs are not outputs")
	assert.Equal(t, "out-r2", last.OutputHash)
}

func TestNextSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.NextSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	require.NoError(t, s.WriteRun(ctx, createTestRun("r1", "u.kt", 7)))
	seq, err = s.NextSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClockAt(10)

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := c.Next()
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, int64(60), c.Current())
	assert.True(t, seen[11])
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("run-1", "run-2")

	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
