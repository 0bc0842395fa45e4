package matching

import (
	"context"
	"errors"
	"log"
	"math"
	"testing"

	"github.com/google/uuid"
)

type fakeChecker struct {
	existing map[[2]uuid.UUID]bool
	err      error
}

func (c *fakeChecker) Exists(_ context.Context, userID, jobID uuid.UUID) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.existing[[2]uuid.UUID{userID, jobID}], nil
}

func newTestEngine(t *testing.T, threshold float64, checker RecordChecker) *Engine {
	t.Helper()
	e, err := NewEngine(threshold, checker, log.Default())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// vectorWithSimilarity builds a 2-d unit-ish vector whose cosine similarity
// against (1, 0) equals sim.
func vectorWithSimilarity(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

func TestNewEngineRejectsBadThreshold(t *testing.T) {
	for _, th := range []float64{-0.01, 1.01, 2} {
		if _, err := NewEngine(th, nil, nil); err == nil {
			t.Errorf("NewEngine(%v) expected error", th)
		}
	}
	for _, th := range []float64{0, 0.7, 1} {
		if _, err := NewEngine(th, nil, nil); err != nil {
			t.Errorf("NewEngine(%v): %v", th, err)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name    string
		a, b    []float64
		want    float64
		invalid bool
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite clamps to zero", a: []float64{1, 0}, b: []float64{-1, 0}, want: 0},
		{name: "empty a", a: nil, b: []float64{1}, invalid: true},
		{name: "empty b", a: []float64{1}, b: nil, invalid: true},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 1}, invalid: true},
		{name: "dimension mismatch", a: []float64{1, 2}, b: []float64{1, 2, 3}, invalid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CosineSimilarity(tc.a, tc.b)
			if tc.invalid {
				var ive *InvalidVectorError
				if !errors.As(err, &ive) {
					t.Fatalf("want InvalidVectorError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CosineSimilarity: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("similarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float64{0.3, 0.1, 0.9}
	b := []float64{0.2, 0.8, 0.5}

	base, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("CosineSimilarity: %v", err)
	}

	for _, k := range []float64{0.001, 2, 1000} {
		scaled := make([]float64, len(b))
		for i := range b {
			scaled[i] = b[i] * k
		}
		got, err := CosineSimilarity(a, scaled)
		if err != nil {
			t.Fatalf("CosineSimilarity scaled by %v: %v", k, err)
		}
		if math.Abs(got-base) > 1e-9 {
			t.Errorf("scaling by %v changed similarity: %v vs %v", k, got, base)
		}
	}
}

func TestMatchThresholdGate(t *testing.T) {
	e := newTestEngine(t, 0.70, &fakeChecker{existing: map[[2]uuid.UUID]bool{}})
	userID := uuid.New()
	cv := []float64{1, 0}

	above := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.85)}
	below := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.65)}

	res, err := e.Match(context.Background(), userID, cv, []Candidate{above, below})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(res.Intents))
	}
	if res.Intents[0].JobID != above.JobID {
		t.Errorf("wrong job surfaced")
	}
	if res.Intents[0].Score < 0.84 || res.Intents[0].Score > 0.86 {
		t.Errorf("score = %v, want ~0.85", res.Intents[0].Score)
	}
}

func TestMatchOrdering(t *testing.T) {
	e := newTestEngine(t, 0.70, nil)
	userID := uuid.New()
	cv := []float64{1, 0}

	job90 := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.90)}
	job95 := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.95)}

	res, err := e.Match(context.Background(), userID, cv, []Candidate{job90, job95})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Intents) != 2 {
		t.Fatalf("intents = %d, want 2", len(res.Intents))
	}
	if res.Intents[0].JobID != job95.JobID || res.Intents[1].JobID != job90.JobID {
		t.Errorf("intents not ordered by descending score")
	}
}

func TestMatchTieBrokenByJobID(t *testing.T) {
	e := newTestEngine(t, 0.70, nil)
	userID := uuid.New()
	cv := []float64{1, 0}

	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	v := vectorWithSimilarity(0.9)

	res, err := e.Match(context.Background(), userID, cv, []Candidate{
		{JobID: high, Vector: v},
		{JobID: low, Vector: v},
	})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Intents) != 2 {
		t.Fatalf("intents = %d, want 2", len(res.Intents))
	}
	if res.Intents[0].JobID != low {
		t.Errorf("equal scores should order by job ID ascending")
	}
}

func TestMatchSkipsInvalidPairsWithoutFailingBatch(t *testing.T) {
	e := newTestEngine(t, 0.70, nil)
	userID := uuid.New()
	cv := []float64{1, 0}

	candidates := make([]Candidate, 0, 10)
	for i := 0; i < 9; i++ {
		candidates = append(candidates, Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.9)})
	}
	// One candidate with a mismatched dimensionality.
	candidates = append(candidates, Candidate{JobID: uuid.New(), Vector: []float64{1, 0, 0}})

	res, err := e.Match(context.Background(), userID, cv, candidates)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Intents) != 9 {
		t.Errorf("intents = %d, want 9", len(res.Intents))
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
}

func TestMatchIdempotenceGuard(t *testing.T) {
	userID := uuid.New()
	seen := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.95)}
	fresh := Candidate{JobID: uuid.New(), Vector: vectorWithSimilarity(0.95)}

	checker := &fakeChecker{existing: map[[2]uuid.UUID]bool{
		{userID, seen.JobID}: true,
	}}
	e := newTestEngine(t, 0.70, checker)

	res, err := e.Match(context.Background(), userID, []float64{1, 0}, []Candidate{seen, fresh})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(res.Intents))
	}
	if res.Intents[0].JobID != fresh.JobID {
		t.Errorf("already-notified pair was re-emitted")
	}
}

func TestMatchEmptyCVVector(t *testing.T) {
	e := newTestEngine(t, 0.70, nil)

	_, err := e.Match(context.Background(), uuid.New(), nil, []Candidate{{JobID: uuid.New(), Vector: []float64{1}}})
	var ive *InvalidVectorError
	if !errors.As(err, &ive) {
		t.Fatalf("want InvalidVectorError, got %v", err)
	}
}

func TestMatchCheckerErrorPropagates(t *testing.T) {
	wantErr := errors.New("db down")
	e := newTestEngine(t, 0.70, &fakeChecker{err: wantErr})

	_, err := e.Match(context.Background(), uuid.New(), []float64{1, 0}, []Candidate{
		{JobID: uuid.New(), Vector: vectorWithSimilarity(0.9)},
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("want checker error, got %v", err)
	}
}
