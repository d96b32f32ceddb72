package selector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"streampick/models"
)

type fakeProber struct {
	mu      sync.Mutex
	calls   int32
	results map[string]models.ProbeResult

	// maxConcurrent tracks the peak number of in-flight probes.
	inFlight      int32
	maxConcurrent int32
}

func (f *fakeProber) Probe(_ context.Context, cand models.CandidateSource) models.ProbeResult {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxConcurrent)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxConcurrent, prev, cur) {
			break
		}
	}
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[cand.ID]; ok {
		return r
	}
	return models.ProbeResult{OK: false}
}

func cand(id string) models.CandidateSource {
	return models.CandidateSource{Source: "prov", ID: id, Episodes: []string{"http://x/" + id + "/index.m3u8"}}
}

func TestSelectEmpty(t *testing.T) {
	s := New(&fakeProber{})
	if _, err := s.Select(context.Background(), nil); err != ErrNoCandidates {
		t.Fatalf("err = %v, want ErrNoCandidates", err)
	}
}

func TestSelectSingleCandidateSkipsProbe(t *testing.T) {
	prober := &fakeProber{}
	s := New(prober)

	got, err := s.Select(context.Background(), []models.CandidateSource{cand("only")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.ID != "only" {
		t.Errorf("selected %q", got.Source.ID)
	}
	if n := atomic.LoadInt32(&prober.calls); n != 0 {
		t.Errorf("prober called %d times for a single candidate", n)
	}
}

func TestSelectPicksHighestScore(t *testing.T) {
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"A": {Quality: models.Quality1080p, Throughput: 500, LatencyMS: 80, OK: true},
		"B": {Quality: models.Quality720p, Throughput: 300, LatencyMS: 50, OK: true},
		"C": {Quality: models.Quality480p, Throughput: 1000, LatencyMS: 40, OK: true},
	}}
	s := New(prober)

	got, err := s.Select(context.Background(), []models.CandidateSource{cand("A"), cand("B"), cand("C")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.ID != "C" {
		t.Errorf("selected %q, want C", got.Source.ID)
	}
	if got.Score != 76.0 {
		t.Errorf("score = %v, want 76.0", got.Score)
	}
	if n := atomic.LoadInt32(&prober.calls); n != 3 {
		t.Errorf("prober called %d times, want 3", n)
	}
}

func TestSelectAllProbesFail(t *testing.T) {
	prober := &fakeProber{} // no configured results -> every probe fails
	s := New(prober)

	got, err := s.Select(context.Background(), []models.CandidateSource{cand("first"), cand("second"), cand("third")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.ID != "first" {
		t.Errorf("selected %q, want first candidate", got.Source.ID)
	}
	if got.Score != 0 {
		t.Errorf("fallback score = %v, want 0", got.Score)
	}
}

func TestSelectSkipsFailedCandidates(t *testing.T) {
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"B": {Quality: models.QualitySD, Throughput: 10, LatencyMS: 100, OK: true},
	}}
	s := New(prober)

	got, err := s.Select(context.Background(), []models.CandidateSource{cand("A"), cand("B")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.ID != "B" {
		t.Errorf("selected %q, want the only successful probe", got.Source.ID)
	}
}

func TestSelectTiePreservesInputOrder(t *testing.T) {
	same := models.ProbeResult{Quality: models.Quality720p, Throughput: 100, LatencyMS: 50, OK: true}
	prober := &fakeProber{results: map[string]models.ProbeResult{
		"X": same, "Y": same, "Z": same,
	}}
	s := New(prober)

	got, err := s.Select(context.Background(), []models.CandidateSource{cand("X"), cand("Y"), cand("Z")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source.ID != "X" {
		t.Errorf("selected %q, want X (earliest on tie)", got.Source.ID)
	}
}

func TestProbeBatchesBoundConcurrency(t *testing.T) {
	prober := &fakeProber{results: map[string]models.ProbeResult{}}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		prober.results[id] = models.ProbeResult{Quality: models.Quality720p, Throughput: 1, LatencyMS: 1, OK: true}
	}
	s := New(prober)

	candidates := []models.CandidateSource{cand("a"), cand("b"), cand("c"), cand("d"), cand("e")}
	results := s.probeInBatches(context.Background(), candidates)

	if len(results) != 5 {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("result %d not OK", i)
		}
	}
	// ceil(5/2) = 3 per batch.
	if peak := atomic.LoadInt32(&prober.maxConcurrent); peak > 3 {
		t.Errorf("peak concurrency %d exceeds batch size 3", peak)
	}
}
