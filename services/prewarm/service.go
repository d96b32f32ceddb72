// Package prewarm runs the background scheduler that keeps the best-source
// cache warm for a configured watch list. Two loops cooperate: a monitor
// loop that batch-checks the cache for watch-list titles, and a worker loop
// that resolves confirmed misses one at a time through search, detail fetch
// and selection.
package prewarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"streampick/models"
	"streampick/services/catalog"
	"streampick/services/store"
	"streampick/utils/similarity"
)

// SourcePicker selects the best candidate among fully-detailed sources.
type SourcePicker interface {
	Select(ctx context.Context, candidates []models.CandidateSource) (*models.ScoredCandidate, error)
}

// Callbacks notify the owner about cache hits discovered by the monitor
// loop and about completed warms. Nil funcs are skipped.
type Callbacks struct {
	OnCacheHit func(item models.PrewarmItem, cached models.BestSource)
	OnWarmed   func(item models.PrewarmItem, best models.BestSource)
}

// Config holds the scheduler cadence knobs.
type Config struct {
	DrainInterval  time.Duration // monitor sleep while the watch list still has unchecked items
	IdleInterval   time.Duration // monitor sleep once everything is checked
	WorkerInterval time.Duration // worker poll interval when busy or empty
	ItemDelay      time.Duration // pause after each processed queue item
	CacheTTL       time.Duration // TTL for entries written by the worker
	MaxCandidates  int           // fuzzy-match cap per title
}

func DefaultConfig() Config {
	return Config{
		DrainInterval:  3 * time.Second,
		IdleInterval:   60 * time.Second,
		WorkerInterval: 2 * time.Second,
		ItemDelay:      1500 * time.Millisecond,
		CacheTTL:       24 * time.Hour,
		MaxCandidates:  5,
	}
}

// Status is a point-in-time snapshot of the scheduler state, served by the
// admin API.
type Status struct {
	WatchlistSize int   `json:"watchlistSize"`
	CheckedCount  int   `json:"checkedCount"`
	QueueLength   int   `json:"queueLength"`
	Warming       bool  `json:"warming"`
	Hits          int64 `json:"hits"`
	Warmed        int64 `json:"warmed"`
	Failed        int64 `json:"failed"`
}

// Service is the prewarm scheduler.
type Service struct {
	store     store.Store
	searcher  catalog.Searcher
	detailer  catalog.Detailer
	picker    SourcePicker
	callbacks Callbacks
	cfg       Config

	// Shared between the two loops; everything below mu.
	mu      sync.Mutex
	watch   []models.PrewarmItem
	checked map[string]struct{}
	queue   []models.PrewarmItem
	queued  map[string]struct{}
	warming bool
	hits    int64
	warmed  int64
	failed  int64

	// Lifecycle
	lifeMu  sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(st store.Store, searcher catalog.Searcher, detailer catalog.Detailer, picker SourcePicker, callbacks Callbacks, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.WorkerInterval <= 0 {
		cfg.WorkerInterval = def.WorkerInterval
	}
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = def.ItemDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	return &Service{
		store:     st,
		searcher:  searcher,
		detailer:  detailer,
		picker:    picker,
		callbacks: callbacks,
		cfg:       cfg,
		checked:   make(map[string]struct{}),
		queued:    make(map[string]struct{}),
	}
}

// Start launches the monitor and worker loops.
func (s *Service) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(2)
	go s.monitorLoop()
	go s.workerLoop()

	log.Println("[prewarm] scheduler started")
	return nil
}

// Stop cancels the loops and waits for them, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[prewarm] scheduler stopped")
	case <-ctx.Done():
		log.Println("[prewarm] scheduler stopped (timeout)")
	}

	s.running = false
	return nil
}

// SetWatchlist replaces the watch list. Duplicate identities collapse to
// one entry; previously checked titles stay checked.
func (s *Service) SetWatchlist(items []models.PrewarmItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(items))
	s.watch = s.watch[:0]
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.watch = append(s.watch, item)
	}
	log.Printf("[prewarm] watch list set (%d items)", len(s.watch))
}

// Reset forgets the checked-set and drains the queue so the next monitor
// cycle re-verifies the whole watch list.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = make(map[string]struct{})
	s.queue = nil
	s.queued = make(map[string]struct{})
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		WatchlistSize: len(s.watch),
		CheckedCount:  len(s.checked),
		QueueLength:   len(s.queue),
		Warming:       s.warming,
		Hits:          s.hits,
		Warmed:        s.warmed,
		Failed:        s.failed,
	}
}

func (s *Service) monitorLoop() {
	defer s.wg.Done()

	for {
		pending := s.monitorCycle(s.ctx)

		// Drained lists only need an occasional re-scan.
		interval := s.cfg.DrainInterval
		if pending == 0 {
			interval = s.cfg.IdleInterval
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// monitorCycle checks every watch-list item not yet in the checked-set with
// one batched store read, then routes each to the hit callback or the work
// queue. Returns how many items were pending this cycle.
func (s *Service) monitorCycle(ctx context.Context) int {
	s.mu.Lock()
	var pending []models.PrewarmItem
	for _, item := range s.watch {
		if _, done := s.checked[item.Key()]; !done {
			pending = append(pending, item)
		}
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	keys := make([]string, len(pending))
	for i, item := range pending {
		keys[i] = item.Key()
	}

	found, err := s.store.GetMany(ctx, store.NamespaceBestSource, keys)
	if err != nil {
		// Store trouble is not fatal; items stay unchecked for the next cycle.
		log.Printf("[prewarm] batched cache check failed: %v", err)
		return len(pending)
	}

	for _, item := range pending {
		key := item.Key()

		s.mu.Lock()
		s.checked[key] = struct{}{}
		raw, hit := found[key]
		if !hit {
			if _, dup := s.queued[key]; !dup {
				s.queued[key] = struct{}{}
				s.queue = append(s.queue, item)
			}
			s.mu.Unlock()
			continue
		}
		s.hits++
		s.mu.Unlock()

		var cached models.BestSource
		if err := json.Unmarshal(raw, &cached); err != nil {
			log.Printf("[prewarm] corrupt cache entry for %q: %v", key, err)
			continue
		}
		if s.callbacks.OnCacheHit != nil {
			s.callbacks.OnCacheHit(item, cached)
		}
	}

	return len(pending)
}

func (s *Service) workerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.WorkerInterval):
		}

		item, ok := s.takeNext()
		if !ok {
			continue
		}

		s.warmItem(s.ctx, item)

		s.mu.Lock()
		s.warming = false
		s.mu.Unlock()

		// Rate-limits third-party search/detail traffic between items.
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.ItemDelay):
		}
	}
}

// takeNext pops the queue head unless a warm is already in flight. The
// worker is strictly serialized: at most one deep resolution at a time.
func (s *Service) takeNext() (models.PrewarmItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warming || len(s.queue) == 0 {
		return models.PrewarmItem{}, false
	}

	item := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, item.Key())
	s.warming = true
	return item, true
}

// warmItem resolves one title end to end and writes the winner into the
// cache. Failures are logged and counted; the item is not retried within
// this session.
func (s *Service) warmItem(ctx context.Context, item models.PrewarmItem) {
	runID := uuid.NewString()[:8]
	log.Printf("[prewarm] (%s) warming %q (%s)", runID, item.Title, item.Year)

	results, err := s.searcher.Search(ctx, item.Title)
	if err != nil {
		s.fail(runID, item, "search failed: %v", err)
		return
	}

	matches := s.matchCandidates(item, results)
	if len(matches) == 0 {
		s.fail(runID, item, "no matching candidates among %d results", len(results))
		return
	}

	details := make([]models.CandidateSource, 0, len(matches))
	for _, m := range matches {
		full, err := s.detailer.Detail(ctx, m.Source, m.ID)
		if err != nil {
			log.Printf("[prewarm] (%s) detail %s/%s failed: %v", runID, m.Source, m.ID, err)
			continue
		}
		if len(full.Episodes) == 0 {
			continue
		}
		details = append(details, *full)
	}
	if len(details) == 0 {
		s.fail(runID, item, "no candidate had playable episodes")
		return
	}

	best, err := s.picker.Select(ctx, details)
	if err != nil {
		s.fail(runID, item, "selection failed: %v", err)
		return
	}

	entry := models.NewBestSource(best.Source.Source, best.Source.ID, best.Source.SourceName, s.cfg.CacheTTL)
	raw, err := json.Marshal(entry)
	if err != nil {
		s.fail(runID, item, "encode cache entry: %v", err)
		return
	}
	if err := s.store.Set(ctx, store.NamespaceBestSource, item.Key(), raw, s.cfg.CacheTTL); err != nil {
		s.fail(runID, item, "cache write failed: %v", err)
		return
	}

	s.mu.Lock()
	s.warmed++
	s.mu.Unlock()

	log.Printf("[prewarm] (%s) warmed %q -> %s/%s (score %.2f)", runID, item.Title, best.Source.Source, best.Source.ID, best.Score)
	if s.callbacks.OnWarmed != nil {
		s.callbacks.OnWarmed(item, entry)
	}
}

// matchCandidates applies the fuzzy title filter and the exact-or-absent
// year rule, capped at cfg.MaxCandidates.
func (s *Service) matchCandidates(item models.PrewarmItem, results []models.CandidateSource) []models.CandidateSource {
	var out []models.CandidateSource
	for _, r := range results {
		if !similarity.TitlesMatch(item.Title, r.Title) {
			continue
		}
		if !similarity.YearMatches(item.Year, r.Year) {
			continue
		}
		out = append(out, r)
		if len(out) >= s.cfg.MaxCandidates {
			break
		}
	}
	return out
}

func (s *Service) fail(runID string, item models.PrewarmItem, format string, args ...any) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	log.Printf("[prewarm] (%s) %q: %s", runID, item.Title, fmt.Sprintf(format, args...))
}
