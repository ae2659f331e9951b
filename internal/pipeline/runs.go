package pipeline

import (
	"sync"
	"time"
)

// RunStatus represents the state of a scrape-and-aggregate run.
type RunStatus string

const (
	StatusQueued      RunStatus = "queued"
	StatusFetching    RunStatus = "fetching"
	StatusExtracting  RunStatus = "extracting"
	StatusAggregating RunStatus = "aggregating"
	StatusCompleted   RunStatus = "completed"
	StatusFailed      RunStatus = "failed"
	StatusPartial     RunStatus = "partial"
)

// Run tracks the state of a single corpus refresh.
type Run struct {
	mu sync.Mutex

	ID string `json:"run_id"`

	Status RunStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks how far a run has advanced through the corpus.
type Progress struct {
	TitlesFetched      int      `json:"titles_fetched"`
	DocumentsProcessed int      `json:"documents_processed"`
	DocumentsSkipped   int      `json:"documents_skipped"`
	Errors             []string `json:"errors"`
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if now.Sub(run.UpdatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status RunStatus, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.Phase = phase
	r.UpdatedAt = time.Now()
}

// AddError records an error.
func (r *Run) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.Progress.Errors = r.errors
	r.UpdatedAt = time.Now()
}

// SetTitlesFetched records how many register titles the run covers.
func (r *Run) SetTitlesFetched(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.TitlesFetched = n
	r.UpdatedAt = time.Now()
}

// IncrProcessed atomically increments documents processed.
func (r *Run) IncrProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.DocumentsProcessed++
	r.UpdatedAt = time.Now()
}

// SetSkipped records how many rows validation dropped.
func (r *Run) SetSkipped(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.DocumentsSkipped = n
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID        string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return RunSnapshot{
		ID:        r.ID,
		Status:    r.Status,
		Phase:     r.Phase,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Progress: Progress{
			TitlesFetched:      r.Progress.TitlesFetched,
			DocumentsProcessed: r.Progress.DocumentsProcessed,
			DocumentsSkipped:   r.Progress.DocumentsSkipped,
			Errors:             errs,
		},
	}
}
