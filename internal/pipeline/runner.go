package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/regstock/internal/abs"
	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/config"
	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/extract"
	"github.com/dgallion1/regstock/internal/legislation"
)

// ErrRunInFlight is returned by Trigger while a refresh is already
// running. Runs replace the whole corpus snapshot, so they never
// overlap.
var ErrRunInFlight = errors.New("a refresh run is already in flight")

// Fetcher is the register surface the runner needs. *legislation.Client
// satisfies it; tests substitute a stub.
type Fetcher interface {
	FetchTitles(ctx context.Context, collection string) ([]legislation.Title, error)
	FetchDocumentText(ctx context.Context, registerID string) ([]byte, error)
}

var collections = []struct {
	collection string
	docType    corpus.Type
}{
	{legislation.CollectionAct, corpus.TypeAct},
	{legislation.CollectionLegislativeInstrument, corpus.TypeLegislativeInstrument},
	{legislation.CollectionNotifiableInstrument, corpus.TypeNotifiableInstrument},
}

// Runner executes refresh runs: fetch titles, extract and count
// requirement words, persist the corpus, and aggregate.
type Runner struct {
	cfg      config.Config
	fetcher  Fetcher
	store    *corpus.Store
	assigner aggregate.Assigner
	runs     *RunStore
	log      *slog.Logger

	mu       sync.Mutex
	inFlight bool
	latest   *aggregate.Tables
	latestID string

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(cfg config.Config, fetcher Fetcher, store *corpus.Store, assigner aggregate.Assigner, log *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		assigner: assigner,
		runs:     NewRunStore(cfg.RunTTL),
		log:      log,
	}
}

// Start launches the run store cleanup loop. Runs themselves are
// started by Trigger.
func (r *Runner) Start(ctx context.Context) {
	r.runCtx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-r.runCtx.Done():
				return
			case <-ticker.C:
				r.runs.Cleanup()
			}
		}
	}()
}

// Stop cancels any in-flight run and waits for goroutines to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Trigger starts a refresh run unless one is already in flight.
func (r *Runner) Trigger() (*Run, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return nil, ErrRunInFlight
	}
	r.inFlight = true
	r.mu.Unlock()

	now := time.Now()
	run := &Run{
		ID:        newRunID(),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.runs.Put(run)

	ctx := r.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.inFlight = false
			r.mu.Unlock()
		}()
		r.process(ctx, run)
	}()
	return run, nil
}

// GetRun returns a run by ID, or nil.
func (r *Runner) GetRun(id string) *Run {
	return r.runs.Get(id)
}

// Latest returns the most recent aggregation tables and the run that
// produced them. Nil until the first successful run.
func (r *Runner) Latest() (*aggregate.Tables, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.latestID
}

// SetLatest seeds the served tables, used at startup to serve a prior
// snapshot before the first refresh completes.
func (r *Runner) SetLatest(tables *aggregate.Tables, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = tables
	r.latestID = runID
}

// process runs the full refresh for a run.
func (r *Runner) process(ctx context.Context, run *Run) {
	log := r.log.With("run_id", run.ID)

	// Phase 1: fetch the title lists for all three collections.
	run.SetStatus(StatusFetching, "fetching")
	type entry struct {
		title   legislation.Title
		docType corpus.Type
	}
	var entries []entry
	for _, c := range collections {
		titles, err := r.fetcher.FetchTitles(ctx, c.collection)
		if err != nil {
			log.Error("title fetch failed", "collection", c.collection, "error", err)
			run.AddError(fmt.Sprintf("fetch %s: %s", c.collection, err))
			run.SetStatus(StatusFailed, "fetching")
			return
		}
		for _, t := range titles {
			entries = append(entries, entry{title: t, docType: c.docType})
		}
	}
	run.SetTitlesFetched(len(entries))
	log.Info("titles fetched", "count", len(entries))

	if len(entries) == 0 {
		run.AddError("register returned no principal titles")
		run.SetStatus(StatusFailed, "fetching")
		return
	}

	// Phase 2: extract text and count requirement words with bounded
	// concurrency. Results keep input order so identical snapshots
	// produce identical corpora.
	run.SetStatus(StatusExtracting, "extracting")
	type docResult struct {
		doc corpus.Document
		err error
	}
	results := make([]docResult, len(entries))
	sem := make(chan struct{}, r.cfg.MaxConcurrentExtract)
	var extractWG sync.WaitGroup

	for i, e := range entries {
		sem <- struct{}{}
		extractWG.Add(1)
		go func(i int, e entry) {
			defer extractWG.Done()
			defer func() { <-sem }()
			doc, err := r.buildDocument(ctx, e.title, e.docType)
			results[i] = docResult{doc: doc, err: err}
			run.IncrProcessed()
		}(i, e)
	}
	extractWG.Wait()

	var docs []corpus.Document
	hadErrors := false
	for i, res := range results {
		if res.err != nil {
			log.Error("document failed", "register_id", entries[i].title.RegisterID, "error", res.err)
			run.AddError(fmt.Sprintf("%s: %s", entries[i].title.RegisterID, res.err))
			hadErrors = true
			continue
		}
		docs = append(docs, res.doc)
	}
	log.Info("extraction complete", "documents", len(docs), "errors", hadErrors)

	if len(docs) == 0 {
		run.SetStatus(StatusFailed, "extracting")
		return
	}

	// Phase 3: persist the snapshot and aggregate.
	run.SetStatus(StatusAggregating, "aggregating")
	if err := r.store.ReplaceAll(ctx, docs); err != nil {
		log.Error("corpus store failed", "error", err)
		run.AddError(fmt.Sprintf("store: %s", err))
		run.SetStatus(StatusFailed, "aggregating")
		return
	}

	indicators, absent := r.loadIndicators(log)
	var external []aggregate.Series
	if len(indicators) > 0 {
		external = abs.HeadlineSeries(indicators)
	}

	shares := r.cfg.Shares()
	if shares == nil && r.cfg.CrossCuttingMode == aggregate.CrossCuttingApportion && len(indicators) > 0 {
		derived, err := abs.EmploymentShares(indicators, time.Now().Year())
		if err != nil {
			log.Error("employment share derivation failed", "error", err)
			run.AddError(fmt.Sprintf("employment shares: %s", err))
			run.SetStatus(StatusFailed, "aggregating")
			return
		}
		shares = derived
		log.Info("employment shares derived from indicator snapshot")
	}

	tables, err := aggregate.Run(docs, r.assigner, aggregate.Options{
		Stock: aggregate.StockOptions{RepealAdjusted: r.cfg.RepealAdjusted},
		Industry: aggregate.IndustryOptions{
			Methodology: r.cfg.Methodology,
			Mode:        r.cfg.CrossCuttingMode,
			Shares:      shares,
			TopN:        r.cfg.TopN,
		},
		BaseYear: r.cfg.BaseYear,
		External: external,
	})
	if err != nil {
		log.Error("aggregation failed", "error", err)
		run.AddError(fmt.Sprintf("aggregate: %s", err))
		run.SetStatus(StatusFailed, "aggregating")
		return
	}
	tables.AbsentSeries = absent
	run.SetSkipped(len(tables.SkippedRows))

	r.mu.Lock()
	r.latest = tables
	r.latestID = run.ID
	r.mu.Unlock()

	if hadErrors {
		run.SetStatus(StatusPartial, "done")
	} else {
		run.SetStatus(StatusCompleted, "done")
	}

	snap := run.Snapshot()
	if err := r.store.RecordRun(ctx, corpus.RunRecord{
		StartedAt:   snap.CreatedAt,
		CompletedAt: snap.UpdatedAt,
		Documents:   len(docs),
		Skipped:     len(tables.SkippedRows),
		Status:      string(snap.Status),
	}); err != nil {
		log.Warn("run history write failed", "error", err)
	}

	log.Info("run complete", "status", snap.Status,
		"documents", len(docs), "skipped_rows", len(tables.SkippedRows))
}

// buildDocument turns one register title into a counted corpus row.
func (r *Runner) buildDocument(ctx context.Context, t legislation.Title, docType corpus.Type) (corpus.Document, error) {
	text, err := r.documentText(ctx, t.RegisterID)
	if err != nil {
		return corpus.Document{}, err
	}

	bc := count.CountBC(text)
	rd := count.CountRegData(text)

	return corpus.Document{
		ID:           t.RegisterID,
		Title:        t.Name,
		Type:         docType,
		Year:         t.Year,
		Department:   t.Department,
		InForce:      t.IsInForce,
		RepealYear:   t.RepealYear(),
		BCCount:      bc.Total,
		RegDataCount: rd.Total,
	}, nil
}

// documentText prefers a pre-downloaded file in the corpus directory
// and falls back to fetching the register's HTML rendition.
func (r *Runner) documentText(ctx context.Context, registerID string) (string, error) {
	if r.cfg.CorpusDir != "" {
		for _, ext := range []string{".txt", ".html", ".htm", ".pdf", ".docx"} {
			path := filepath.Join(r.cfg.CorpusDir, registerID+ext)
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			defer f.Close()
			ex, err := extract.ForFile(path)
			if err != nil {
				return "", err
			}
			if pdfEx, ok := ex.(*extract.PDFExtractor); ok {
				pdfEx.FallbackPdftotext = r.cfg.PDFFallbackPdftotext
			}
			return ex.Extract(f, path)
		}
	}

	body, err := r.fetcher.FetchDocumentText(ctx, registerID)
	if err != nil {
		return "", err
	}
	ex := &extract.HTMLExtractor{}
	return ex.Extract(bytes.NewReader(body), registerID+".html")
}

// loadIndicators loads the ABS indicator snapshot if one is
// configured. A failed load absents the series rather than failing the
// run.
func (r *Runner) loadIndicators(log *slog.Logger) ([]abs.Indicator, []string) {
	if r.cfg.IndicatorsPath == "" {
		return nil, nil
	}
	indicators, err := abs.LoadFile(r.cfg.IndicatorsPath)
	if err != nil {
		log.Warn("indicator load failed, indexing internal series only", "error", err)
		return nil, []string{abs.SeriesGVA, abs.SeriesEmployment, abs.SeriesProductivity}
	}
	return indicators, nil
}
