package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/config"
	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/industry"
	"github.com/dgallion1/regstock/internal/legislation"
)

type stubFetcher struct {
	titles map[string][]legislation.Title
	texts  map[string]string

	failTitles bool
	failText   map[string]bool
}

func (f *stubFetcher) FetchTitles(_ context.Context, collection string) ([]legislation.Title, error) {
	if f.failTitles {
		return nil, fmt.Errorf("register unavailable")
	}
	return f.titles[collection], nil
}

func (f *stubFetcher) FetchDocumentText(_ context.Context, registerID string) ([]byte, error) {
	if f.failText[registerID] {
		return nil, fmt.Errorf("text unavailable")
	}
	text, ok := f.texts[registerID]
	if !ok {
		return nil, fmt.Errorf("no such document: %s", registerID)
	}
	return []byte("<html><body><p>" + text + "</p></body></html>"), nil
}

func testMapper(t *testing.T) *industry.Mapper {
	t.Helper()
	m, err := industry.NewMapper(industry.Tables{
		Departments: []industry.DepartmentRule{
			{Match: "Department of Health", Division: "Q"},
		},
		Keywords: []industry.KeywordRule{
			{Keyword: "bank", Division: "K"},
		},
		CrossCutting: []string{"corporations"},
	})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:               filepath.Join(t.TempDir(), "corpus.db"),
		BaseYear:             2020,
		TopN:                 aggregate.DefaultTopN,
		Methodology:          count.BC,
		CrossCuttingMode:     aggregate.CrossCuttingInclude,
		MaxConcurrentExtract: 2,
		RunTTL:               time.Hour,
	}
}

func testStore(t *testing.T, cfg config.Config) *corpus.Store {
	t.Helper()
	store, err := corpus.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("corpus.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitForRun(t *testing.T, run *Run) RunSnapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap := run.Snapshot()
		switch snap.Status {
		case StatusCompleted, StatusFailed, StatusPartial:
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run did not finish: %+v", run.Snapshot())
	return RunSnapshot{}
}

func TestRunner_CompleteRun(t *testing.T) {
	fetcher := &stubFetcher{
		titles: map[string][]legislation.Title{
			legislation.CollectionAct: {
				{RegisterID: "C2020A00001", Name: "Banking Act 2020", Collection: "Act", Year: 2020, Department: "Treasury", IsPrincipal: true, IsInForce: true},
				{RegisterID: "C2021A00002", Name: "Health Insurance Act 2021", Collection: "Act", Year: 2021, Department: "Department of Health", IsPrincipal: true, IsInForce: true},
			},
			legislation.CollectionLegislativeInstrument: {
				{RegisterID: "F2021L00001", Name: "Banking Rules 2021", Collection: "LegislativeInstrument", Year: 2021, Department: "Treasury", IsPrincipal: true, IsInForce: true},
			},
		},
		texts: map[string]string{
			"C2020A00001": "A bank must report. A bank must not conceal. Disclosure is required.",
			"C2021A00002": "Providers shall maintain records.",
			"F2021L00001": "A bank may not trade without a licence.",
		},
	}

	cfg := testConfig(t)
	store := testStore(t, cfg)
	runner := NewRunner(cfg, fetcher, store, testMapper(t), testLogger())
	runner.Start(context.Background())
	defer runner.Stop()

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	snap := waitForRun(t, run)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TitlesFetched != 3 {
		t.Errorf("TitlesFetched = %d, want 3", snap.Progress.TitlesFetched)
	}
	if snap.Progress.DocumentsProcessed != 3 {
		t.Errorf("DocumentsProcessed = %d, want 3", snap.Progress.DocumentsProcessed)
	}

	tables, runID := runner.Latest()
	if tables == nil {
		t.Fatal("Latest returned nil tables")
	}
	if runID != run.ID {
		t.Errorf("latest run ID = %s, want %s", runID, run.ID)
	}
	if len(tables.Stock) == 0 {
		t.Error("stock table is empty")
	}
	if len(tables.Industries) == 0 {
		t.Error("industry table is empty")
	}

	// "must report" counts, "must not conceal" is excluded, "required"
	// counts: BC count 2 for the banking act.
	var k, q float64
	for _, row := range tables.Industries {
		switch row.Division {
		case "K":
			k = row.ReqCount
		case "Q":
			q = row.ReqCount
		}
	}
	if k != 2 {
		t.Errorf("division K req count = %v, want 2 (banking act: must=1, required=1; rules have no BC words)", k)
	}
	if q != 1 {
		t.Errorf("division Q req count = %v, want 1 (shall)", q)
	}

	// The run summary is persisted alongside the corpus snapshot.
	recs, err := store.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != string(StatusCompleted) || recs[0].Documents != 3 {
		t.Errorf("run history = %+v, want one completed run covering 3 documents", recs)
	}
}

func TestRunner_ApportionDerivesSharesFromIndicators(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "indicators.csv"),
		"anzsic_division,year,gva_millions,employment_thousands,hours_worked_millions\n"+
			"K,2021,100,600,50\n"+
			"Q,2021,80,400,40\n")

	fetcher := &stubFetcher{
		titles: map[string][]legislation.Title{
			legislation.CollectionAct: {
				{RegisterID: "C2020A00001", Name: "Banking Act 2020", Year: 2020, Department: "Treasury", IsInForce: true},
				{RegisterID: "C2020A00002", Name: "Corporations Compliance Act 2020", Year: 2020, IsInForce: true},
			},
		},
		texts: map[string]string{
			"C2020A00001": "A bank must report.",
			"C2020A00002": "Directors must keep records.",
		},
	}

	cfg := testConfig(t)
	cfg.CrossCuttingMode = aggregate.CrossCuttingApportion
	cfg.IndicatorsPath = filepath.Join(dir, "indicators.csv")
	runner := NewRunner(cfg, fetcher, testStore(t, cfg), testMapper(t), testLogger())

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	snap := waitForRun(t, run)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", snap.Status, snap.Progress.Errors)
	}

	// Employment mix is K 600 / Q 400, so the cross-cutting act's one
	// requirement splits 0.6 / 0.4 on top of the banking act's own.
	tables, _ := runner.Latest()
	var k, q float64
	for _, row := range tables.Industries {
		switch row.Division {
		case "K":
			k = row.ReqCount
		case "Q":
			q = row.ReqCount
		case industry.CrossCutting:
			t.Errorf("apportionment should leave no cross-cutting row: %+v", row)
		}
	}
	if math.Abs(k-1.6) > 1e-6 {
		t.Errorf("division K req count = %v, want 1.6", k)
	}
	if math.Abs(q-0.4) > 1e-6 {
		t.Errorf("division Q req count = %v, want 0.4", q)
	}
}

func TestRunner_TitleFetchFailureFailsRun(t *testing.T) {
	fetcher := &stubFetcher{failTitles: true}
	cfg := testConfig(t)
	runner := NewRunner(cfg, fetcher, testStore(t, cfg), testMapper(t), testLogger())

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	snap := waitForRun(t, run)
	if snap.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if tables, _ := runner.Latest(); tables != nil {
		t.Error("failed run should not publish tables")
	}
}

func TestRunner_TextFailureIsPartial(t *testing.T) {
	fetcher := &stubFetcher{
		titles: map[string][]legislation.Title{
			legislation.CollectionAct: {
				{RegisterID: "C2020A00001", Name: "Banking Act 2020", Year: 2020, Department: "Treasury", IsInForce: true},
				{RegisterID: "C2020A00002", Name: "Broken Act 2020", Year: 2020, Department: "Treasury", IsInForce: true},
			},
		},
		texts:    map[string]string{"C2020A00001": "A bank must report."},
		failText: map[string]bool{"C2020A00002": true},
	}
	cfg := testConfig(t)
	runner := NewRunner(cfg, fetcher, testStore(t, cfg), testMapper(t), testLogger())

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	snap := waitForRun(t, run)
	if snap.Status != StatusPartial {
		t.Fatalf("status = %s, want partial (errors: %v)", snap.Status, snap.Progress.Errors)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", snap.Progress.Errors)
	}

	tables, _ := runner.Latest()
	if tables == nil {
		t.Fatal("partial run should still publish tables")
	}
	if len(tables.Stock) == 0 || tables.Stock[0].LegCount != 1 {
		t.Errorf("stock should cover the one surviving document: %+v", tables.Stock)
	}
}

func TestRunner_SingleFlight(t *testing.T) {
	block := make(chan struct{})
	fetcher := &blockingFetcher{release: block}
	cfg := testConfig(t)
	runner := NewRunner(cfg, fetcher, testStore(t, cfg), testMapper(t), testLogger())

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if _, err := runner.Trigger(); err != ErrRunInFlight {
		t.Errorf("second Trigger err = %v, want ErrRunInFlight", err)
	}
	close(block)
	waitForRun(t, run)

	// After the run finishes a new one can start.
	if _, err := runner.Trigger(); err != nil {
		t.Errorf("Trigger after completion: %v", err)
	}
}

type blockingFetcher struct {
	release chan struct{}
}

func (f *blockingFetcher) FetchTitles(_ context.Context, _ string) ([]legislation.Title, error) {
	<-f.release
	return nil, fmt.Errorf("register unavailable")
}

func (f *blockingFetcher) FetchDocumentText(_ context.Context, _ string) ([]byte, error) {
	return nil, fmt.Errorf("unreachable")
}

func TestRunner_LocalCorpusDirPreferred(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "C2020A00001.txt"),
		"Local copy. The operator must comply. Filing is required.")

	fetcher := &stubFetcher{
		titles: map[string][]legislation.Title{
			legislation.CollectionAct: {
				{RegisterID: "C2020A00001", Name: "Operators Act 2020", Year: 2020, Department: "Treasury", IsInForce: true},
			},
		},
		// No remote text: the run only succeeds if the local file wins.
	}
	cfg := testConfig(t)
	cfg.CorpusDir = dir
	runner := NewRunner(cfg, fetcher, testStore(t, cfg), testMapper(t), testLogger())

	run, err := runner.Trigger()
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	snap := waitForRun(t, run)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, errors = %v", snap.Status, snap.Progress.Errors)
	}

	tables, _ := runner.Latest()
	if got := tables.Stock[0].BCReqCount; got != 2 {
		t.Errorf("BC req count = %d, want 2 from the local file", got)
	}
}

func TestRunStore_Cleanup(t *testing.T) {
	store := NewRunStore(10 * time.Millisecond)
	run := &Run{ID: "r1", UpdatedAt: time.Now().Add(-time.Minute)}
	store.Put(run)
	fresh := &Run{ID: "r2", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()
	if store.Get("r1") != nil {
		t.Error("expired run should be evicted")
	}
	if store.Get("r2") == nil {
		t.Error("fresh run should survive cleanup")
	}
}

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newRunID()
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
