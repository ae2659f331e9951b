package aggregate

import (
	"reflect"
	"testing"

	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
)

func runOptions() Options {
	return Options{
		Industry: IndustryOptions{Methodology: count.BC, Mode: CrossCuttingInclude},
		BaseYear: 2000,
		External: []Series{
			{Name: "gva_total", Values: map[int]float64{2000: 1000, 2001: 1050, 2002: 1100}},
		},
	}
}

func TestRun_ProducesAllThreeTables(t *testing.T) {
	tables, err := Run(stockCorpus(), industryMapper(t), runOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tables.Stock) == 0 {
		t.Error("stock table is empty")
	}
	if len(tables.Industries) == 0 {
		t.Error("industries table is empty")
	}
	if len(tables.Indexed) != 3 { // legislation, requirements, gva
		t.Errorf("expected 3 indexed series, got %d", len(tables.Indexed))
	}
}

func TestRun_SkippedRowsReported(t *testing.T) {
	docs := append(stockCorpus(), corpus.Document{
		ID: "BROKEN", Title: "", Type: corpus.TypeAct, Year: 2001,
	})
	tables, err := Run(docs, industryMapper(t), runOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tables.SkippedRows) != 1 || tables.SkippedRows[0].ID != "BROKEN" {
		t.Errorf("skipped rows must be reported with ids: %+v", tables.SkippedRows)
	}
	// The bad row contributes nothing.
	for _, r := range tables.Stock {
		if r.Type == corpus.TypeAct && r.Year == 2002 && r.LegCount != 3 {
			t.Errorf("skipped row leaked into stock: %+v", r)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	docs := stockCorpus()
	mapper := industryMapper(t)
	opts := runOptions()

	first, err := Run(docs, mapper, opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(docs, mapper, opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input and options must yield identical tables")
	}
}

func TestRun_ConfigErrorFailsWholeRun(t *testing.T) {
	opts := runOptions()
	opts.Industry.Mode = CrossCuttingApportion
	opts.Industry.Shares = nil

	tables, err := Run(stockCorpus(), industryMapper(t), opts)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if tables != nil {
		t.Error("a failed run must produce no partial tables")
	}
}

func TestRun_InternalSeriesIndexed(t *testing.T) {
	tables, err := Run(stockCorpus(), industryMapper(t), runOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	names := make(map[string]bool)
	for _, s := range tables.Indexed {
		names[s.Name] = true
	}
	if !names[SeriesLegislationStock] || !names[SeriesRequirementStock] {
		t.Errorf("internal series missing from index output: %v", names)
	}
}
