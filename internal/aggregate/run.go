package aggregate

import (
	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
)

// Internal series names for the index pass.
const (
	SeriesLegislationStock = "legislation_stock"
	SeriesRequirementStock = "requirement_stock"
)

// Options bundles the settings for a full aggregation run.
type Options struct {
	Stock    StockOptions
	Industry IndustryOptions
	BaseYear int
	// External holds indicator series to index alongside the internal
	// counts. Series the caller could not fetch should be named in
	// AbsentSeries by the caller, never fabricated here.
	External []Series
}

// Tables is the complete output of one aggregation run, ready for the
// presentation layer. A run either produces all three tables or none.
type Tables struct {
	Stock      []YearlyStock       `json:"stock"`
	Industries []IndustryAggregate `json:"industries"`
	Indexed    []IndexedSeries     `json:"indexed"`
	// SkippedRows reports every document dropped by validation; a
	// partial result without this count is never acceptable.
	SkippedRows []corpus.RowError `json:"skipped_rows"`
	// AbsentSeries names external series that were configured but
	// unavailable this run.
	AbsentSeries []string `json:"absent_series,omitempty"`
}

// Run validates the snapshot and executes the three passes. Identical
// input and options yield identical tables.
func Run(docs []corpus.Document, assigner Assigner, opts Options) (*Tables, error) {
	valid, skipped := corpus.Screen(docs)

	industries, err := Industries(valid, assigner, opts.Industry)
	if err != nil {
		return nil, err
	}

	stock := Stock(valid, opts.Stock)

	series := append(internalSeries(stock, opts.Industry.Methodology), opts.External...)
	indexed := Index(series, opts.BaseYear)

	if skipped == nil {
		skipped = []corpus.RowError{}
	}
	return &Tables{
		Stock:       stock,
		Industries:  industries,
		Indexed:     indexed,
		SkippedRows: skipped,
	}, nil
}

// internalSeries derives the whole-of-corpus cumulative counts per year
// from the stock rows, summing across legislation types.
func internalSeries(stock []YearlyStock, m count.Methodology) []Series {
	leg := make(map[int]float64)
	req := make(map[int]float64)
	for _, row := range stock {
		leg[row.Year] += float64(row.LegCount)
		if m == count.RegData {
			req[row.Year] += float64(row.RegDataReqCount)
		} else {
			req[row.Year] += float64(row.BCReqCount)
		}
	}
	if len(leg) == 0 {
		return nil
	}

	return []Series{
		{Name: SeriesLegislationStock, Values: leg},
		{Name: SeriesRequirementStock, Values: req},
	}
}
