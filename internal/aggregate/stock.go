// Package aggregate turns the document table into the three
// chart-ready datasets: yearly legislation stock, per-industry totals,
// and indexed time series. All passes are deterministic and
// order-insensitive over an immutable snapshot.
package aggregate

import (
	"sort"

	"github.com/dgallion1/regstock/internal/corpus"
)

// StockOptions controls the stock pass.
type StockOptions struct {
	// RepealAdjusted subtracts repealed documents from cumulative
	// stock starting the year after repeal. Output is explicitly one
	// mode or the other, never a mix.
	RepealAdjusted bool
}

// YearlyStock is one row of cumulative stock per (year, type).
type YearlyStock struct {
	Year            int         `json:"year"`
	Type            corpus.Type `json:"leg_type"`
	LegCount        int         `json:"leg_count_cumulative"`
	BCReqCount      int         `json:"bc_req_count_cumulative"`
	RegDataReqCount int         `json:"regdata_req_count_cumulative"`
	// TitlesAdded preserves ingest order within the year.
	TitlesAdded []string `json:"titles_added_this_year,omitempty"`
	// RepealAdjusted echoes the mode the row was computed under.
	RepealAdjusted bool `json:"repeal_adjusted"`
}

type stockDelta struct {
	leg, bc, regdata int
	titles           []string
}

// Stock computes cumulative legislation and requirement stock per
// (year, type). Rows run from each type's first registration year to
// the latest year seen anywhere in the corpus, so every type yields a
// continuous series. Without repeal adjustment the cumulative counts
// are non-decreasing.
func Stock(docs []corpus.Document, opts StockOptions) []YearlyStock {
	if len(docs) == 0 {
		return nil
	}

	deltas := make(map[corpus.Type]map[int]*stockDelta)
	firstYear := make(map[corpus.Type]int)
	maxYear := 0

	delta := func(t corpus.Type, year int) *stockDelta {
		if deltas[t] == nil {
			deltas[t] = make(map[int]*stockDelta)
		}
		d := deltas[t][year]
		if d == nil {
			d = &stockDelta{}
			deltas[t][year] = d
		}
		return d
	}

	for _, doc := range docs {
		d := delta(doc.Type, doc.Year)
		d.leg++
		d.bc += doc.BCCount
		d.regdata += doc.RegDataCount
		d.titles = append(d.titles, doc.Title)

		if y, ok := firstYear[doc.Type]; !ok || doc.Year < y {
			firstYear[doc.Type] = doc.Year
		}
		if doc.Year > maxYear {
			maxYear = doc.Year
		}

		if opts.RepealAdjusted && doc.RepealYear != 0 {
			// Stops contributing the year after repeal.
			r := delta(doc.Type, doc.RepealYear+1)
			r.leg--
			r.bc -= doc.BCCount
			r.regdata -= doc.RegDataCount
			if doc.RepealYear+1 > maxYear {
				maxYear = doc.RepealYear + 1
			}
		}
	}

	var rows []YearlyStock
	for _, t := range corpus.Types {
		byYear, ok := deltas[t]
		if !ok {
			continue
		}
		leg, bc, regdata := 0, 0, 0
		for year := firstYear[t]; year <= maxYear; year++ {
			row := YearlyStock{Year: year, Type: t, RepealAdjusted: opts.RepealAdjusted}
			if d, ok := byYear[year]; ok {
				leg += d.leg
				bc += d.bc
				regdata += d.regdata
				row.TitlesAdded = d.titles
			}
			row.LegCount = leg
			row.BCReqCount = bc
			row.RegDataReqCount = regdata
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return typeRank(rows[i].Type) < typeRank(rows[j].Type)
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}

func typeRank(t corpus.Type) int {
	for i, known := range corpus.Types {
		if t == known {
			return i
		}
	}
	return len(corpus.Types)
}
