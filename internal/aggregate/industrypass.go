package aggregate

import (
	"fmt"
	"sort"

	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/industry"
)

// CrossCuttingMode selects how cross-cutting documents enter the
// industry totals.
type CrossCuttingMode string

const (
	// CrossCuttingInclude shows cross-cutting as its own bar.
	CrossCuttingInclude CrossCuttingMode = "include"
	// CrossCuttingExclude drops cross-cutting documents entirely.
	CrossCuttingExclude CrossCuttingMode = "exclude"
	// CrossCuttingApportion distributes cross-cutting requirement
	// counts across the 19 divisions by employment share.
	CrossCuttingApportion CrossCuttingMode = "apportion"
)

// DefaultTopN is the drill-down depth per division.
const DefaultTopN = 20

// IndustryOptions controls the industry pass.
type IndustryOptions struct {
	Methodology count.Methodology
	Mode        CrossCuttingMode
	// Shares is required when Mode is CrossCuttingApportion.
	Shares industry.EmploymentShares
	TopN   int
}

// DocRef is a drill-down reference to a high-count document.
type DocRef struct {
	ID       string `json:"register_id"`
	Title    string `json:"title"`
	ReqCount int    `json:"req_count"`
}

// IndustryAggregate is one row per division (or sentinel).
type IndustryAggregate struct {
	Division industry.Division `json:"anzsic_division"`
	Name     string            `json:"anzsic_name"`
	LegCount int               `json:"leg_count"`
	// ReqCount is fractional only under apportionment.
	ReqCount   float64  `json:"req_count"`
	PctOfTotal float64  `json:"pct_of_total"`
	TopDocs    []DocRef `json:"top_legislation,omitempty"`
}

// Assigner classifies one document; industry.Mapper satisfies it.
type Assigner interface {
	Assign(department, title string) industry.Assignment
}

// Industries aggregates requirement and legislation counts per
// division. No document is double-counted: each contributes to exactly
// one division unless apportionment distributes its requirement count.
// pct_of_total is a fraction; the rows sum to 1.0 within floating-point
// tolerance for a fixed cross-cutting mode.
func Industries(docs []corpus.Document, assigner Assigner, opts IndustryOptions) ([]IndustryAggregate, error) {
	countFn, err := methodologyCount(opts.Methodology)
	if err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = CrossCuttingInclude
	}
	switch opts.Mode {
	case CrossCuttingInclude, CrossCuttingExclude, CrossCuttingApportion:
	default:
		return nil, &industry.ConfigError{
			Field:  "cross_cutting_mode",
			Reason: fmt.Sprintf("unknown mode %q", opts.Mode),
		}
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Mode == CrossCuttingApportion {
		if err := opts.Shares.Validate(); err != nil {
			return nil, err
		}
	}

	type bucket struct {
		leg  int
		req  float64
		docs []DocRef
	}
	buckets := make(map[industry.Division]*bucket)
	get := func(d industry.Division) *bucket {
		b := buckets[d]
		if b == nil {
			b = &bucket{}
			buckets[d] = b
		}
		return b
	}

	for _, doc := range docs {
		a := assigner.Assign(doc.Department, doc.Title)
		req := countFn(doc)

		if a.Division == industry.CrossCutting {
			switch opts.Mode {
			case CrossCuttingExclude:
				continue
			case CrossCuttingApportion:
				for division, share := range opts.Shares.Apportion(req) {
					get(division).req += share
				}
				continue
			}
		}

		b := get(a.Division)
		b.leg++
		b.req += float64(req)
		b.docs = append(b.docs, DocRef{ID: doc.ID, Title: doc.Title, ReqCount: req})
	}

	var total float64
	for _, b := range buckets {
		total += b.req
	}

	var rows []IndustryAggregate
	for division, b := range buckets {
		sort.SliceStable(b.docs, func(i, j int) bool {
			if b.docs[i].ReqCount != b.docs[j].ReqCount {
				return b.docs[i].ReqCount > b.docs[j].ReqCount
			}
			return b.docs[i].ID < b.docs[j].ID
		})
		top := b.docs
		if len(top) > opts.TopN {
			top = top[:opts.TopN]
		}
		row := IndustryAggregate{
			Division: division,
			Name:     division.Name(),
			LegCount: b.leg,
			ReqCount: b.req,
			TopDocs:  top,
		}
		if total > 0 {
			row.PctOfTotal = b.req / total
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ReqCount != rows[j].ReqCount {
			return rows[i].ReqCount > rows[j].ReqCount
		}
		return rows[i].Division < rows[j].Division
	})
	return rows, nil
}

func methodologyCount(m count.Methodology) (func(corpus.Document) int, error) {
	switch m {
	case count.BC, "":
		return func(d corpus.Document) int { return d.BCCount }, nil
	case count.RegData:
		return func(d corpus.Document) int { return d.RegDataCount }, nil
	default:
		return nil, &industry.ConfigError{
			Field:  "methodology",
			Reason: fmt.Sprintf("unknown methodology %q", m),
		}
	}
}
