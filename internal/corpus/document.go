// Package corpus holds the legislation document table: one immutable
// row per instrument or Act for a given run, replaced wholesale on
// re-scrape.
package corpus

import (
	"fmt"
	"time"
)

// Type is the legislation collection a document belongs to.
type Type string

const (
	TypeAct                   Type = "Act"
	TypeLegislativeInstrument Type = "LegislativeInstrument"
	TypeNotifiableInstrument  Type = "NotifiableInstrument"
)

// Types lists the collections in display order: primary first.
var Types = []Type{TypeAct, TypeLegislativeInstrument, TypeNotifiableInstrument}

// Valid reports whether t is a known collection.
func (t Type) Valid() bool {
	switch t {
	case TypeAct, TypeLegislativeInstrument, TypeNotifiableInstrument:
		return true
	}
	return false
}

// Document is one legislative instrument or Act with its requirement
// counts. Counts are computed once at ingest and cached on the row.
//
// RegDataCount >= BCCount usually holds but is a methodology artifact,
// not an invariant: a document using only negated "must"/"shall" can
// break it, so it is never enforced.
type Document struct {
	ID           string `json:"register_id"`
	Title        string `json:"title"`
	Type         Type   `json:"type"`
	Year         int    `json:"year"`
	Department   string `json:"department"`
	InForce      bool   `json:"in_force"`
	RepealYear   int    `json:"repeal_year,omitempty"` // 0 = never repealed
	BCCount      int    `json:"bc_count"`
	RegDataCount int    `json:"regdata_count"`
}

// RowError is a per-document validation diagnostic. Rows that fail
// validation are skipped, never silently dropped: callers must report
// the skipped count alongside results.
type RowError struct {
	ID     string `json:"register_id"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("document %s: %s", e.ID, e.Reason)
}

// Validate checks a single row for type and range problems.
func (d Document) Validate() error {
	if d.ID == "" {
		return RowError{ID: "(none)", Reason: "missing register id"}
	}
	if d.Title == "" {
		return RowError{ID: d.ID, Reason: "missing title"}
	}
	if !d.Type.Valid() {
		return RowError{ID: d.ID, Reason: fmt.Sprintf("unknown type %q", d.Type)}
	}
	if d.Year < 1901 || d.Year > time.Now().Year()+1 {
		return RowError{ID: d.ID, Reason: fmt.Sprintf("year %d out of range", d.Year)}
	}
	if d.RepealYear != 0 && d.RepealYear < d.Year {
		return RowError{ID: d.ID, Reason: fmt.Sprintf("repeal year %d before registration year %d", d.RepealYear, d.Year)}
	}
	if d.BCCount < 0 || d.RegDataCount < 0 {
		return RowError{ID: d.ID, Reason: "negative requirement count"}
	}
	return nil
}

// Screen validates every row, returning the valid documents in input
// order and a diagnostic for each skipped row.
func Screen(docs []Document) (valid []Document, skipped []RowError) {
	valid = make([]Document, 0, len(docs))
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			skipped = append(skipped, err.(RowError))
			continue
		}
		valid = append(valid, d)
	}
	return valid, skipped
}
