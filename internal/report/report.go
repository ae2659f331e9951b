// Package report builds the summary report comparing both counting
// methodologies, as Markdown rendered to a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/corpus"
)

const reportTitle = "Australian Regulatory Burden Analysis"

// Meta carries report provenance.
type Meta struct {
	DataSource  string
	Scope       string
	GeneratedAt time.Time
}

// Build produces the Markdown report from the aggregation tables and
// the corpus snapshot they were computed from.
func Build(tables *aggregate.Tables, docs []corpus.Document, meta Meta) string {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	if meta.DataSource == "" {
		meta.DataSource = "legislation.gov.au"
	}

	var bcTotal, rdTotal int
	for _, d := range docs {
		bcTotal += d.BCCount
		rdTotal += d.RegDataCount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", reportTitle)
	fmt.Fprintf(&b, "Analysis Date: %s | Source: %s\n\n",
		meta.GeneratedAt.Format("2 January 2006"), meta.DataSource)

	b.WriteString("## Summary Statistics\n\n")
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Total Documents Analyzed | %d |\n", len(docs))
	fmt.Fprintf(&b, "| BC Method Requirements | %d |\n", bcTotal)
	fmt.Fprintf(&b, "| RegData Method Restrictions | %d |\n", rdTotal)
	fmt.Fprintf(&b, "| Difference (RegData vs BC) | %s |\n", pctDiff(bcTotal, rdTotal))
	if meta.Scope != "" {
		fmt.Fprintf(&b, "| Scope | %s |\n", meta.Scope)
	}
	if len(tables.SkippedRows) > 0 {
		fmt.Fprintf(&b, "| Rows Skipped by Validation | %d |\n", len(tables.SkippedRows))
	}
	b.WriteString("\n")

	b.WriteString("## Requirements by Industry\n\n")
	if len(tables.Industries) == 0 {
		b.WriteString("No industry data available.\n\n")
	} else {
		b.WriteString("| Division | Industry | Legislation | Requirements | Share |\n|---|---|---:|---:|---:|\n")
		for _, row := range tables.Industries {
			fmt.Fprintf(&b, "| %s | %s | %d | %.0f | %.1f%% |\n",
				row.Division, row.Name, row.LegCount, row.ReqCount, row.PctOfTotal*100)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Top 10 Most Burdensome Legislation\n\n")
	top := topLegislation(tables, 10)
	if len(top) == 0 {
		b.WriteString("No legislation data available.\n\n")
	} else {
		b.WriteString("| Rank | Title | Requirements |\n|---:|---|---:|\n")
		for i, ref := range top {
			fmt.Fprintf(&b, "| %d | %s | %d |\n", i+1, truncate(ref.Title, 60), ref.ReqCount)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Methodology Notes\n\n")
	b.WriteString("**BC Method:** Counts binding words (\"must\", \"shall\", \"required\") that indicate " +
		"mandatory obligations. Excludes prohibitions (\"must not\", \"shall not\") and discretionary " +
		"language (\"may\"). Based on British Columbia's regulatory counting approach.\n\n")
	b.WriteString("**RegData Method:** Counts restriction words (\"shall\", \"must\", \"may not\", " +
		"\"required\", \"prohibited\") following the Mercatus Center/QuantGov methodology. Includes " +
		"prohibitions, which accounts for higher counts compared to the BC method.\n\n")
	b.WriteString("**Expected Differences:** The RegData method typically produces higher counts " +
		"because it includes prohibitions, while the BC method focuses on affirmative obligations. " +
		"Both metrics provide valid but different perspectives on regulatory burden.\n\n")

	fmt.Fprintf(&b, "---\n\nGenerated: %s | Data Source: %s | Tool: regstock\n",
		meta.GeneratedAt.Format("2006-01-02 15:04"), meta.DataSource)

	return b.String()
}

// RenderHTML converts the Markdown report into a standalone HTML page.
func RenderHTML(markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", reportTitle)
	page.WriteString("<style>\n" + pageCSS + "</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

const pageCSS = `body{font-family:Helvetica,Arial,sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem;color:#1a1a2e}
h1{text-align:center}
h2{color:#2E86AB;border-bottom:1px solid #dee2e6;padding-bottom:.2rem}
table{border-collapse:collapse;width:100%;font-size:.9rem}
th{background:#2E86AB;color:#fff;text-align:left;padding:.3rem .5rem}
td{border:1px solid #dee2e6;padding:.3rem .5rem}
tr:nth-child(even){background:#f8f9fa}
`

// topLegislation merges the per-division drill-downs into one ranked
// list, deduplicating documents that appear under multiple divisions.
func topLegislation(tables *aggregate.Tables, n int) []aggregate.DocRef {
	seen := make(map[string]bool)
	var refs []aggregate.DocRef
	for _, row := range tables.Industries {
		for _, ref := range row.TopDocs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ReqCount != refs[j].ReqCount {
			return refs[i].ReqCount > refs[j].ReqCount
		}
		return refs[i].ID < refs[j].ID
	})
	if len(refs) > n {
		refs = refs[:n]
	}
	return refs
}

func pctDiff(base, other int) string {
	if base == 0 {
		return "N/A"
	}
	d := float64(other-base) / float64(base) * 100
	if d >= 0 {
		return fmt.Sprintf("+%.1f%%", d)
	}
	return fmt.Sprintf("%.1f%%", d)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
