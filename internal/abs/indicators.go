// Package abs loads Australian Bureau of Statistics economic
// indicators by ANZSIC division for the index pass: gross value added,
// employment and hours worked, with productivity derived as GVA per
// hour.
package abs

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/industry"
)

// Indicator is one (division, year) observation.
type Indicator struct {
	Division            industry.Division `json:"anzsic_division"`
	Year                int               `json:"year"`
	GVAMillions         float64           `json:"gva_millions"`
	EmploymentThousands float64           `json:"employment_thousands"`
	HoursWorkedMillions float64           `json:"hours_worked_millions"`
}

// Series names produced for the index pass.
const (
	SeriesGVA          = "gva_millions"
	SeriesEmployment   = "employment_thousands"
	SeriesProductivity = "gva_per_hour"
)

// csv columns: division,year,gva_millions,employment_thousands,hours_worked_millions
const expectedColumns = 5

// LoadCSV reads an indicator snapshot. Rows with unknown divisions or
// unparsable numbers fail the load: a fabricated indicator is worse
// than an absent one.
func LoadCSV(r io.Reader) ([]Indicator, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = expectedColumns

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read indicators csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("indicators csv has no data rows")
	}

	var out []Indicator
	for i, rec := range records[1:] { // skip header
		division := industry.Division(rec[0])
		if !division.Valid() || division == industry.CrossCutting || division == industry.Unclassified {
			return nil, fmt.Errorf("row %d: unknown division %q", i+2, rec[0])
		}
		year, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad year %q", i+2, rec[1])
		}
		gva, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad gva %q", i+2, rec[2])
		}
		emp, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad employment %q", i+2, rec[3])
		}
		hours, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad hours %q", i+2, rec[4])
		}
		out = append(out, Indicator{
			Division:            division,
			Year:                year,
			GVAMillions:         gva,
			EmploymentThousands: emp,
			HoursWorkedMillions: hours,
		})
	}
	return out, nil
}

// LoadFile loads indicators from a CSV file on disk.
func LoadFile(path string) ([]Indicator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open indicators file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// HeadlineSeries sums indicators across divisions per year and derives
// economy-wide GVA, employment and productivity series.
func HeadlineSeries(indicators []Indicator) []aggregate.Series {
	gva := make(map[int]float64)
	emp := make(map[int]float64)
	hours := make(map[int]float64)
	for _, ind := range indicators {
		gva[ind.Year] += ind.GVAMillions
		emp[ind.Year] += ind.EmploymentThousands
		hours[ind.Year] += ind.HoursWorkedMillions
	}

	productivity := make(map[int]float64)
	for year, g := range gva {
		if h := hours[year]; h > 0 {
			productivity[year] = g / h
		}
	}

	return []aggregate.Series{
		{Name: SeriesGVA, Values: gva},
		{Name: SeriesEmployment, Values: emp},
		{Name: SeriesProductivity, Values: productivity},
	}
}

// DivisionSeries builds the per-division GVA and employment series.
func DivisionSeries(indicators []Indicator, d industry.Division) []aggregate.Series {
	gva := make(map[int]float64)
	emp := make(map[int]float64)
	for _, ind := range indicators {
		if ind.Division != d {
			continue
		}
		gva[ind.Year] = ind.GVAMillions
		emp[ind.Year] = ind.EmploymentThousands
	}
	return []aggregate.Series{
		{Name: SeriesGVA, Values: gva},
		{Name: SeriesEmployment, Values: emp},
	}
}

// EmploymentShares derives the apportionment weight vector from the
// employment mix of the latest year at or before the given year.
func EmploymentShares(indicators []Indicator, year int) (industry.EmploymentShares, error) {
	years := make(map[int]bool)
	for _, ind := range indicators {
		if ind.Year <= year {
			years[ind.Year] = true
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no employment data at or before %d", year)
	}
	sorted := make([]int, 0, len(years))
	for y := range years {
		sorted = append(sorted, y)
	}
	sort.Ints(sorted)
	use := sorted[len(sorted)-1]

	byDivision := make(map[industry.Division]float64)
	var total float64
	for _, ind := range indicators {
		if ind.Year != use {
			continue
		}
		byDivision[ind.Division] += ind.EmploymentThousands
		total += ind.EmploymentThousands
	}
	if total <= 0 {
		return nil, fmt.Errorf("employment total for %d is zero", use)
	}

	shares := make(industry.EmploymentShares, len(byDivision))
	for _, d := range industry.Divisions() {
		shares[d] = byDivision[d] / total
	}
	if err := shares.Validate(); err != nil {
		return nil, err
	}
	return shares, nil
}
