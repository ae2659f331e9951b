package aggregate

import "sort"

// Series is a named year-to-value raw series: internal counts or an
// external economic indicator.
type Series struct {
	Name   string          `json:"series_name"`
	Values map[int]float64 `json:"values"`
}

// IndexedPoint is one (year, raw, rebased) observation. Years with no
// raw data produce no point, never a zero.
type IndexedPoint struct {
	Year  int     `json:"year"`
	Raw   float64 `json:"raw_value"`
	Index float64 `json:"index_value"`
}

// IndexedSeries is a series rebased to 100 at the base year. When the
// series has no value at the requested base year, the nearest available
// year is substituted and recorded in BaseYearUsed.
type IndexedSeries struct {
	Name         string         `json:"series_name"`
	BaseYear     int            `json:"base_year"`
	BaseYearUsed int            `json:"base_year_used"`
	Substituted  bool           `json:"base_year_substituted"`
	Points       []IndexedPoint `json:"points"`
}

// Index rebases each series to 100 at baseYear. Series with no data, or
// whose base value is zero, are dropped: an index is undefined for
// them. Output order follows input order; points are sorted by year.
func Index(series []Series, baseYear int) []IndexedSeries {
	var out []IndexedSeries
	for _, s := range series {
		if len(s.Values) == 0 {
			continue
		}

		baseUsed, ok := nearestYear(s.Values, baseYear)
		if !ok {
			continue
		}
		baseValue := s.Values[baseUsed]
		if baseValue == 0 {
			continue
		}

		indexed := IndexedSeries{
			Name:         s.Name,
			BaseYear:     baseYear,
			BaseYearUsed: baseUsed,
			Substituted:  baseUsed != baseYear,
		}

		years := make([]int, 0, len(s.Values))
		for y := range s.Values {
			years = append(years, y)
		}
		sort.Ints(years)

		for _, y := range years {
			raw := s.Values[y]
			indexed.Points = append(indexed.Points, IndexedPoint{
				Year:  y,
				Raw:   raw,
				Index: raw / baseValue * 100,
			})
		}
		out = append(out, indexed)
	}
	return out
}

// nearestYear returns the year in values closest to want, preferring
// the earlier year on ties.
func nearestYear(values map[int]float64, want int) (int, bool) {
	if _, ok := values[want]; ok {
		return want, true
	}
	best, found := 0, false
	for y := range values {
		if !found {
			best, found = y, true
			continue
		}
		db, dy := abs(best-want), abs(y-want)
		if dy < db || (dy == db && y < best) {
			best = y
		}
	}
	return best, found
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
