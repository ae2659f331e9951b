package aggregate

import (
	"math"
	"testing"
)

func TestIndex_BaseYearExactlyHundred(t *testing.T) {
	series := []Series{{Name: "req", Values: map[int]float64{2000: 100, 2005: 150}}}
	out := Index(series, 2000)
	if len(out) != 1 {
		t.Fatalf("expected 1 series, got %d", len(out))
	}
	s := out[0]
	if s.Substituted || s.BaseYearUsed != 2000 {
		t.Errorf("no substitution expected: %+v", s)
	}
	if len(s.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(s.Points))
	}
	if s.Points[0].Index != 100.0 {
		t.Errorf("index at base year = %g, want exactly 100", s.Points[0].Index)
	}
	if s.Points[1].Index != 150.0 {
		t.Errorf("index at 2005 = %g, want 150", s.Points[1].Index)
	}
}

func TestIndex_MissingBaseYearSubstitutesNearest(t *testing.T) {
	series := []Series{{Name: "gva", Values: map[int]float64{2003: 80, 2010: 120}}}
	out := Index(series, 2000)
	if len(out) != 1 {
		t.Fatalf("expected 1 series, got %d", len(out))
	}
	s := out[0]
	if !s.Substituted {
		t.Error("substitution must be recorded, not silent")
	}
	if s.BaseYearUsed != 2003 {
		t.Errorf("nearest year should be 2003, got %d", s.BaseYearUsed)
	}
	if s.Points[0].Index != 100.0 {
		t.Errorf("index at substituted base = %g, want 100", s.Points[0].Index)
	}
}

func TestIndex_NearestYearTiePrefersEarlier(t *testing.T) {
	series := []Series{{Name: "s", Values: map[int]float64{1998: 50, 2002: 60}}}
	out := Index(series, 2000)
	if out[0].BaseYearUsed != 1998 {
		t.Errorf("tie should prefer earlier year, got %d", out[0].BaseYearUsed)
	}
}

func TestIndex_MissingYearsProduceNoRows(t *testing.T) {
	series := []Series{{Name: "s", Values: map[int]float64{2000: 10, 2004: 20}}}
	out := Index(series, 2000)
	for _, p := range out[0].Points {
		if p.Year > 2000 && p.Year < 2004 {
			t.Errorf("gap year %d must produce no point", p.Year)
		}
	}
	if len(out[0].Points) != 2 {
		t.Errorf("expected 2 points, got %d", len(out[0].Points))
	}
}

func TestIndex_EmptyAndZeroBaseSeriesDropped(t *testing.T) {
	series := []Series{
		{Name: "empty", Values: map[int]float64{}},
		{Name: "zero", Values: map[int]float64{2000: 0, 2001: 5}},
		{Name: "ok", Values: map[int]float64{2000: 5}},
	}
	out := Index(series, 2000)
	if len(out) != 1 || out[0].Name != "ok" {
		t.Errorf("expected only 'ok' series to survive, got %+v", out)
	}
}

func TestIndex_PointsSortedByYear(t *testing.T) {
	series := []Series{{Name: "s", Values: map[int]float64{2010: 3, 2000: 1, 2005: 2}}}
	out := Index(series, 2000)
	points := out[0].Points
	for i := 1; i < len(points); i++ {
		if points[i].Year <= points[i-1].Year {
			t.Fatalf("points not sorted: %+v", points)
		}
	}
}

func TestIndex_RawValuesPreserved(t *testing.T) {
	series := []Series{{Name: "s", Values: map[int]float64{2000: 40, 2001: 50}}}
	out := Index(series, 2000)
	if out[0].Points[1].Raw != 50 {
		t.Errorf("raw value not preserved: %+v", out[0].Points[1])
	}
	if math.Abs(out[0].Points[1].Index-125) > 1e-9 {
		t.Errorf("index = %g, want 125", out[0].Points[1].Index)
	}
}
