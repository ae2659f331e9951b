// Package industry classifies legislation to ANZSIC industry divisions
// using ordered department and keyword mapping tables supplied as
// configuration.
package industry

// Division is a single-letter ANZSIC division code, or one of the two
// sentinels: "X" (cross-cutting) and "U" (unclassified).
type Division string

const (
	CrossCutting Division = "X"
	Unclassified Division = "U"
)

// DivisionNames maps each code to its display name.
var DivisionNames = map[Division]string{
	"A": "Agriculture, Forestry and Fishing",
	"B": "Mining",
	"C": "Manufacturing",
	"D": "Electricity, Gas, Water and Waste Services",
	"E": "Construction",
	"F": "Wholesale Trade",
	"G": "Retail Trade",
	"H": "Accommodation and Food Services",
	"I": "Transport, Postal and Warehousing",
	"J": "Information Media and Telecommunications",
	"K": "Financial and Insurance Services",
	"L": "Rental, Hiring and Real Estate Services",
	"M": "Professional, Scientific and Technical Services",
	"N": "Administrative and Support Services",
	"O": "Public Administration and Safety",
	"P": "Education and Training",
	"Q": "Health Care and Social Assistance",
	"R": "Arts and Recreation Services",
	"S": "Other Services",
	CrossCutting: "Cross-cutting (All Industries)",
	Unclassified: "Unclassified",
}

// DivisionOrder is the display order: the 19 divisions A-S, then the
// sentinels.
var DivisionOrder = []Division{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J",
	"K", "L", "M", "N", "O", "P", "Q", "R", "S",
	CrossCutting, Unclassified,
}

// Divisions returns the 19 proper ANZSIC divisions, excluding sentinels.
func Divisions() []Division {
	return DivisionOrder[:19]
}

// Valid reports whether d is a known division code or sentinel.
func (d Division) Valid() bool {
	_, ok := DivisionNames[d]
	return ok
}

// Name returns the display name for d, or "Unknown".
func (d Division) Name() string {
	if name, ok := DivisionNames[d]; ok {
		return name
	}
	return "Unknown"
}

// Label returns "A: Agriculture, Forestry and Fishing" style labels.
func (d Division) Label() string {
	return string(d) + ": " + d.Name()
}
