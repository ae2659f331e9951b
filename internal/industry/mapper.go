package industry

import "strings"

// MappingMethod records which lookup tier produced an assignment. The
// tiers double as confidence levels, department being the highest.
type MappingMethod string

const (
	MethodDepartment   MappingMethod = "department"
	MethodKeyword      MappingMethod = "keyword"
	MethodCrossCutting MappingMethod = "cross-cutting"
	MethodUnclassified MappingMethod = "unclassified"
)

// Assignment is the classification result for one document: exactly one
// division (or sentinel) and the method that produced it.
type Assignment struct {
	Division Division      `json:"anzsic_division"`
	Method   MappingMethod `json:"mapping_method"`
}

// Mapper classifies documents to divisions. It is a pure function of
// the mapping tables; construct once after validating configuration.
type Mapper struct {
	tables Tables
}

// NewMapper validates the tables and builds a mapper. A nil error means
// every Assign call is total: it always returns exactly one division.
func NewMapper(tables Tables) (*Mapper, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{tables: tables}, nil
}

// Assign classifies one document from its administering department and
// title. Precedence, in order:
//
//  1. department table match (an explicit mapping always wins, even
//     over cross-cutting keywords in the title)
//  2. cross-cutting keyword in title or department
//  3. keyword table match against the title
//  4. Unclassified
func (m *Mapper) Assign(department, title string) Assignment {
	if division, ok := m.lookupDepartment(department); ok {
		return Assignment{Division: division, Method: MethodDepartment}
	}

	if m.isCrossCutting(department, title) {
		return Assignment{Division: CrossCutting, Method: MethodCrossCutting}
	}

	if division, ok := m.lookupKeyword(title); ok {
		return Assignment{Division: division, Method: MethodKeyword}
	}

	return Assignment{Division: Unclassified, Method: MethodUnclassified}
}

// lookupDepartment finds the first department rule matching the given
// department name. Exact (case-insensitive) matches are tried across
// the whole table before substring matches, so "Treasury" prefers the
// "Treasury" rule over a broader "easur" style fragment earlier in the
// table.
func (m *Mapper) lookupDepartment(department string) (Division, bool) {
	dept := strings.ToLower(strings.TrimSpace(department))
	if dept == "" {
		return "", false
	}

	for _, rule := range m.tables.Departments {
		if strings.ToLower(strings.TrimSpace(rule.Match)) == dept {
			return rule.Division, true
		}
	}
	for _, rule := range m.tables.Departments {
		if strings.Contains(dept, strings.ToLower(strings.TrimSpace(rule.Match))) {
			return rule.Division, true
		}
	}
	return "", false
}

func (m *Mapper) isCrossCutting(department, title string) bool {
	haystack := strings.ToLower(department + " " + title)
	for _, kw := range m.tables.CrossCutting {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (m *Mapper) lookupKeyword(title string) (Division, bool) {
	lower := strings.ToLower(title)
	for _, rule := range m.tables.Keywords {
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule.Division, true
		}
	}
	return "", false
}
