package industry

import (
	"fmt"
	"strings"
)

// ConfigError marks a configuration problem that must fail the whole
// run before any aggregation starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// DepartmentRule maps an administering department or agency name to a
// division. Rules are ordered; the first match wins.
type DepartmentRule struct {
	Match    string   `yaml:"match"`
	Division Division `yaml:"division"`
}

// KeywordRule maps a lowercase title keyword to a division. Rules are
// ordered; the first matching keyword wins.
type KeywordRule struct {
	Keyword  string   `yaml:"keyword"`
	Division Division `yaml:"division"`
}

// Tables holds the ordered mapping tables. Iteration order is the
// tie-break rule and is part of the configuration contract.
type Tables struct {
	Departments  []DepartmentRule `yaml:"departments"`
	Keywords     []KeywordRule    `yaml:"keywords"`
	CrossCutting []string         `yaml:"cross_cutting"`
}

// Validate checks the tables for structural problems: empty tables,
// unknown division codes, and duplicate keys with conflicting targets.
func (t *Tables) Validate() error {
	if len(t.Departments) == 0 {
		return &ConfigError{Field: "mapping.departments", Reason: "table is empty"}
	}
	if len(t.Keywords) == 0 {
		return &ConfigError{Field: "mapping.keywords", Reason: "table is empty"}
	}

	seenDept := make(map[string]Division, len(t.Departments))
	for i, rule := range t.Departments {
		key := strings.ToLower(strings.TrimSpace(rule.Match))
		if key == "" {
			return &ConfigError{
				Field:  fmt.Sprintf("mapping.departments[%d]", i),
				Reason: "empty match string",
			}
		}
		if !rule.Division.Valid() {
			return &ConfigError{
				Field:  fmt.Sprintf("mapping.departments[%d]", i),
				Reason: fmt.Sprintf("unknown division %q for %q", rule.Division, rule.Match),
			}
		}
		if prev, ok := seenDept[key]; ok && prev != rule.Division {
			return &ConfigError{
				Field:  "mapping.departments",
				Reason: fmt.Sprintf("duplicate key %q maps to both %q and %q", rule.Match, prev, rule.Division),
			}
		}
		seenDept[key] = rule.Division
	}

	seenKw := make(map[string]Division, len(t.Keywords))
	for i, rule := range t.Keywords {
		key := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if key == "" {
			return &ConfigError{
				Field:  fmt.Sprintf("mapping.keywords[%d]", i),
				Reason: "empty keyword",
			}
		}
		if !rule.Division.Valid() {
			return &ConfigError{
				Field:  fmt.Sprintf("mapping.keywords[%d]", i),
				Reason: fmt.Sprintf("unknown division %q for %q", rule.Division, rule.Keyword),
			}
		}
		if prev, ok := seenKw[key]; ok && prev != rule.Division {
			return &ConfigError{
				Field:  "mapping.keywords",
				Reason: fmt.Sprintf("duplicate keyword %q maps to both %q and %q", rule.Keyword, prev, rule.Division),
			}
		}
		seenKw[key] = rule.Division
	}

	for i, kw := range t.CrossCutting {
		if strings.TrimSpace(kw) == "" {
			return &ConfigError{
				Field:  fmt.Sprintf("mapping.cross_cutting[%d]", i),
				Reason: "empty keyword",
			}
		}
	}

	return nil
}
