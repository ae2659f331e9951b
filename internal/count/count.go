// Package count implements the two lexical requirement-counting
// methodologies applied to legislation text.
//
// BC method: counts binding words ("must", "shall", "required") and
// excludes negated forms ("must not", "shall not").
//
// RegData method: counts restriction words ("shall", "must", "may not",
// "required", "prohibited"); "may not" is a positive hit.
package count

import (
	"fmt"
	"regexp"
	"strings"
)

// Methodology names a counting methodology.
type Methodology string

const (
	BC      Methodology = "bc"
	RegData Methodology = "regdata"
)

// Result holds the total requirement count and the per-word breakdown.
type Result struct {
	Total  int            `json:"total"`
	ByWord map[string]int `json:"by_word"`
}

// BCBindingWords are the words the BC methodology counts.
var BCBindingWords = []string{"must", "shall", "required"}

// RegDataWords are the words the RegData methodology counts. Multi-word
// entries are matched and masked before single words are counted.
var RegDataWords = []string{"shall", "must", "may not", "required", "prohibited"}

// placeholder survives word-boundary matching without containing any
// counted token.
const placeholder = " _x_ "

var (
	whitespaceRE = regexp.MustCompile(`\s+`)

	// Negated and vacated forms excluded from the BC tally.
	bcExclusionREs = []*regexp.Regexp{
		regexp.MustCompile(`\bmust\s+not\b`),
		regexp.MustCompile(`\bshall\s+not\b`),
		regexp.MustCompile(`\bmust\s+never\b`),
		regexp.MustCompile(`\bshall\s+never\b`),
		regexp.MustCompile(`\bnot\s+required\b`),
		regexp.MustCompile(`\bno\s+longer\s+required\b`),
	}

	bcWordREs      = compileWordPatterns(BCBindingWords)
	regdataMultiRE = regexp.MustCompile(`\bmay\s+not\b`)
	regdataWordREs = compileWordPatterns([]string{"shall", "must", "required", "prohibited"})
)

func compileWordPatterns(words []string) map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(words))
	for _, w := range words {
		res[w] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return res
}

// normalize lowercases and collapses whitespace so multi-word patterns
// match across line breaks.
func normalize(text string) string {
	return whitespaceRE.ReplaceAllString(strings.ToLower(text), " ")
}

// CountBC counts requirements in text using the BC methodology.
func CountBC(text string) Result {
	r := Result{ByWord: make(map[string]int, len(BCBindingWords))}
	if strings.TrimSpace(text) == "" {
		return r
	}

	masked := normalize(text)
	for _, re := range bcExclusionREs {
		masked = re.ReplaceAllString(masked, placeholder)
	}

	for _, w := range BCBindingWords {
		n := len(bcWordREs[w].FindAllStringIndex(masked, -1))
		r.ByWord[w] = n
		r.Total += n
	}
	return r
}

// CountRegData counts restrictions in text using the RegData methodology.
func CountRegData(text string) Result {
	r := Result{ByWord: make(map[string]int, len(RegDataWords))}
	if strings.TrimSpace(text) == "" {
		return r
	}

	masked := normalize(text)

	// Count "may not" first, then mask it so its tokens are not
	// re-counted by the single-word passes.
	n := len(regdataMultiRE.FindAllStringIndex(masked, -1))
	r.ByWord["may not"] = n
	r.Total += n
	masked = regdataMultiRE.ReplaceAllString(masked, placeholder)

	for w, re := range regdataWordREs {
		n := len(re.FindAllStringIndex(masked, -1))
		r.ByWord[w] = n
		r.Total += n
	}
	return r
}

// ForMethodology returns the counting function for a methodology tag.
func ForMethodology(m Methodology) (func(string) Result, error) {
	switch m {
	case BC:
		return CountBC, nil
	case RegData:
		return CountRegData, nil
	default:
		return nil, fmt.Errorf("unknown counting methodology: %q", m)
	}
}
