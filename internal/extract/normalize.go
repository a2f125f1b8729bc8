// Package extract wraps a text extraction capability behind the stage runner
// and normalizes its output for script generation.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns for normalization.
const (
	referenceRegexPattern  = `(?:\[\d+\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+)`
	citationRegexPattern   = `\([^)]*\d{4}[^)]*\)|\b\w+\s+et\s+al\.`
	whitespaceRegexPattern = `\s+`
)

// Punctuation constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Normalizer cleans extracted document text so that downstream script
// generation and synthesis see plain, well-punctuated prose.
type Normalizer struct {
	referencePattern     *regexp.Regexp
	citationPattern      *regexp.Regexp
	whitespacePattern    *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewNormalizer creates a normalizer with compiled patterns and replacers.
func NewNormalizer() *Normalizer {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Fig.", "Figure",
		"et al.", "and colleagues",
	}

	punctuation := []string{
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	}

	return &Normalizer{
		referencePattern:     regexp.MustCompile(referenceRegexPattern),
		citationPattern:      regexp.MustCompile(citationRegexPattern),
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer:  strings.NewReplacer(punctuation...),
	}
}

// Normalize cleans one page of extracted text: abbreviations expanded,
// reference markers and academic citations removed, whitespace collapsed,
// typographic punctuation normalized, and a terminal sentence ending ensured.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	cleaned := n.abbreviationReplacer.Replace(text)
	cleaned = n.referencePattern.ReplaceAllString(cleaned, "")
	cleaned = n.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = n.whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = n.punctuationReplacer.Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	return ensureSentenceEnding(cleaned)
}

// ensureSentenceEnding appends a period when the text does not already end
// with sentence-ending punctuation.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?':
		return text
	}

	if unicode.IsPunct(lastChar) {
		return strings.TrimRightFunc(text, unicode.IsPunct) + "."
	}

	return text + "."
}
