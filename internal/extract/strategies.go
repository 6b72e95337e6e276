package extract

import "regexp"

var (
	fencedPattern   = regexp.MustCompile("(?s)```json\\s*([\\[{].*?[\\]}])\\s*```")
	arrayPattern    = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*(?:,\s*\{.*?\}\s*)*,?\s*\]`)
	objectPattern   = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	trailingCommaRe = regexp.MustCompile(`,\s*(\]|\})`)
)

// directParse accepts text that is already a single JSON container.
type directParse struct{}

func (directParse) Name() string { return "direct" }

func (directParse) Extract(text string) (any, bool) {
	return decodeContainer(text)
}

// fencedBlock parses the body of the first ```json fence whose content
// starts with a bracket or brace.
type fencedBlock struct{}

func (fencedBlock) Name() string { return "fenced" }

func (fencedBlock) Extract(text string) (any, bool) {
	m := fencedPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return decodeContainer(m[1])
}

// arrayScan finds the first bracketed run of objects. A dangling comma
// before the closing bracket is part of the match and is removed before
// decoding.
type arrayScan struct{}

func (arrayScan) Name() string { return "array-scan" }

func (arrayScan) Extract(text string) (any, bool) {
	m := arrayPattern.FindString(text)
	if m == "" {
		return nil, false
	}
	if v, ok := decodeContainer(m); ok {
		return v, true
	}
	return decodeContainer(stripTrailingCommas(m))
}

// objectScan finds the first object with at most one level of nested
// braces. Deeper nesting is not matched.
type objectScan struct{}

func (objectScan) Name() string { return "object-scan" }

func (objectScan) Extract(text string) (any, bool) {
	m := objectPattern.FindString(text)
	if m == "" {
		return nil, false
	}
	return decodeContainer(m)
}

// trailingCommaRepair removes commas directly before a closing bracket
// anywhere in the text and retries a direct parse.
type trailingCommaRepair struct{}

func (trailingCommaRepair) Name() string { return "trailing-comma" }

func (trailingCommaRepair) Extract(text string) (any, bool) {
	return decodeContainer(stripTrailingCommas(text))
}

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}
