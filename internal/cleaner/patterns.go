package cleaner

import (
	"regexp"
	"strings"
)

// Each heuristic the cleaner relies on is a named pattern so it can be tested
// on its own. Changing one of these changes which rows survive an import.
var (
	// DigitQuotePattern finds a digit immediately followed by a quote mark,
	// i.e. a numeric id whose delimiter was dropped: `12"Name"`.
	DigitQuotePattern = regexp.MustCompile(`(\d)(")`)

	// AdjacentQuotesPattern finds a closing quote, optional whitespace and an
	// opening quote: two quoted fields merged without a delimiter.
	AdjacentQuotesPattern = regexp.MustCompile(`"\s*"`)

	// TimestampPattern matches `YYYY-MM-DD HH:MM:SS` with an optional fraction
	// and an optional `±HH:MM` offset anywhere in a line.
	TimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:[+-]\d{2}:\d{2})?`)

	// TimestampPartsPattern splits a TimestampPattern match into components.
	TimestampPartsPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\s+(\d{2}):(\d{2}):(\d{2})(?:\.(\d+))?([+-]\d{2}:\d{2})?`)

	// DeviceCodePattern is the shape of a device code.
	DeviceCodePattern = regexp.MustCompile(`^[A-Z0-9]{4,30}$`)
)

// delimiterSpacingPattern matches a delimiter with any surrounding whitespace.
func delimiterSpacingPattern(delimiter string) *regexp.Regexp {
	return regexp.MustCompile(`\s*` + regexp.QuoteMeta(delimiter) + `\s*`)
}

// literalReplacement escapes a delimiter for use in a regexp replacement
// template.
func literalReplacement(delimiter string) string {
	return strings.ReplaceAll(delimiter, "$", "$$")
}
