package cleaner

import (
	"regexp"
	"strings"
)

// SplitLine repairs the delimiter and quoting defects the export source is
// known to produce and splits the line into fields. It never fails; an empty
// first field means the line carried nothing usable.
func SplitLine(line, delimiter string) []string {
	return newLineSplitter(delimiter).split(line)
}

// lineSplitter holds the per-delimiter compiled state so a batch compiles the
// spacing pattern once.
type lineSplitter struct {
	delimiter   string
	replacement string
	spacing     *regexp.Regexp
}

func newLineSplitter(delimiter string) *lineSplitter {
	return &lineSplitter{
		delimiter:   delimiter,
		replacement: literalReplacement(delimiter),
		spacing:     delimiterSpacingPattern(delimiter),
	}
}

func (s *lineSplitter) split(line string) []string {
	corrected := DigitQuotePattern.ReplaceAllString(strings.TrimSpace(line), "${1}"+s.replacement+"${2}")
	corrected = AdjacentQuotesPattern.ReplaceAllString(corrected, `"`+s.replacement+`"`)

	standardized := s.spacing.ReplaceAllLiteralString(corrected, s.delimiter)
	standardized = strings.TrimRight(standardized, s.delimiter)

	return strings.Split(standardized, s.delimiter)
}

// splitLines turns a raw blob into lines. Surrounding whitespace of the whole
// blob is dropped first, so a blank input still yields one (empty) line.
func splitLines(text string) []string {
	return strings.Split(strings.TrimSpace(text), "\n")
}
