package cleaner

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode turns a raw export into text. A UTF-8 or UTF-16 byte order mark is
// honoured and removed; without one the bytes must already be valid UTF-8.
// Failure here is a batch-level condition and is reported as ErrUndecodable.
func Decode(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, utf8BOM) && !utf8.Valid(raw[len(utf8BOM):]) {
		return "", ErrUndecodable
	}
	decoder := unicode.BOMOverride(encoding.UTF8Validator)
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if !utf8.Valid(out) {
		return "", ErrUndecodable
	}
	return string(out), nil
}
