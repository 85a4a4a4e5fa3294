package source

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"devsync/internal"
)

// Built-in number formats that render a date or time.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

var (
	reFormatLiterals = regexp.MustCompile(`"[^"]*"|\\.|\[[^\]]*\]`)
	reDateTokens     = regexp.MustCompile(`(?i)[ydhs]`)
)

// FlattenWorkbook renders every sheet of an xlsx export as delimited text,
// one line per spreadsheet row. Empty rows are kept as empty lines so line
// numbers follow row numbers. Date-typed cells are written with
// internal.TimestampLayout, the way a text export carries them.
func FlattenWorkbook(content []byte, delimiter string) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for r, row := range rows {
			for c, display := range row {
				if r >= len(raw) || c >= len(raw[r]) || raw[r][c] == display {
					continue
				}
				if ts, ok := dateCell(f, sheet, c+1, r+1, raw[r][c], date1904); ok {
					row[c] = ts
				}
			}
			lines = append(lines, strings.Join(row, delimiter))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func dateCell(f *excelize.File, sheet string, col, row int, raw string, date1904 bool) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return "", false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return "", false
	}
	if !isDateFormat(style.NumFmt, style.CustomNumFmt) {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	return t.Round(time.Second).Format(internal.TimestampLayout), true
}

func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil {
		code := reFormatLiterals.ReplaceAllString(*custom, "")
		return reDateTokens.MatchString(code)
	}
	return builtinDateFormats[numFmt]
}
