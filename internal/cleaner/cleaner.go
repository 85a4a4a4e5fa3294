// Package cleaner turns the device-management source's malformed export text
// into validated device and content records.
//
// Both record families run through the same per-line pipeline:
//
//	normalize → id → timestamp → status → key → name/description → truncate → assemble
//
// A failing stage discards the line and the batch continues. Ids (and, for
// devices, codes) are only remembered once a line is fully accepted, so the
// first occurrence of a duplicate always wins. The package does no I/O and
// keeps no state between calls; diagnostics go to the Sink passed in.
package cleaner

import (
	"fmt"
	"time"
	"unicode/utf8"

	"devsync/internal"
)

// LineState is how far a line got through the pipeline. A discarded line
// keeps the last state it reached; the discard itself is the EventDiscarded
// event.
type LineState string

const (
	StatePending     LineState = "pending"
	StateIDOK        LineState = "id_ok"
	StateTimestampOK LineState = "timestamp_ok"
	StateStatusOK    LineState = "status_ok"
	StateKeyOK       LineState = "key_ok"
	StateAssembled   LineState = "assembled"
	StateAccepted    LineState = "accepted"
)

// KeyMatch is what a KeyLocator found.
type KeyMatch struct {
	Index    int
	Code     string // device family
	DeviceID int64  // content family
}

// KeyLocator finds a row's key field. seenKeys holds the codes accepted so far
// when the layout tracks key uniqueness, and is nil otherwise.
type KeyLocator func(fields []string, seenKeys map[string]struct{}) (KeyMatch, error)

// Layout parametrizes the pipeline for one record family.
type Layout struct {
	Family         internal.RecordFamily
	Locate         KeyLocator
	UniqueKeys     bool
	NameMax        int
	DescriptionMax int
	NameLabel      string
	DescLabel      string
	FallbackName   string // format with one %d verb for the row id
}

var DeviceLayout = Layout{
	Family: internal.FamilyDevice,
	Locate: func(fields []string, seen map[string]struct{}) (KeyMatch, error) {
		code, idx, err := FindDeviceCode(fields, seen)
		return KeyMatch{Index: idx, Code: code}, err
	},
	UniqueKeys:     true,
	NameMax:        32,
	DescriptionMax: 128,
	NameLabel:      "Name",
	DescLabel:      "Description",
	FallbackName:   "Machine %d",
}

var ContentLayout = Layout{
	Family: internal.FamilyContent,
	Locate: func(fields []string, _ map[string]struct{}) (KeyMatch, error) {
		id, idx, err := FindContentDeviceID(fields)
		return KeyMatch{Index: idx, DeviceID: id}, err
	},
	NameMax:        100,
	DescriptionMax: 128,
	NameLabel:      "Content Name",
	DescLabel:      "Content Description",
	FallbackName:   "Content %d",
}

// Row is a fully cleaned line before it is given its family's shape.
type Row struct {
	LineNo      int
	ID          int64
	Name        string
	Description string
	Key         KeyMatch
	ExpireDate  time.Time
	State       internal.RecordState
	Stage       LineState
}

type Summary struct {
	Total     int `json:"total"`
	Accepted  int `json:"accepted"`
	Discarded int `json:"discarded"`
	Truncated int `json:"truncated"`
}

type DeviceResult struct {
	Records []internal.DeviceRecord
	Summary Summary
}

type ContentResult struct {
	Records []internal.ContentRecord
	Summary Summary
}

// CleanDeviceRows cleans a device export. The error is non-nil only when the
// batch as a whole is unusable; bad rows are reported through sink.
func CleanDeviceRows(text, delimiter string, sink Sink) (DeviceResult, error) {
	rows, summary, err := Clean(text, delimiter, DeviceLayout, sink)
	if err != nil {
		return DeviceResult{}, err
	}
	records := make([]internal.DeviceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, internal.DeviceRecord{
			LineNo:      row.LineNo,
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Code:        row.Key.Code,
			ExpireDate:  row.ExpireDate,
			State:       row.State,
		})
	}
	return DeviceResult{Records: records, Summary: summary}, nil
}

// CleanContentRows cleans a content export.
func CleanContentRows(text, delimiter string, sink Sink) (ContentResult, error) {
	rows, summary, err := Clean(text, delimiter, ContentLayout, sink)
	if err != nil {
		return ContentResult{}, err
	}
	records := make([]internal.ContentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, internal.ContentRecord{
			LineNo:           row.LineNo,
			ID:               row.ID,
			Name:             row.Name,
			Description:      row.Description,
			DeviceExternalID: row.Key.DeviceID,
			ExpireDate:       row.ExpireDate,
			State:            row.State,
		})
	}
	return ContentResult{Records: records, Summary: summary}, nil
}

// Clean runs the pipeline for an arbitrary layout.
func Clean(text, delimiter string, layout Layout, sink Sink) ([]Row, Summary, error) {
	if utf8.RuneCountInString(delimiter) != 1 {
		return nil, Summary{}, fmt.Errorf("%w: %q", ErrInvalidDelimiter, delimiter)
	}
	if !utf8.ValidString(text) {
		return nil, Summary{}, ErrUndecodable
	}
	if sink == nil {
		sink = Discard
	}

	b := &batch{
		layout:   layout,
		splitter: newLineSplitter(delimiter),
		sink:     sink,
		seenIDs:  map[int64]struct{}{},
	}
	if layout.UniqueKeys {
		b.seenKeys = map[string]struct{}{}
	}

	lines := splitLines(text)
	b.summary.Total = len(lines)
	rows := make([]Row, 0, len(lines))
	for i, line := range lines {
		row, err := b.cleanLine(i+1, line)
		if err != nil {
			b.discard(err)
			continue
		}
		row.Stage = StateAccepted
		rows = append(rows, row)
		b.accept(row)
	}
	return rows, b.summary, nil
}

type batch struct {
	layout   Layout
	splitter *lineSplitter
	sink     Sink
	seenIDs  map[int64]struct{}
	seenKeys map[string]struct{}
	summary  Summary
}

func (b *batch) cleanLine(lineNo int, line string) (Row, error) {
	stage := StatePending
	fail := func(err error) (Row, error) {
		return Row{}, &RowError{Line: lineNo, Raw: line, Stage: stage, Err: err}
	}

	fields := b.splitter.split(line)
	if len(fields) == 0 || fields[0] == "" {
		return fail(ErrMalformedLine)
	}

	id, err := ParseID(fields[0], b.seenIDs)
	if err != nil {
		return fail(err)
	}
	stage = StateIDOK

	expire, candidate, err := ParseLineTimestamp(line)
	if err != nil {
		rowErr := &RowError{Line: lineNo, Raw: line, Stage: stage, Err: err}
		if candidate != "" {
			rowErr.Detail = fmt.Sprintf("cannot repair %q", candidate)
		}
		return Row{}, rowErr
	}
	stage = StateTimestampOK

	state := ExtractStatus(fields)
	stage = StateStatusOK

	key, err := b.layout.Locate(fields, b.seenKeys)
	if err != nil {
		return fail(err)
	}
	stage = StateKeyOK

	name, description := ExtractNameAndDescription(fields, key.Index, fmt.Sprintf(b.layout.FallbackName, id))

	truncations := 0
	sink := SinkFunc(func(e Event) {
		truncations++
		e.Raw = line
		e.Stage = stage
		b.sink.Emit(e)
	})
	family := string(b.layout.Family)
	name = TruncateField(name, b.layout.NameMax, b.layout.NameLabel, lineNo, family, sink)
	description = TruncateField(description, b.layout.DescriptionMax, b.layout.DescLabel, lineNo, family, sink)
	b.summary.Truncated += truncations

	return Row{
		LineNo:      lineNo,
		ID:          id,
		Name:        name,
		Description: description,
		Key:         key,
		ExpireDate:  expire,
		State:       state,
		Stage:       StateAssembled,
	}, nil
}

func (b *batch) accept(row Row) {
	b.summary.Accepted++
	b.seenIDs[row.ID] = struct{}{}
	if b.seenKeys != nil {
		b.seenKeys[row.Key.Code] = struct{}{}
	}
}

func (b *batch) discard(err error) {
	b.summary.Discarded++
	ev := Event{
		Kind:   EventDiscarded,
		Family: string(b.layout.Family),
		Reason: err.Error(),
		Err:    err,
	}
	if rowErr, ok := err.(*RowError); ok {
		ev.Line = rowErr.Line
		ev.Raw = rowErr.Raw
		ev.Stage = rowErr.Stage
		ev.Reason = rowErr.Reason()
	}
	b.sink.Emit(ev)
}
