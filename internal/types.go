package internal

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the second-precision format used for expire dates
// everywhere: cleaned records, storage and reports.
const TimestampLayout = "2006-01-02 15:04:05"

type RecordState string

const (
	StateEnabled  RecordState = "enabled"
	StateDisabled RecordState = "disabled"
	StateDeleted  RecordState = "deleted"
)

type RecordFamily string

const (
	FamilyDevice  RecordFamily = "device"
	FamilyContent RecordFamily = "content"
)

type DeviceRecord struct {
	LineNo      int         `json:"line"`
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Code        string      `json:"code"`
	ExpireDate  time.Time   `json:"-"`
	State       RecordState `json:"state"`
}

// ExpireDateString formats ExpireDate with TimestampLayout.
func (r DeviceRecord) ExpireDateString() string {
	return r.ExpireDate.Format(TimestampLayout)
}

func (r DeviceRecord) MarshalJSON() ([]byte, error) {
	type alias DeviceRecord
	return json.Marshal(struct {
		alias
		ExpireDate string `json:"expire_date"`
	}{alias(r), r.ExpireDateString()})
}

type ContentRecord struct {
	LineNo           int         `json:"line"`
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	DeviceExternalID int64       `json:"device_external_id"`
	ExpireDate       time.Time   `json:"-"`
	State            RecordState `json:"state"`
}

func (r ContentRecord) ExpireDateString() string {
	return r.ExpireDate.Format(TimestampLayout)
}

func (r ContentRecord) MarshalJSON() ([]byte, error) {
	type alias ContentRecord
	return json.Marshal(struct {
		alias
		ExpireDate string `json:"expire_date"`
	}{alias(r), r.ExpireDateString()})
}

// StoredDevice is a devices table row.
type StoredDevice struct {
	ID          int64       `json:"id"`
	ExternalID  int64       `json:"external_id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ExpireDate  string      `json:"expire_date"`
	State       RecordState `json:"state"`
}

type StoredContent struct {
	ID               int64       `json:"id"`
	ExternalID       int64       `json:"external_id"`
	DeviceID         int64       `json:"device_id"`
	DeviceExternalID int64       `json:"device_external_id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	ExpireDate       string      `json:"expire_date"`
	State            RecordState `json:"state"`
}

type RunStatus string

const (
	RunOK     RunStatus = "ok"
	RunFailed RunStatus = "failed"
)

type RunRow struct {
	ID         int
	RunID      string
	Family     RecordFamily
	SourcePath string
	SourceHash string
	Status     RunStatus
	Error      string
	Total      int
	Accepted   int
	Discarded  int
	Truncated  int
	Stored     int
	Skipped    int
	CreatedAt  string
}

type DiscardRow struct {
	RunID   string
	LineNo  int
	Reason  string
	RawLine string
}

type ExportFile struct {
	Path string
	Hash string
	Text string
}
