package internal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDeviceRecordJSON(t *testing.T) {
	r := DeviceRecord{
		LineNo:     1,
		ID:         7,
		Name:       "Printer A",
		Code:       "PRT1234",
		ExpireDate: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		State:      StateEnabled,
	}
	blob, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		t.Fatal(err)
	}
	if m["expire_date"] != "2024-03-01 10:00:00" || m["code"] != "PRT1234" || m["state"] != "enabled" {
		t.Fatalf("unexpected json %s", blob)
	}
}

func TestContentRecordJSON(t *testing.T) {
	r := ContentRecord{ID: 101, DeviceExternalID: 42, ExpireDate: time.Date(2024, 5, 2, 1, 0, 0, 0, time.UTC)}
	blob, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		t.Fatal(err)
	}
	if m["expire_date"] != "2024-05-02 01:00:00" || m["device_external_id"] != float64(42) {
		t.Fatalf("unexpected json %s", blob)
	}
}
