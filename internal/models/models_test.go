package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestConsentAcceptsBoolAndString(t *testing.T) {
	cases := map[string]Consent{
		`true`:  true,
		`false`: false,
		`"Yes"`: true,
		`"No"`:  false,
		`"yes"`: true,
	}
	for raw, want := range cases {
		var c Consent
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if c != want {
			t.Fatalf("unmarshal %s: got %v, want %v", raw, c, want)
		}
	}
	var c Consent
	if err := json.Unmarshal([]byte(`42`), &c); err == nil {
		t.Fatalf("expected error for numeric consent")
	}
}

func TestSubmissionRow(t *testing.T) {
	sub := Submission{
		Timestamp:    "2025-09-01T08:00:00.000Z",
		Email:        "ada@example.org",
		FullName:     "Ada Lovelace",
		Grade:        "10",
		PhotoConsent: true,
	}
	want := []string{"2025-09-01T08:00:00.000Z", "ada@example.org", "Ada Lovelace", "10", "Yes", "Not provided"}
	if got := sub.Row(); !reflect.DeepEqual(got, want) {
		t.Fatalf("row mismatch:\n got %v\nwant %v", got, want)
	}

	sub.PhotoConsent = false
	sub.DiscordHandle = "ada#1815"
	row := sub.Row()
	if row[4] != "No" || row[5] != "ada#1815" {
		t.Fatalf("unexpected consent/discord cells: %v", row[4:])
	}
}

func TestCompositeKey(t *testing.T) {
	row := ConfigRow{ClubID: "cinema", AcademicYear: "2025/2026"}
	if row.Key() != "cinema|2025/2026" {
		t.Fatalf("unexpected key %q", row.Key())
	}
}
