package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"club-registration/internal/util"
)

// ConfigRow binds one club to its registration spreadsheet for one academic year.
type ConfigRow struct {
	ClubID       string `json:"clubId"`
	ClubName     string `json:"clubName"`
	SheetID      string `json:"sheetId"`
	AcademicYear string `json:"academicYear"`
	UpdatedAt    string `json:"updatedAt"`
}

// Key is the composite key clubId|academicYear.
func (r ConfigRow) Key() string { return CompositeKey(r.ClubID, r.AcademicYear) }

func CompositeKey(clubID, academicYear string) string {
	return clubID + "|" + academicYear
}

type ConfigUpdate struct {
	ClubID   string `json:"clubId" binding:"required"`
	ClubName string `json:"clubName"`
	SheetID  string `json:"sheetId" binding:"required"`
}

// Consent decodes either a JSON bool or a "Yes"/"No" string.
type Consent bool

func (c *Consent) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*c = Consent(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("photoConsent: expected bool or string")
	}
	*c = Consent(util.NormalizeBool(s))
	return nil
}

func (c Consent) String() string {
	if c {
		return "Yes"
	}
	return "No"
}

const DiscordNotProvided = "Not provided"

// Submission is one student's club application.
type Submission struct {
	Timestamp     string  `json:"timestamp"`
	Email         string  `json:"email" binding:"required,email"`
	FullName      string  `json:"name" binding:"required"`
	Grade         string  `json:"grade" binding:"required,oneof=9 10 11 12"`
	PhotoConsent  Consent `json:"photoConsent"`
	DiscordHandle string  `json:"discord"`
}

// Row renders the six ordered cells appended to a club sheet.
func (s Submission) Row() []string {
	discord := strings.TrimSpace(s.DiscordHandle)
	if discord == "" {
		discord = DiscordNotProvided
	}
	return []string{
		s.Timestamp,
		s.Email,
		s.FullName,
		s.Grade,
		s.PhotoConsent.String(),
		discord,
	}
}

type DestinationResult struct {
	SheetID string `json:"sheetId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type MultiSubmitResult struct {
	OK      int                 `json:"ok"`
	Total   int                 `json:"total"`
	Results []DestinationResult `json:"results"`
}

type ProvisionResult struct {
	SheetID      string `json:"sheetId"`
	ClubID       string `json:"clubId"`
	ClubName     string `json:"clubName"`
	AcademicYear string `json:"academicYear"`
	Message      string `json:"message"`
	Existing     bool   `json:"existing"`
}
