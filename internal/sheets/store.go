package sheets

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrNotFound is returned by the memory backend for an unknown document id.
var ErrNotFound = errors.New("requested entity was not found")

// IsMissing reports whether err means the document is gone or no longer
// shared with the service account.
func IsMissing(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusForbidden
	}
	return false
}

// KindSpreadsheet is the Drive mime type for a Google spreadsheet.
const KindSpreadsheet = "application/vnd.google-apps.spreadsheet"

const (
	InputRaw   = "RAW"
	InsertRows = "INSERT_ROWS"
)

// Store is the typed adapter over the remote tabular service. Nothing outside
// this package sees untyped cell data.
type Store interface {
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (Document, error)
	FindDocuments(ctx context.Context, req FindDocumentsRequest) ([]Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
	GetDocument(ctx context.Context, documentID string) (Document, error)

	GetRange(ctx context.Context, req GetRangeRequest) (Grid, error)
	SetRange(ctx context.Context, req SetRangeRequest) error
	AppendRows(ctx context.Context, req AppendRowsRequest) error
	BatchSetRanges(ctx context.Context, req BatchSetRangesRequest) error
	FormatBold(ctx context.Context, req FormatBoldRequest) error
}

type Document struct {
	ID   string
	Name string
}

// Grid is a rectangular-ish block of cells. Rows may be ragged: trailing empty
// cells are dropped by the service.
type Grid [][]string

// Cell returns row/col or "" when out of range.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

type CreateDocumentRequest struct {
	Name string
	Kind string
}

type FindDocumentsRequest struct {
	Name string
	Kind string
}

type GetRangeRequest struct {
	DocumentID string
	Range      string
}

type SetRangeRequest struct {
	DocumentID string
	Range      string
	Rows       Grid
}

type AppendRowsRequest struct {
	DocumentID string
	Range      string
	Rows       Grid
}

type RangeValues struct {
	Range string
	Rows  Grid
}

type BatchSetRangesRequest struct {
	DocumentID string
	Data       []RangeValues
}

// FormatBoldRequest bolds the half-open grid [StartRow,EndRow) x [StartCol,EndCol)
// on the first sheet.
type FormatBoldRequest struct {
	DocumentID string
	StartRow   int64
	EndRow     int64
	StartCol   int64
	EndCol     int64
}
