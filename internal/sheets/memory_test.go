package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestMemoryRangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doc, err := m.CreateDocument(ctx, CreateDocumentRequest{Name: "Config", Kind: KindSpreadsheet})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.SetRange(ctx, SetRangeRequest{DocumentID: doc.ID, Range: "A1:C1", Rows: Grid{{"a", "b", "c"}}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.AppendRows(ctx, AppendRowsRequest{DocumentID: doc.ID, Range: "A:C", Rows: Grid{{"1", "2"}, {"3", "", "5"}}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := m.GetRange(ctx, GetRangeRequest{DocumentID: doc.ID, Range: "A2:C"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Grid{{"1", "2"}, {"3", "", "5"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected grid:\n got %v\nwant %v", got, want)
	}

	if err := m.BatchSetRanges(ctx, BatchSetRangesRequest{
		DocumentID: doc.ID,
		Data:       []RangeValues{{Range: "A3:C3", Rows: Grid{{"x", "y", "z"}}}},
	}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if cell := m.Rows(doc.ID).Cell(2, 1); cell != "y" {
		t.Fatalf("batch set not applied, got %q", cell)
	}
}

func TestMemoryFindMatchesNameAndKind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first, _ := m.CreateDocument(ctx, CreateDocumentRequest{Name: "Cinema Club Registration 2025/2026", Kind: KindSpreadsheet})
	_, _ = m.CreateDocument(ctx, CreateDocumentRequest{Name: "Cinema Club Registration 2025/2026", Kind: "text/plain"})

	docs, err := m.FindDocuments(ctx, FindDocumentsRequest{Name: "Cinema Club Registration 2025/2026", Kind: KindSpreadsheet})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != first.ID {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestMemoryInjectedFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed("bad", "Bad", nil)
	m.Seed("good", "Good", nil)
	boom := errors.New("quota exceeded")
	m.Fail(OpAppend, "bad", boom)

	err := m.AppendRows(ctx, AppendRowsRequest{DocumentID: "bad", Range: "A:F", Rows: Grid{{"x"}}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := m.AppendRows(ctx, AppendRowsRequest{DocumentID: "good", Range: "A:F", Rows: Grid{{"x"}}}); err != nil {
		t.Fatalf("unexpected error for healthy document: %v", err)
	}
	if m.Calls(OpAppend) != 2 {
		t.Fatalf("expected 2 append calls, got %d", m.Calls(OpAppend))
	}

	m.Fail(OpAppend, "bad", nil)
	if err := m.AppendRows(ctx, AppendRowsRequest{DocumentID: "bad", Range: "A:F", Rows: Grid{{"x"}}}); err != nil {
		t.Fatalf("failure should be cleared: %v", err)
	}
}

func TestMemoryMissingDocument(t *testing.T) {
	m := NewMemory()
	_, err := m.GetDocument(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !IsMissing(err) {
		t.Fatalf("memory not-found must count as missing")
	}
}

func TestIsMissing(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("quota exceeded"), false},
		{"wrapped not found", fmt.Errorf("read: %w", ErrNotFound), true},
		{"google 404", &googleapi.Error{Code: http.StatusNotFound}, true},
		{"google 403", fmt.Errorf("get: %w", &googleapi.Error{Code: http.StatusForbidden}), true},
		{"google 429", &googleapi.Error{Code: http.StatusTooManyRequests}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMissing(tc.err); got != tc.want {
				t.Fatalf("IsMissing(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`St. Mary's \ Club`); got != `St. Mary\'s \\ Club` {
		t.Fatalf("got %q", got)
	}
}

func TestFromValues(t *testing.T) {
	got := fromValues([][]interface{}{{"a", 1, nil}, {}})
	want := Grid{{"a", "1", ""}, {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
