package clubconfig

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"club-registration/internal/apperr"
	"club-registration/internal/models"
	"club-registration/internal/sheets"
)

const year = "2025/2026"

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestStore(t *testing.T, mem *sheets.Memory, fixedID string) *Store {
	t.Helper()
	clock := &steppingClock{now: time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)}
	s, err := New(Options{Store: mem, FixedID: fixedID, Clock: clock.Now})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedConfig(mem *sheets.Memory, rows ...[]string) {
	grid := sheets.Grid{Header}
	grid = append(grid, rows...)
	mem.Seed("cfg", DocumentName, grid)
}

func TestEnsureDocumentCreatesWithHeader(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	s := newTestStore(t, mem, "")

	id, err := s.EnsureDocument(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got := mem.Rows(id); !reflect.DeepEqual(got, sheets.Grid{Header}) {
		t.Fatalf("unexpected header rows: %v", got)
	}

	again, err := s.EnsureDocument(ctx)
	if err != nil || again != id {
		t.Fatalf("expected cached id %q, got %q (%v)", id, again, err)
	}
	if mem.Calls(sheets.OpCreate) != 1 || mem.Calls(sheets.OpFind) != 1 {
		t.Fatalf("expected one find and one create, got find=%d create=%d",
			mem.Calls(sheets.OpFind), mem.Calls(sheets.OpCreate))
	}
}

func TestEnsureDocumentFindsExisting(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	id, err := s.EnsureDocument(context.Background())
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if id != "cfg" {
		t.Fatalf("expected existing document, got %q", id)
	}
	if mem.Calls(sheets.OpCreate) != 0 {
		t.Fatalf("expected no create call")
	}
}

func TestEnsureDocumentConcurrentBootstrapCreatesOnce(t *testing.T) {
	mem := sheets.NewMemory()
	// two stores sharing one guard, as two handlers in one process would
	s := newTestStore(t, mem, "")
	other, err := New(Options{Store: mem, Locker: s.locker})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i, st := range []*Store{s, other} {
		wg.Add(1)
		go func(i int, st *Store) {
			defer wg.Done()
			id, err := st.EnsureDocument(context.Background())
			if err != nil {
				t.Errorf("ensure: %v", err)
			}
			ids[i] = id
		}(i, st)
	}
	wg.Wait()

	if ids[0] != ids[1] {
		t.Fatalf("expected the same document, got %q and %q", ids[0], ids[1])
	}
	if mem.Calls(sheets.OpCreate) != 1 {
		t.Fatalf("expected exactly one create, got %d", mem.Calls(sheets.OpCreate))
	}
}

func TestEnsureDocumentFixedID(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "cfg")

	id, err := s.EnsureDocument(context.Background())
	if err != nil || id != "cfg" {
		t.Fatalf("expected fixed id, got %q (%v)", id, err)
	}
	if mem.Calls(sheets.OpFind) != 0 || mem.Calls(sheets.OpCreate) != 0 {
		t.Fatalf("fixed id must not search or create")
	}
}

func TestEnsureDocumentFixedIDUnreachable(t *testing.T) {
	mem := sheets.NewMemory()
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := New(Options{Store: mem, FixedID: "missing", Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = s.EnsureDocument(context.Background())
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if mem.Calls(sheets.OpCreate) != 0 {
		t.Fatalf("must not fall back to creating a document")
	}
	if logs.FilterMessage("config document not reachable").Len() != 1 {
		t.Fatalf("expected the upstream failure to be logged")
	}
}

func TestReadRowsFiltersByYearAndKeepsOrder(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem,
		[]string{"cinema", "Cinema Club", "s1", "2024/2025", "t0"},
		[]string{"engineering", "Engineering Club", "s2", year, "t1"},
		[]string{"scholars", "McRoberts Scholars", "s3", year},
		[]string{"cinema", "Cinema Club", "s4", year, "t3"},
	)
	s := newTestStore(t, mem, "")

	rows, err := s.ReadRows(context.Background(), "cfg", year)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []models.ConfigRow{
		{ClubID: "engineering", ClubName: "Engineering Club", SheetID: "s2", AcademicYear: year, UpdatedAt: "t1"},
		{ClubID: "scholars", ClubName: "McRoberts Scholars", SheetID: "s3", AcademicYear: year, UpdatedAt: ""},
		{ClubID: "cinema", ClubName: "Cinema Club", SheetID: "s4", AcademicYear: year, UpdatedAt: "t3"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows:\n got %+v\nwant %+v", rows, want)
	}
}

func TestReadRowsEmptyDocument(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	rows, err := s.ReadRows(context.Background(), "cfg", year)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestUpsertRowsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")
	update := []models.ConfigUpdate{{ClubID: "cinema", ClubName: "Cinema Club", SheetID: "sheet-1"}}

	if err := s.UpsertRows(ctx, "cfg", update, year); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, _ := s.ReadRows(ctx, "cfg", year)
	if err := s.UpsertRows(ctx, "cfg", update, year); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	rows, err := s.ReadRows(ctx, "cfg", year)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d: %+v", len(rows), rows)
	}
	if rows[0].UpdatedAt <= first[0].UpdatedAt {
		t.Fatalf("expected updatedAt to move forward: %q then %q", first[0].UpdatedAt, rows[0].UpdatedAt)
	}
}

func TestUpsertRowsBatchesUpdatesAndAppends(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	seedConfig(mem,
		[]string{"cinema", "Cinema Club", "old-1", year, "t0"},
		[]string{"engineering", "Engineering Club", "old-2", "2024/2025", "t0"},
		[]string{"engineering", "Engineering Club", "old-3", year, "t0"},
	)
	s := newTestStore(t, mem, "")

	updates := []models.ConfigUpdate{
		{ClubID: "cinema", ClubName: "Cinema Club", SheetID: "new-1"},
		{ClubID: "engineering", ClubName: "Engineering Club", SheetID: "new-2"},
		{ClubID: "scholars", ClubName: "McRoberts Scholars", SheetID: "new-3"},
		{ClubID: "robotics", ClubName: "Robotics", SheetID: "new-4"},
	}
	if err := s.UpsertRows(ctx, "cfg", updates, year); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if got := mem.Calls(sheets.OpGetRange); got != 1 {
		t.Fatalf("expected one read, got %d", got)
	}
	if got := mem.Calls(sheets.OpBatchSet); got != 1 {
		t.Fatalf("expected one batched update, got %d", got)
	}
	if got := mem.Calls(sheets.OpAppend); got != 1 {
		t.Fatalf("expected one batched append, got %d", got)
	}

	all := mem.Rows("cfg")
	if len(all) != 6 {
		t.Fatalf("expected header + 5 rows, got %d: %v", len(all), all)
	}
	// in-place rows keep their positions
	if all[1][2] != "new-1" || all[3][2] != "new-2" {
		t.Fatalf("in-place updates landed on the wrong rows: %v", all)
	}
	if all[2][2] != "old-2" {
		t.Fatalf("other year's row must be untouched: %v", all[2])
	}

	stamp := all[1][4]
	for _, r := range [][]string{all[1], all[3], all[4], all[5]} {
		if r[4] != stamp {
			t.Fatalf("expected one updatedAt for the whole call, got %q and %q", stamp, r[4])
		}
	}
	if stamp != "2025-09-01T08:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", stamp)
	}
}

func TestUpsertRowsOnlyExistingSkipsAppend(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem, []string{"cinema", "Cinema Club", "old", year, "t0"})
	s := newTestStore(t, mem, "")

	err := s.UpsertRows(context.Background(), "cfg", []models.ConfigUpdate{{ClubID: "cinema", SheetID: "new"}}, year)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if mem.Calls(sheets.OpAppend) != 0 || mem.Calls(sheets.OpBatchSet) != 1 {
		t.Fatalf("unexpected calls: append=%d batch=%d", mem.Calls(sheets.OpAppend), mem.Calls(sheets.OpBatchSet))
	}
}

func TestUpsertRowsCollapsesDuplicateKeysInOneCall(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	updates := []models.ConfigUpdate{
		{ClubID: "cinema", ClubName: "Cinema Club", SheetID: "first"},
		{ClubID: "cinema", ClubName: "Cinema Club", SheetID: "second"},
	}
	if err := s.UpsertRows(ctx, "cfg", updates, year); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows, _ := s.ReadRows(ctx, "cfg", year)
	if len(rows) != 1 || rows[0].SheetID != "second" {
		t.Fatalf("expected a single row with the last sheet id, got %+v", rows)
	}
}

func TestUpsertRowsValidation(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	cases := [][]models.ConfigUpdate{
		nil,
		{{ClubID: " ", SheetID: "x"}},
		{{ClubID: "cinema", SheetID: ""}},
	}
	for _, updates := range cases {
		err := s.UpsertRows(context.Background(), "cfg", updates, year)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", updates, err)
		}
	}
	if mem.TotalCalls() != 0 {
		t.Fatalf("validation must happen before any store call, got %d calls", mem.TotalCalls())
	}
}

func TestUpsertRowsReadFailureWritesNothing(t *testing.T) {
	mem := sheets.NewMemory()
	seedConfig(mem)
	mem.Fail(sheets.OpGetRange, "cfg", errors.New("backend unavailable"))
	s := newTestStore(t, mem, "")

	err := s.UpsertRows(context.Background(), "cfg", []models.ConfigUpdate{{ClubID: "cinema", SheetID: "x"}}, year)
	if !apperr.IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}
	if mem.Calls(sheets.OpAppend) != 0 || mem.Calls(sheets.OpBatchSet) != 0 {
		t.Fatalf("no writes expected after a failed read")
	}
}

func TestEnsureDocumentRemovesHeaderlessDocument(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	s := newTestStore(t, mem, "")

	mem.Fail(sheets.OpSetRange, "", errors.New("backend unavailable"))
	if _, err := s.EnsureDocument(ctx); !apperr.IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}
	if mem.Calls(sheets.OpDelete) != 1 || mem.DocumentCount() != 0 {
		t.Fatalf("expected the headerless document to be removed, delete=%d docs=%d",
			mem.Calls(sheets.OpDelete), mem.DocumentCount())
	}

	mem.Fail(sheets.OpSetRange, "", nil)
	id, err := s.EnsureDocument(ctx)
	if err != nil {
		t.Fatalf("ensure after recovery: %v", err)
	}
	if got := mem.Rows(id); len(got) != 1 || !reflect.DeepEqual(got[0], Header) {
		t.Fatalf("expected a fresh document with header, got %v", got)
	}

	if err := s.UpsertRows(ctx, id, []models.ConfigUpdate{{ClubID: "chess", ClubName: "Chess", SheetID: "s-1"}}, year); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows, err := s.ReadRows(ctx, id, year)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0].ClubID != "chess" {
		t.Fatalf("saved mapping must be readable, got %+v", rows)
	}
}

func TestEnsureDocumentReResolvesAfterDeletion(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	id, err := s.EnsureDocument(ctx)
	if err != nil || id != "cfg" {
		t.Fatalf("ensure: %q %v", id, err)
	}
	if err := mem.DeleteDocument(ctx, "cfg"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.ReadRows(ctx, id, year); !apperr.IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}

	again, err := s.EnsureDocument(ctx)
	if err != nil {
		t.Fatalf("ensure after deletion: %v", err)
	}
	if again == "cfg" {
		t.Fatalf("expected a new config document after the old one was deleted")
	}
	if mem.Calls(sheets.OpCreate) != 1 {
		t.Fatalf("expected one create, got %d", mem.Calls(sheets.OpCreate))
	}
}

func TestEnsureDocumentKeepsCacheOnTransientFailure(t *testing.T) {
	ctx := context.Background()
	mem := sheets.NewMemory()
	seedConfig(mem)
	s := newTestStore(t, mem, "")

	if _, err := s.EnsureDocument(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	mem.Fail(sheets.OpGetRange, "cfg", errors.New("rate limit exceeded"))
	if _, err := s.ReadRows(ctx, "cfg", year); !apperr.IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}

	id, err := s.EnsureDocument(ctx)
	if err != nil || id != "cfg" {
		t.Fatalf("expected cached id, got %q %v", id, err)
	}
	if mem.Calls(sheets.OpFind) != 1 {
		t.Fatalf("transient failures must not trigger a new lookup, find=%d", mem.Calls(sheets.OpFind))
	}
}
