// Package clubconfig keeps the club → registration sheet mapping in a single
// "config" spreadsheet, one row per (clubId, academicYear).
package clubconfig

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"club-registration/internal/apperr"
	"club-registration/internal/lock"
	"club-registration/internal/models"
	"club-registration/internal/sheets"
	"club-registration/internal/util"
)

const (
	DocumentName = "Club Registration Config"

	headerRange = "A1:E1"
	dataRange   = "A2:E"
	appendRange = "A:E"
	// data starts on sheet row 2
	firstDataRow = 2
)

var Header = []string{"clubId", "clubName", "sheetId", "academicYear", "updatedAt"}

type Options struct {
	Store sheets.Store
	// FixedID pins the config document; empty means search-or-create by name.
	FixedID string
	Locker  lock.Locker
	Clock   func() time.Time
	Logger  *zap.Logger
}

type Store struct {
	store   sheets.Store
	fixedID string
	locker  lock.Locker
	clock   func() time.Time
	logger  *zap.Logger

	mu       sync.Mutex
	resolved string
}

func New(opts Options) (*Store, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("clubconfig: store is required")
	}
	s := &Store{
		store:   opts.Store,
		fixedID: opts.FixedID,
		locker:  opts.Locker,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// EnsureDocument resolves the config document id. The result is cached until
// a read or write reports the document missing.
func (s *Store) EnsureDocument(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved != "" {
		return s.resolved, nil
	}

	var (
		id  string
		err error
	)
	if s.fixedID != "" {
		id, err = s.verifyFixed(ctx)
	} else {
		id, err = s.findOrCreate(ctx)
	}
	if err != nil {
		return "", err
	}
	s.resolved = id
	return id, nil
}

func (s *Store) verifyFixed(ctx context.Context) (string, error) {
	if _, err := s.store.GetDocument(ctx, s.fixedID); err != nil {
		s.logger.Error("config document not reachable",
			zap.String("document_id", s.fixedID),
			zap.Error(err),
		)
		return "", apperr.Configuration("config document missing or inaccessible")
	}
	return s.fixedID, nil
}

func (s *Store) findOrCreate(ctx context.Context) (string, error) {
	unlock, err := s.locker.Lock(ctx, DocumentName)
	if err != nil {
		return "", fmt.Errorf("lock config document: %w", err)
	}
	defer unlock()

	docs, err := s.store.FindDocuments(ctx, sheets.FindDocumentsRequest{Name: DocumentName, Kind: sheets.KindSpreadsheet})
	if err != nil {
		return "", apperr.Store("find config document", err)
	}
	if len(docs) > 0 {
		if len(docs) > 1 {
			s.logger.Warn("multiple config documents found, using the first",
				zap.Int("count", len(docs)),
				zap.String("document_id", docs[0].ID),
			)
		}
		return docs[0].ID, nil
	}

	doc, err := s.store.CreateDocument(ctx, sheets.CreateDocumentRequest{Name: DocumentName, Kind: sheets.KindSpreadsheet})
	if err != nil {
		return "", apperr.Store("create config document", err)
	}
	if err := s.store.SetRange(ctx, sheets.SetRangeRequest{
		DocumentID: doc.ID,
		Range:      headerRange,
		Rows:       sheets.Grid{Header},
	}); err != nil {
		s.discard(ctx, doc.ID)
		return "", apperr.Store("write config header", err)
	}
	s.logger.Info("config document created", zap.String("document_id", doc.ID))
	return doc.ID, nil
}

// discard removes a config document whose header could not be written.
// Left in place it would be found by name, and its first data row would
// land on row 1 where ReadRows never looks.
func (s *Store) discard(ctx context.Context, documentID string) {
	if err := s.store.DeleteDocument(context.WithoutCancel(ctx), documentID); err != nil {
		s.logger.Warn("could not remove uninitialized config document",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

// forget drops the cached id when the store reports the document gone or no
// longer shared, so the next EnsureDocument resolves it again.
func (s *Store) forget(documentID string, err error) {
	if !sheets.IsMissing(err) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved == documentID {
		s.resolved = ""
		s.logger.Warn("config document no longer reachable, will re-resolve",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

// ReadRows returns the rows for academicYear in storage order.
func (s *Store) ReadRows(ctx context.Context, documentID, academicYear string) ([]models.ConfigRow, error) {
	all, err := s.readAll(ctx, documentID)
	if err != nil {
		return nil, err
	}
	rows := []models.ConfigRow{}
	for _, r := range all {
		if r.AcademicYear == academicYear {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s *Store) readAll(ctx context.Context, documentID string) ([]models.ConfigRow, error) {
	grid, err := s.store.GetRange(ctx, sheets.GetRangeRequest{DocumentID: documentID, Range: dataRange})
	if err != nil {
		s.forget(documentID, err)
		return nil, apperr.Store("read config rows", err)
	}
	rows := make([]models.ConfigRow, 0, len(grid))
	for i := range grid {
		rows = append(rows, models.ConfigRow{
			ClubID:       grid.Cell(i, 0),
			ClubName:     grid.Cell(i, 1),
			SheetID:      grid.Cell(i, 2),
			AcademicYear: grid.Cell(i, 3),
			UpdatedAt:    grid.Cell(i, 4),
		})
	}
	return rows, nil
}

// UpsertRows writes one row per (clubId, academicYear). Existing keys are
// rewritten in place with one batched update, new keys go out with one
// batched append. Every row written carries the same updatedAt.
func (s *Store) UpsertRows(ctx context.Context, documentID string, updates []models.ConfigUpdate, academicYear string) error {
	if err := ValidateUpdates(updates); err != nil {
		return err
	}

	existing, err := s.readAll(ctx, documentID)
	if err != nil {
		return err
	}
	// last occurrence wins if the sheet already holds duplicates
	positions := make(map[string]int, len(existing))
	for i, r := range existing {
		positions[r.Key()] = i
	}

	now := util.FormatISO(s.clock())

	var (
		toUpdate  []sheets.RangeValues
		updateIdx = map[string]int{}
		toAppend  sheets.Grid
		appendIdx = map[string]int{}
	)
	for _, u := range updates {
		key := models.CompositeKey(u.ClubID, academicYear)
		row := []string{u.ClubID, u.ClubName, u.SheetID, academicYear, now}

		if pos, ok := positions[key]; ok {
			if i, seen := updateIdx[key]; seen {
				toUpdate[i].Rows = sheets.Grid{row}
				continue
			}
			n := pos + firstDataRow
			updateIdx[key] = len(toUpdate)
			toUpdate = append(toUpdate, sheets.RangeValues{
				Range: fmt.Sprintf("A%d:E%d", n, n),
				Rows:  sheets.Grid{row},
			})
			continue
		}

		if i, seen := appendIdx[key]; seen {
			toAppend[i] = row
			continue
		}
		appendIdx[key] = len(toAppend)
		toAppend = append(toAppend, row)
	}

	if len(toUpdate) > 0 {
		if err := s.store.BatchSetRanges(ctx, sheets.BatchSetRangesRequest{
			DocumentID: documentID,
			Data:       toUpdate,
		}); err != nil {
			s.forget(documentID, err)
			return apperr.Store("update config rows", err)
		}
	}
	if len(toAppend) > 0 {
		if err := s.store.AppendRows(ctx, sheets.AppendRowsRequest{
			DocumentID: documentID,
			Range:      appendRange,
			Rows:       toAppend,
		}); err != nil {
			s.forget(documentID, err)
			return apperr.Store("append config rows", err)
		}
	}

	s.logger.Debug("config rows upserted",
		zap.String("academic_year", academicYear),
		zap.Int("updated", len(toUpdate)),
		zap.Int("appended", len(toAppend)),
	)
	return nil
}

// ValidateUpdates rejects an empty batch or entries without clubId/sheetId.
func ValidateUpdates(updates []models.ConfigUpdate) error {
	if len(updates) == 0 {
		return apperr.Validation("no updates provided")
	}
	for i, u := range updates {
		if strings.TrimSpace(u.ClubID) == "" {
			return apperr.Validation(fmt.Sprintf("updates[%d].clubId is required", i))
		}
		if strings.TrimSpace(u.SheetID) == "" {
			return apperr.Validation(fmt.Sprintf("updates[%d].sheetId is required", i))
		}
	}
	return nil
}
