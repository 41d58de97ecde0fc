// Package registration appends student submissions to club sheets and
// provisions new registration sheets.
package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"club-registration/internal/apperr"
	"club-registration/internal/models"
	"club-registration/internal/notify"
	"club-registration/internal/sheets"
	"club-registration/internal/util"
)

const (
	submissionRange = "A:F"
	// MaxInFlight caps concurrent appends in one fan-out.
	MaxInFlight = 4
)

type Sink struct {
	store    sheets.Store
	notifier notify.Notifier
	clock    func() time.Time
	logger   *zap.Logger
}

func NewSink(store sheets.Store, notifier notify.Notifier, clock func() time.Time, logger *zap.Logger) *Sink {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, notifier: notifier, clock: clock, logger: logger}
}

// SubmitToOne appends the submission to a single sheet.
func (s *Sink) SubmitToOne(ctx context.Context, documentID string, sub models.Submission) error {
	if strings.TrimSpace(documentID) == "" {
		return apperr.Validation("sheetId is required")
	}
	row := s.row(sub)
	if err := s.append(ctx, documentID, row); err != nil {
		s.logger.Debug("submission append failed", zap.String("sheet_id", documentID), zap.Error(err))
		return err
	}
	s.logger.Info("submission stored", zap.String("sheet_id", documentID))
	return nil
}

// SubmitToMany appends the submission to every sheet independently. A failed
// destination is reported in its slot and never stops the others.
func (s *Sink) SubmitToMany(ctx context.Context, documentIDs []string, sub models.Submission) models.MultiSubmitResult {
	row := s.row(sub)
	results := make([]models.DestinationResult, len(documentIDs))

	var g errgroup.Group
	g.SetLimit(MaxInFlight)
	for i, id := range documentIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = models.DestinationResult{SheetID: id, OK: true}
			var err error
			if strings.TrimSpace(id) == "" {
				err = apperr.Validation("sheetId is empty")
			} else {
				err = s.append(ctx, id, row)
			}
			if err != nil {
				s.logger.Warn("destination append failed", zap.Int("index", i), zap.String("sheet_id", id), zap.Error(err))
				results[i].OK = false
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	res := models.MultiSubmitResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.OK {
			res.OK++
		}
	}
	s.logger.Info("fan-out submission finished", zap.Int("ok", res.OK), zap.Int("total", res.Total))
	if res.OK < res.Total {
		s.notifier.PartialDelivery(ctx, res)
	}
	return res
}

// ValidateDestinations rejects an absent or empty destination list.
func ValidateDestinations(documentIDs []string) error {
	if len(documentIDs) == 0 {
		return apperr.Validation("sheetIds must be a non-empty array")
	}
	return nil
}

func (s *Sink) row(sub models.Submission) []string {
	if strings.TrimSpace(sub.Timestamp) == "" {
		sub.Timestamp = util.FormatISO(s.clock())
	}
	return sub.Row()
}

func (s *Sink) append(ctx context.Context, documentID string, row []string) error {
	err := s.store.AppendRows(ctx, sheets.AppendRowsRequest{
		DocumentID: documentID,
		Range:      submissionRange,
		Rows:       sheets.Grid{row},
	})
	if err != nil {
		return apperr.Store(fmt.Sprintf("append to %s", documentID), err)
	}
	return nil
}
