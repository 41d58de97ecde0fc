package registration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"club-registration/internal/apperr"
	"club-registration/internal/lock"
	"club-registration/internal/models"
	"club-registration/internal/notify"
	"club-registration/internal/sheets"
	"club-registration/internal/util"
)

// SheetHeader is the first row of every registration sheet. The column
// titles are the sign-up form questions, verbatim.
var SheetHeader = []string{
	"Timestamp",
	"Email Address",
	"What is your name (First and Last)?",
	"What grade are you in this year?",
	"We will be taking photos of club activities this year. These photos may also be used in the yearbook and club media. Do you agree to being subject of photography?",
	"Discord Username (Optional)",
}

const headerRange = "A1:F1"

// ConfigWriter is the part of the config store the provisioner needs.
type ConfigWriter interface {
	EnsureDocument(ctx context.Context) (string, error)
	UpsertRows(ctx context.Context, documentID string, updates []models.ConfigUpdate, academicYear string) error
}

type Provisioner struct {
	store    sheets.Store
	config   ConfigWriter
	locker   lock.Locker
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewProvisioner(store sheets.Store, config ConfigWriter, locker lock.Locker, notifier notify.Notifier, logger *zap.Logger) *Provisioner {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, config: config, locker: locker, notifier: notifier, logger: logger}
}

// DocumentName is the registration sheet title for a club and year.
func DocumentName(clubName, academicYear string) string {
	return fmt.Sprintf("%s Registration %s", clubName, academicYear)
}

// Provision returns the registration sheet for clubName in academicYear,
// creating it when no sheet with that name exists. Either way the config
// mapping is upserted.
func (p *Provisioner) Provision(ctx context.Context, clubName, academicYear string) (models.ProvisionResult, error) {
	clubName = strings.TrimSpace(clubName)
	clubID := util.Slug(clubName)
	if clubID == "" {
		return models.ProvisionResult{}, apperr.Validation("clubName is required")
	}

	configID, err := p.config.EnsureDocument(ctx)
	if err != nil {
		return models.ProvisionResult{}, err
	}

	name := DocumentName(clubName, academicYear)
	unlock, err := p.locker.Lock(ctx, name)
	if err != nil {
		return models.ProvisionResult{}, fmt.Errorf("lock %q: %w", name, err)
	}
	defer unlock()

	res := models.ProvisionResult{ClubID: clubID, ClubName: clubName, AcademicYear: academicYear}

	docs, err := p.store.FindDocuments(ctx, sheets.FindDocumentsRequest{Name: name, Kind: sheets.KindSpreadsheet})
	if err != nil {
		return models.ProvisionResult{}, apperr.Store("find registration sheet", err)
	}
	if len(docs) > 0 {
		res.SheetID = docs[0].ID
		res.Existing = true
		res.Message = fmt.Sprintf("Sheet for %s %s already exists", clubName, academicYear)
		if err := p.mapSheet(ctx, configID, res); err != nil {
			return models.ProvisionResult{}, err
		}
		p.logger.Info("registration sheet exists", zap.String("club_id", clubID), zap.String("sheet_id", res.SheetID))
		return res, nil
	}

	doc, err := p.store.CreateDocument(ctx, sheets.CreateDocumentRequest{Name: name, Kind: sheets.KindSpreadsheet})
	if err != nil {
		return models.ProvisionResult{}, apperr.Store("create registration sheet", err)
	}
	if err := p.initSheet(ctx, doc.ID); err != nil {
		p.discard(ctx, doc.ID)
		return models.ProvisionResult{}, err
	}

	res.SheetID = doc.ID
	res.Message = fmt.Sprintf("Created new sheet for %s %s", clubName, academicYear)
	if err := p.mapSheet(ctx, configID, res); err != nil {
		return models.ProvisionResult{}, err
	}
	p.logger.Info("registration sheet created",
		zap.String("club_id", clubID),
		zap.String("sheet_id", res.SheetID),
		zap.String("academic_year", academicYear),
	)
	p.notifier.SheetProvisioned(ctx, res)
	return res, nil
}

func (p *Provisioner) initSheet(ctx context.Context, documentID string) error {
	if err := p.store.SetRange(ctx, sheets.SetRangeRequest{
		DocumentID: documentID,
		Range:      headerRange,
		Rows:       sheets.Grid{SheetHeader},
	}); err != nil {
		return apperr.Store("write registration header", err)
	}
	if err := p.store.FormatBold(ctx, sheets.FormatBoldRequest{
		DocumentID: documentID,
		StartRow:   0,
		EndRow:     1,
		StartCol:   0,
		EndCol:     int64(len(SheetHeader)),
	}); err != nil {
		return apperr.Store("format registration header", err)
	}
	return nil
}

// discard removes a sheet whose header could not be written, so the next
// attempt does not find a half-initialized document by name.
func (p *Provisioner) discard(ctx context.Context, documentID string) {
	if err := p.store.DeleteDocument(context.WithoutCancel(ctx), documentID); err != nil {
		p.logger.Warn("could not remove uninitialized sheet", zap.String("sheet_id", documentID), zap.Error(err))
	}
}

func (p *Provisioner) mapSheet(ctx context.Context, configID string, res models.ProvisionResult) error {
	return p.config.UpsertRows(ctx, configID, []models.ConfigUpdate{{
		ClubID:   res.ClubID,
		ClubName: res.ClubName,
		SheetID:  res.SheetID,
	}}, res.AcademicYear)
}
