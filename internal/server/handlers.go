package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"club-registration/internal/academic"
	"club-registration/internal/clubconfig"
	"club-registration/internal/models"
	"club-registration/internal/registration"
)

type httpHandler struct {
	configs     ConfigStore
	sink        Sink
	provisioner Provisioner
	logger      *zap.Logger
	clock       func() time.Time
}

type configResponse struct {
	AcademicYear string             `json:"academicYear"`
	Clubs        []models.ConfigRow `json:"clubs"`
}

type saveConfigRequest struct {
	Updates []models.ConfigUpdate `json:"updates" binding:"dive"`
}

type createSheetRequest struct {
	ClubName string `json:"clubName"`
}

type submitRequest struct {
	SheetID string             `json:"sheetId" binding:"required"`
	Data    *models.Submission `json:"data" binding:"required"`
}

type submitMultiRequest struct {
	SheetIDs []string           `json:"sheetIds"`
	Data     *models.Submission `json:"data" binding:"required"`
}

func (h *httpHandler) handleGetConfig(c *gin.Context) {
	ctx := c.Request.Context()
	year := academic.Current(h.clock)

	id, err := h.configs.EnsureDocument(ctx)
	if err != nil {
		h.fail(c, err, "Failed to load config")
		return
	}
	rows, err := h.configs.ReadRows(ctx, id, year)
	if err != nil {
		h.fail(c, err, "Failed to load config")
		return
	}
	c.JSON(http.StatusOK, configResponse{AcademicYear: year, Clubs: rows})
}

func (h *httpHandler) handleSaveConfig(c *gin.Context) {
	var req saveConfigRequest
	if !h.bind(c, &req) {
		return
	}
	if err := clubconfig.ValidateUpdates(req.Updates); err != nil {
		h.fail(c, err, "Failed to save config")
		return
	}

	ctx := c.Request.Context()
	year := academic.Current(h.clock)

	id, err := h.configs.EnsureDocument(ctx)
	if err != nil {
		h.fail(c, err, "Failed to save config")
		return
	}
	if err := h.configs.UpsertRows(ctx, id, req.Updates, year); err != nil {
		h.fail(c, err, "Failed to save config")
		return
	}
	rows, err := h.configs.ReadRows(ctx, id, year)
	if err != nil {
		h.fail(c, err, "Failed to save config")
		return
	}
	h.logger.Info("club config saved", zap.Int("updates", len(req.Updates)), zap.String("academic_year", year))
	c.JSON(http.StatusOK, configResponse{AcademicYear: year, Clubs: rows})
}

func (h *httpHandler) handleCreateSheet(c *gin.Context) {
	var req createSheetRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.provisioner.Provision(c.Request.Context(), req.ClubName, academic.Current(h.clock))
	if err != nil {
		h.fail(c, err, "Failed to create sheet")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	var req submitRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.sink.SubmitToOne(c.Request.Context(), req.SheetID, *req.Data); err != nil {
		h.fail(c, err, "Failed to submit registration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleSubmitMulti(c *gin.Context) {
	var req submitMultiRequest
	if !h.bind(c, &req) {
		return
	}
	if err := registration.ValidateDestinations(req.SheetIDs); err != nil {
		h.fail(c, err, "Failed to submit")
		return
	}
	c.JSON(http.StatusOK, h.sink.SubmitToMany(c.Request.Context(), req.SheetIDs, *req.Data))
}
