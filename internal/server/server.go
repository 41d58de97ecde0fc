package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"club-registration/internal/config"
	"club-registration/internal/models"
)

const maxBodyBytes = 1 << 20

var (
	errMissingConfigStore = errors.New("config store dependency required")
	errMissingSink        = errors.New("registration sink dependency required")
	errMissingProvisioner = errors.New("provisioner dependency required")
)

type ConfigStore interface {
	EnsureDocument(ctx context.Context) (string, error)
	ReadRows(ctx context.Context, documentID, academicYear string) ([]models.ConfigRow, error)
	UpsertRows(ctx context.Context, documentID string, updates []models.ConfigUpdate, academicYear string) error
}

type Sink interface {
	SubmitToOne(ctx context.Context, documentID string, sub models.Submission) error
	SubmitToMany(ctx context.Context, documentIDs []string, sub models.Submission) models.MultiSubmitResult
}

type Provisioner interface {
	Provision(ctx context.Context, clubName, academicYear string) (models.ProvisionResult, error)
}

type Dependencies struct {
	Config      config.Config
	ConfigStore ConfigStore
	Sink        Sink
	Provisioner Provisioner
	Logger      *zap.Logger
	Clock       func() time.Time
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.ConfigStore == nil {
		return nil, errMissingConfigStore
	}
	if deps.Sink == nil {
		return nil, errMissingSink
	}
	if deps.Provisioner == nil {
		return nil, errMissingProvisioner
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Logger(logger))
	router.Use(corsMiddleware(deps.Config.CORSAllowOrigins))
	router.Use(BodyLimit(maxBodyBytes))

	h := &httpHandler{
		configs:     deps.ConfigStore,
		sink:        deps.Sink,
		provisioner: deps.Provisioner,
		logger:      logger,
		clock:       clock,
	}

	api := router.Group("/api")
	api.GET("/club-config", h.handleGetConfig)
	api.POST("/submit-registration", h.handleSubmit)
	api.POST("/submit-registration-multi", h.handleSubmitMulti)

	admin := api.Group("/")
	admin.Use(RequireAdminSecret(deps.Config.AdminSecret, logger))
	admin.POST("/club-config", h.handleSaveConfig)
	admin.POST("/admin/save-config", h.handleSaveConfig)
	admin.POST("/create-sheet", h.handleCreateSheet)

	return router, nil
}

// New wraps handler in an http.Server listening on cfg.HTTPAddr.
func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
