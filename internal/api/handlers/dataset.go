package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/api"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/dataset"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxUploadBytes bounds dataset uploads.
const MaxUploadBytes = 32 << 20

type datasetMatcher interface {
	Match(ctx context.Context, q matching.Query) ([]matching.DatasetMatch, error)
}

type datasetImporter interface {
	Import(ctx context.Context, r io.Reader, opts dataset.ParseOptions) (dataset.Report, error)
}

type entityStore interface {
	CountEntities(ctx context.Context) (int64, error)
	GetEntity(ctx context.Context, id uuid.UUID) (*repository.ReferenceEntity, error)
}

type DatasetHandler struct {
	matcher  datasetMatcher
	importer datasetImporter
	entities entityStore
}

func NewDatasetHandler(matcher datasetMatcher, importer datasetImporter, entities entityStore) *DatasetHandler {
	return &DatasetHandler{matcher: matcher, importer: importer, entities: entities}
}

type DatasetStatsResponse struct {
	Entities int64 `json:"entities"`
}

// Match finds reference entities matching the query
func (h *DatasetHandler) Match(c *gin.Context) {
	var q matching.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	matches, err := h.matcher.Match(c.Request.Context(), q)
	if errors.Is(err, service.ErrEmptyQuery) {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}
	if err != nil {
		api.SendInternalError(c, "Failed to match against reference dataset")
		return
	}

	count := len(matches)
	api.SendSuccess(c, http.StatusOK, matches, &api.Meta{Count: &count})
}

// Import loads an uploaded CSV file into the reference dataset
func (h *DatasetHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		api.SendValidationError(c, "Validation failed", "a CSV file is required in the file field")
		return
	}
	f, err := file.Open()
	if err != nil {
		api.SendBadRequest(c, "Unable to read uploaded file")
		return
	}
	defer f.Close()

	report, err := h.importer.Import(c.Request.Context(), f, dataset.ParseOptions{SchemaType: c.PostForm("schema_type")})
	if errors.Is(err, dataset.ErrUnknownFormat) {
		api.SendValidationError(c, "Unrecognized dataset format", err.Error())
		return
	}
	if err != nil {
		api.SendInternalError(c, "Failed to import dataset")
		return
	}
	api.SendSuccess(c, http.StatusCreated, report, nil)
}

// Stats reports the size of the reference dataset
func (h *DatasetHandler) Stats(c *gin.Context) {
	n, err := h.entities.CountEntities(c.Request.Context())
	if err != nil {
		api.SendInternalError(c, "Failed to count reference entities")
		return
	}
	api.SendSuccess(c, http.StatusOK, DatasetStatsResponse{Entities: n}, nil)
}

// GetEntity returns one reference entity, e.g. to show the record behind a
// dataset match
func (h *DatasetHandler) GetEntity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		api.SendValidationError(c, "Invalid entity ID", err.Error())
		return
	}

	entity, err := h.entities.GetEntity(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		api.SendNotFound(c, "Reference entity")
		return
	}
	if err != nil {
		api.SendInternalError(c, "Failed to load reference entity")
		return
	}
	api.SendSuccess(c, http.StatusOK, entity, nil)
}
