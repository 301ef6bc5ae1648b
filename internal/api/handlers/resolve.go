package handlers

import (
	"errors"
	"net/http"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/api"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/country"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/entity"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// MaxBatchCandidates bounds the candidates accepted by one batch request.
const MaxBatchCandidates = 1000

type ResolveHandler struct {
	resolver  *service.ResolverService
	validator *validator.Validate
}

func NewResolveHandler(resolver *service.ResolverService) *ResolveHandler {
	return &ResolveHandler{
		resolver:  resolver,
		validator: validator.New(),
	}
}

type ScoreRequest struct {
	EntityA  string `json:"entity_a" binding:"required" validate:"max=500"`
	EntityB  string `json:"entity_b" binding:"required" validate:"max=500"`
	CountryA string `json:"country_a" validate:"max=100"`
	CountryB string `json:"country_b" validate:"max=100"`
}

type BatchScoreRequest struct {
	Query      matching.Query       `json:"query" binding:"required"`
	Candidates []matching.Candidate `json:"candidates" binding:"required,min=1,dive"`
	Rank       bool                 `json:"rank"`
}

type EquivalenceRequest struct {
	EntityA string `json:"entity_a" binding:"required" validate:"max=500"`
	EntityB string `json:"entity_b" binding:"required" validate:"max=500"`
}

type CountryRequest struct {
	Country string `json:"country" binding:"required" validate:"max=100"`
}

type CountryResponse struct {
	Found bool           `json:"found"`
	Match *country.Match `json:"match"`
}

type EntityRequest struct {
	Entity string `json:"entity" binding:"required" validate:"max=500"`
}

type EntityResponse struct {
	entity.NormalizedEntity
	Bracketed  entity.Bracketed `json:"bracketed"`
	Core       string           `json:"core"`
	SkipsMatch bool             `json:"skips_matching"`
}

type ConfigValueResponse struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Value  any    `json:"value"`
}

func (h *ResolveHandler) meta() *api.Meta {
	return &api.Meta{ConfigVersion: h.resolver.Version()}
}

// Score compares two entity texts
func (h *ResolveHandler) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	result := h.resolver.Score(c.Request.Context(), matching.ScoreRequest{
		EntityA:  req.EntityA,
		EntityB:  req.EntityB,
		CountryA: req.CountryA,
		CountryB: req.CountryB,
	})
	c.Set(api.ContextKeyMatchType, result.MatchType)
	api.SendSuccess(c, http.StatusOK, result, h.meta())
}

// BatchScore scores a query against caller-supplied candidates. With rank set
// the none tier is dropped and results are ordered by confidence.
func (h *ResolveHandler) BatchScore(c *gin.Context) {
	var req BatchScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if len(req.Candidates) > MaxBatchCandidates {
		api.SendValidationError(c, "Validation failed", "too many candidates")
		return
	}
	if err := h.validator.Var(req.Query.Entity, "max=500"); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	var results []matching.DatasetMatch
	if req.Rank {
		results = h.resolver.Rank(c.Request.Context(), req.Query, req.Candidates)
	} else {
		results = h.resolver.BatchScore(c.Request.Context(), req.Query, req.Candidates)
	}
	c.Set(api.ContextKeyCandidates, len(req.Candidates))
	meta := h.meta()
	count := len(results)
	meta.Count = &count
	api.SendSuccess(c, http.StatusOK, results, meta)
}

// Equivalence reports the structural equivalence of two entity texts
func (h *ResolveHandler) Equivalence(c *gin.Context) {
	var req EquivalenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	api.SendSuccess(c, http.StatusOK, h.resolver.AreEquivalent(req.EntityA, req.EntityB), h.meta())
}

// NormalizeCountry resolves a country string. An unknown country is not an
// error: found is false and match is null.
func (h *ResolveHandler) NormalizeCountry(c *gin.Context) {
	var req CountryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	resp := CountryResponse{}
	if m, ok := h.resolver.NormalizeCountry(req.Country); ok {
		resp.Found = true
		resp.Match = &m
	}
	api.SendSuccess(c, http.StatusOK, resp, h.meta())
}

// NormalizeEntity returns the normalized forms of an entity text
func (h *ResolveHandler) NormalizeEntity(c *gin.Context) {
	var req EntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		api.SendValidationError(c, "Validation failed", err.Error())
		return
	}

	entities := h.resolver.Engine().Entities()
	resp := EntityResponse{
		NormalizedEntity: h.resolver.NormalizeEntity(req.Entity),
		Bracketed:        entities.ExtractBracketed(req.Entity),
		Core:             entities.Core(req.Entity),
		SkipsMatch:       entities.ShouldSkipMatching(req.Entity),
	}
	api.SendSuccess(c, http.StatusOK, resp, h.meta())
}

// ValidateConfig re-validates the active configuration
func (h *ResolveHandler) ValidateConfig(c *gin.Context) {
	api.SendSuccess(c, http.StatusOK, h.resolver.ValidateConfiguration(), nil)
}

// GetConfigValue reads a dotted path from one configuration document
func (h *ResolveHandler) GetConfigValue(c *gin.Context) {
	domain := c.Query("domain")
	path := c.Query("path")
	if domain == "" || path == "" {
		api.SendValidationError(c, "Validation failed", "domain and path query parameters are required")
		return
	}

	value, err := h.resolver.ConfigValue(domain, path, nil)
	if errors.Is(err, service.ErrUnknownDomain) {
		api.SendBadRequest(c, err.Error())
		return
	}
	if err != nil {
		api.SendInternalError(c, "Failed to read configuration value")
		return
	}
	if value == nil {
		api.SendNotFound(c, "Configuration value")
		return
	}
	api.SendSuccess(c, http.StatusOK, ConfigValueResponse{Domain: domain, Path: path, Value: value}, h.meta())
}

// ReloadConfig re-reads the configuration documents. An invalid edit is
// rejected and the previous configuration keeps serving.
func (h *ResolveHandler) ReloadConfig(c *gin.Context) {
	result, err := h.resolver.Reload()
	if errors.Is(err, service.ErrInvalidConfiguration) {
		api.SendError(c, http.StatusUnprocessableEntity, api.ErrCodeInvalidConfig, "Configuration rejected", err.Error())
		return
	}
	if err != nil {
		api.SendInternalError(c, err.Error())
		return
	}
	api.SendSuccess(c, http.StatusOK, result, nil)
}

// CacheStats returns result cache counters
func (h *ResolveHandler) CacheStats(c *gin.Context) {
	api.SendSuccess(c, http.StatusOK, h.resolver.CacheStats(), h.meta())
}
