package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sumandas0/querygate/internal/api/middleware"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/models"
	"github.com/sumandas0/querygate/internal/query"
)

type SearchHandler struct {
	engine *core.Engine
}

func NewSearchHandler(engine *core.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

// Search godoc
// @Summary Search an index
// @Description Execute a search against an index, with optional cropping, highlighting and faceting
// @Tags search
// @Produce json
// @Param indexUID path string true "Index UID"
// @Param q query string true "Search query"
// @Param offset query int false "Number of hits to skip"
// @Param limit query int false "Maximum number of hits to return"
// @Param attributesToRetrieve query string false "Comma-separated attributes to return"
// @Param attributesToCrop query string false "Comma-separated attributes to crop, each optionally suffixed :length"
// @Param cropLength query int false "Default crop length"
// @Param attributesToHighlight query string false "Comma-separated attributes to highlight"
// @Param filters query string false "Filter expression passed to the engine"
// @Param matches query bool false "Include match position information"
// @Param facetFilters query string false "JSON facet filter expression"
// @Param facetsDistribution query string false "JSON array of attributes to count facets for"
// @Success 200 {object} models.SearchResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/search [get]
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")
	if indexUID == "" {
		middleware.SendValidationError(w, r, "index UID is required", nil)
		return
	}

	raw, err := query.ParseSearchParams(r.URL.Query())
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	h.execute(w, r, indexUID, raw)
}

// SearchPost godoc
// @Summary Search an index with a JSON body
// @Description Execute a search with parameters supplied as a JSON document instead of query parameters
// @Tags search
// @Accept json
// @Produce json
// @Param indexUID path string true "Index UID"
// @Param request body models.RawSearchQuery true "Search parameters"
// @Success 200 {object} models.SearchResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/search [post]
func (h *SearchHandler) SearchPost(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")
	if indexUID == "" {
		middleware.SendValidationError(w, r, "index UID is required", nil)
		return
	}

	var raw models.RawSearchQuery
	decoder := json.NewDecoder(r.Body)
	// The query-string surface rejects unknown parameters; the body surface
	// has to do the same.
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		middleware.SendValidationError(w, r, "invalid request body", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if raw.Offset != nil && *raw.Offset < 0 {
		middleware.SendValidationError(w, r, "offset must not be negative", nil)
		return
	}
	if raw.Limit != nil && (*raw.Limit < 1 || *raw.Limit > 1000) {
		middleware.SendValidationError(w, r, "limit must be between 1 and 1000", nil)
		return
	}
	if raw.CropLength != nil && *raw.CropLength < 1 {
		middleware.SendValidationError(w, r, "cropLength must be positive", nil)
		return
	}

	h.execute(w, r, indexUID, &raw)
}

func (h *SearchHandler) execute(w http.ResponseWriter, r *http.Request, indexUID string, raw *models.RawSearchQuery) {
	result, err := h.engine.Search(r.Context(), indexUID, raw)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}
