package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sumandas0/querygate/internal/api/middleware"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/models"
)

type SettingsHandler struct {
	engine *core.Engine
}

func NewSettingsHandler(engine *core.Engine) *SettingsHandler {
	return &SettingsHandler{
		engine: engine,
	}
}

type SettingsResponse struct {
	DisplayedAttributes   []string `json:"displayedAttributes"`
	AttributesForFaceting []string `json:"attributesForFaceting"`
}

// GetSettings godoc
// @Summary Get index settings
// @Description Get the displayed and facet-enabled attributes of an index
// @Tags settings
// @Produce json
// @Param indexUID path string true "Index UID"
// @Success 200 {object} SettingsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/settings [get]
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	def, ok := h.fetchIndex(w, r)
	if !ok {
		return
	}

	sendJSON(w, http.StatusOK, settingsFromDefinition(def))
}

// GetDisplayedAttributes godoc
// @Summary Get displayed attributes
// @Tags settings
// @Produce json
// @Param indexUID path string true "Index UID"
// @Success 200 {array} string
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/settings/displayed-attributes [get]
func (h *SettingsHandler) GetDisplayedAttributes(w http.ResponseWriter, r *http.Request) {
	def, ok := h.fetchIndex(w, r)
	if !ok {
		return
	}

	sendJSON(w, http.StatusOK, def.DisplayedAttributes())
}

// UpdateDisplayedAttributes godoc
// @Summary Replace displayed attributes
// @Description Replace the set of attributes returned in search results; unknown names reject the update
// @Tags settings
// @Accept json
// @Produce json
// @Param indexUID path string true "Index UID"
// @Param attributes body []string true "Attribute names"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/settings/displayed-attributes [put]
func (h *SettingsHandler) UpdateDisplayedAttributes(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")

	names, ok := decodeAttributeList(w, r)
	if !ok {
		return
	}

	def, err := h.engine.UpdateDisplayedAttributes(r.Context(), indexUID, names)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	sendJSON(w, http.StatusOK, settingsFromDefinition(def))
}

// GetFacetedAttributes godoc
// @Summary Get attributes for faceting
// @Tags settings
// @Produce json
// @Param indexUID path string true "Index UID"
// @Success 200 {array} string
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/settings/attributes-for-faceting [get]
func (h *SettingsHandler) GetFacetedAttributes(w http.ResponseWriter, r *http.Request) {
	def, ok := h.fetchIndex(w, r)
	if !ok {
		return
	}

	sendJSON(w, http.StatusOK, def.FacetedAttributes())
}

// UpdateFacetedAttributes godoc
// @Summary Replace attributes for faceting
// @Description Replace the set of facet-enabled attributes; unknown names reject the update
// @Tags settings
// @Accept json
// @Produce json
// @Param indexUID path string true "Index UID"
// @Param attributes body []string true "Attribute names"
// @Success 200 {object} SettingsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID}/settings/attributes-for-faceting [put]
func (h *SettingsHandler) UpdateFacetedAttributes(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")

	names, ok := decodeAttributeList(w, r)
	if !ok {
		return
	}

	def, err := h.engine.UpdateFacetedAttributes(r.Context(), indexUID, names)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	sendJSON(w, http.StatusOK, settingsFromDefinition(def))
}

func (h *SettingsHandler) fetchIndex(w http.ResponseWriter, r *http.Request) (*models.IndexDefinition, bool) {
	indexUID := chi.URLParam(r, "indexUID")

	def, err := h.engine.GetIndex(r.Context(), indexUID)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return nil, false
	}
	return def, true
}

func decodeAttributeList(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		middleware.SendValidationError(w, r, "request body must be a JSON array of attribute names", map[string]any{
			"error": err.Error(),
		})
		return nil, false
	}
	return names, true
}

func settingsFromDefinition(def *models.IndexDefinition) SettingsResponse {
	displayed := def.DisplayedAttributes()
	faceted := def.FacetedAttributes()
	if displayed == nil {
		displayed = []string{}
	}
	if faceted == nil {
		faceted = []string{}
	}
	return SettingsResponse{
		DisplayedAttributes:   displayed,
		AttributesForFaceting: faceted,
	}
}

func sendJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
