package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sumandas0/querygate/internal/api/middleware"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/models"
)

type IndexHandler struct {
	engine    *core.Engine
	validator *core.Validator
}

func NewIndexHandler(engine *core.Engine, validator *core.Validator) *IndexHandler {
	return &IndexHandler{
		engine:    engine,
		validator: validator,
	}
}

type FieldRequest struct {
	Name      string `json:"name" validate:"required,attribute_name" example:"title"`
	Displayed bool   `json:"displayed" example:"true"`
	Faceted   bool   `json:"faceted" example:"false"`
}

type IndexRequest struct {
	UID    string         `json:"uid" validate:"required,index_uid" example:"movies"`
	Fields []FieldRequest `json:"fields" validate:"required,min=1,dive"`
}

type IndexResponse struct {
	ID        uuid.UUID                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UID       string                   `json:"uid" example:"movies"`
	Fields    []models.FieldDefinition `json:"fields"`
	CreatedAt time.Time                `json:"created_at" example:"2023-01-01T00:00:00Z"`
	UpdatedAt time.Time                `json:"updated_at" example:"2023-01-01T00:00:00Z"`
	Version   int                      `json:"version" example:"1"`
}

type IndexListResponse struct {
	Indexes []IndexResponse `json:"indexes"`
	Total   int             `json:"total" example:"3"`
}

// CreateIndex godoc
// @Summary Create a new index
// @Description Register an index definition and provision its search collection
// @Tags indexes
// @Accept json
// @Produce json
// @Param index body IndexRequest true "Index definition"
// @Success 201 {object} IndexResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /api/v1/indexes [post]
func (h *IndexHandler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.SendValidationError(w, r, "invalid request body", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		middleware.SendError(w, r, err, http.StatusBadRequest)
		return
	}

	fields := make([]models.FieldDefinition, len(req.Fields))
	for i, f := range req.Fields {
		fields[i] = models.FieldDefinition{
			Name:      f.Name,
			Displayed: f.Displayed,
			Faceted:   f.Faceted,
		}
	}

	def, err := h.engine.CreateIndex(r.Context(), req.UID, fields)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(indexToResponse(def))
}

// GetIndex godoc
// @Summary Get an index
// @Description Get an index definition by its UID
// @Tags indexes
// @Produce json
// @Param indexUID path string true "Index UID"
// @Success 200 {object} IndexResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID} [get]
func (h *IndexHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")

	def, err := h.engine.GetIndex(r.Context(), indexUID)
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(indexToResponse(def))
}

// ListIndexes godoc
// @Summary List indexes
// @Description List all index definitions in creation order
// @Tags indexes
// @Produce json
// @Success 200 {object} IndexListResponse
// @Router /api/v1/indexes [get]
func (h *IndexHandler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	defs, err := h.engine.ListIndexes(r.Context())
	if err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	response := IndexListResponse{
		Indexes: make([]IndexResponse, len(defs)),
		Total:   len(defs),
	}
	for i, def := range defs {
		response.Indexes[i] = indexToResponse(def)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// DeleteIndex godoc
// @Summary Delete an index
// @Description Remove an index definition and tear down its search collection
// @Tags indexes
// @Param indexUID path string true "Index UID"
// @Success 204 "No Content"
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/indexes/{indexUID} [delete]
func (h *IndexHandler) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	indexUID := chi.URLParam(r, "indexUID")

	if err := h.engine.DeleteIndex(r.Context(), indexUID); err != nil {
		statusCode := middleware.HTTPErrorFromAppError(err)
		middleware.SendError(w, r, err, statusCode)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func indexToResponse(def *models.IndexDefinition) IndexResponse {
	return IndexResponse{
		ID:        def.ID,
		UID:       def.UID,
		Fields:    def.Fields,
		CreatedAt: def.CreatedAt,
		UpdatedAt: def.UpdatedAt,
		Version:   def.Version,
	}
}
