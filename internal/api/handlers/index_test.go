package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/querygate/pkg/utils"
)

const moviesPayload = `{
	"uid": "movies",
	"fields": [
		{"name": "title", "displayed": true},
		{"name": "overview", "displayed": true},
		{"name": "genre", "displayed": true, "faceted": true}
	]
}`

func postJSON(router http.Handler, target, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func putJSON(router http.Handler, target, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, target, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIndexHandler_CreateIndex(t *testing.T) {
	router, _, stub := newTestServer(t)

	rec := postJSON(router, "/api/v1/indexes", moviesPayload)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "movies", resp.UID)
	assert.Len(t, resp.Fields, 3)
	assert.Equal(t, 1, resp.Version)
	assert.True(t, stub.Collections["movies"])
}

func TestIndexHandler_CreateIndex_Duplicate(t *testing.T) {
	router, _, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	rec := postJSON(router, "/api/v1/indexes", moviesPayload)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, utils.CodeAlreadyExists, decodeErrorCode(t, rec.Body))
}

func TestIndexHandler_CreateIndex_InvalidPayload(t *testing.T) {
	router, _, _ := newTestServer(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"uid": "movies"`},
		{"missing fields", `{"uid": "movies", "fields": []}`},
		{"uid with spaces", `{"uid": "my movies", "fields": [{"name": "title"}]}`},
		{"field name with markup", `{"uid": "movies", "fields": [{"name": "<title>"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(router, "/api/v1/indexes", tt.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIndexHandler_GetAndList(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/indexes", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list IndexListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestIndexHandler_DeleteIndex(t *testing.T) {
	router, _, stub := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/indexes/movies", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, stub.Collections["movies"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsHandler_GetSettings(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var settings SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, []string{"title", "overview", "genre"}, settings.DisplayedAttributes)
	assert.Equal(t, []string{"genre"}, settings.AttributesForFaceting)
}

func TestSettingsHandler_UpdateDisplayedAttributes(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	rec := putJSON(router, "/api/v1/indexes/movies/settings/displayed-attributes", `["title"]`)

	require.Equal(t, http.StatusOK, rec.Code)

	var settings SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, []string{"title"}, settings.DisplayedAttributes)
}

func TestSettingsHandler_UpdateDisplayedAttributes_UnknownName(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	rec := putJSON(router, "/api/v1/indexes/movies/settings/displayed-attributes", `["title","director"]`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.CodeValidation, decodeErrorCode(t, rec.Body))
}

func TestSettingsHandler_UpdateFacetedAttributes(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	rec := putJSON(router, "/api/v1/indexes/movies/settings/attributes-for-faceting", `["title","genre"]`)

	require.Equal(t, http.StatusOK, rec.Code)

	var settings SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, []string{"title", "genre"}, settings.AttributesForFaceting)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/indexes/movies/settings/attributes-for-faceting", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var faceted []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &faceted))
	assert.Equal(t, []string{"title", "genre"}, faceted)
}

func TestSettingsHandler_UpdateFacetedAttributes_InvalidBody(t *testing.T) {
	router, _, _ := newTestServer(t)
	require.Equal(t, http.StatusCreated, postJSON(router, "/api/v1/indexes", moviesPayload).Code)

	rec := putJSON(router, "/api/v1/indexes/movies/settings/attributes-for-faceting", `{"attributes": ["genre"]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
