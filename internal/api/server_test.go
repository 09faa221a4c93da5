// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/model"
	"github.com/parceldistress/sentinel/internal/store"
)

// setupAPITest builds a gin engine backed by an in-memory DuckDB database:
// a real schema, no mocked repository, exercised through httptest.
func setupAPITest(t *testing.T) (*gin.Engine, *sql.DB) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.Migrate(db))

	srv := NewServer(Deps{DB: db, Config: &config.Config{}})

	return srv.Engine(), db
}

func insertParcel(t *testing.T, db *sql.DB, id model.Identity) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO parcels (parcel_id, county, state_code, point, situs_address, property_class, valuation, land_size_acres)
		VALUES (?, ?, ?, ST_Point(-81.1873, 35.2621), 'MAIN', 'RESIDENTIAL', 100000, 0.5)
	`, id.ParcelID, id.County, id.StateCode)
	require.NoError(t, err)
}

func TestGetBrowserMapKey_NotFoundWhenUnset(t *testing.T) {
	router, _ := setupAPITest(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/config/browser-map-key", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBrowserMapKey_ReturnsConfiguredKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.Migrate(db))

	srv := NewServer(Deps{DB: db, Config: &config.Config{BrowserMapKey: "abc123"}})
	router := srv.Engine()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/config/browser-map-key", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "abc123", body["key"])
}

func TestGetParcel_ReturnsNotFoundForMissingParcel(t *testing.T) {
	router, _ := setupAPITest(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/parcels/Gaston/NC/999", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetParcel_ReturnsParcelView(t *testing.T) {
	router, db := setupAPITest(t)

	insertParcel(t, db, model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/parcels/Gaston/NC/A", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "A", body["parcel_id"])
	require.Equal(t, "Gaston", body["county"])
}

func TestListParcels_FiltersByCountyAndState(t *testing.T) {
	router, db := setupAPITest(t)

	insertParcel(t, db, model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"})
	insertParcel(t, db, model.Identity{ParcelID: "B", County: "Wake", StateCode: "NC"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/parcels?county=Gaston&state=NC", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count   int                      `json:"count"`
		Parcels []map[string]interface{} `json:"parcels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "A", body.Parcels[0]["parcel_id"])
}

func TestListParcels_ClampsOversizedLimitQueryParam(t *testing.T) {
	router, db := setupAPITest(t)

	for i := 0; i < 3; i++ {
		insertParcel(t, db, model.Identity{ParcelID: string(rune('A' + i)), County: "Gaston", StateCode: "NC"})
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/parcels?limit=999999", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 3, body.Count)
}

func TestScanCheckVacancy_ServiceUnavailableWithoutVacancyClient(t *testing.T) {
	router, db := setupAPITest(t)

	insertParcel(t, db, model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/scan/check-vacancy/Gaston/NC/A", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScanHighResSearch_ServiceUnavailableWithoutHighResClient(t *testing.T) {
	router, db := setupAPITest(t)

	insertParcel(t, db, model.Identity{ParcelID: "A", County: "Gaston", StateCode: "NC"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/scan/high-res-search/Gaston/NC/A", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
