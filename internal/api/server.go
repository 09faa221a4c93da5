// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the parcel query surface and the on-demand scan
// handlers: a filtered read endpoint over the full parcel row, and a
// handful of single-parcel scan triggers, each delegating to the same
// clients, evaluators and scoring functions the batch passes use. No
// handler re-implements scoring.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parceldistress/sentinel/internal/config"
	"github.com/parceldistress/sentinel/internal/sources/aerial"
	"github.com/parceldistress/sentinel/internal/sources/flood"
	"github.com/parceldistress/sentinel/internal/sources/highres"
	"github.com/parceldistress/sentinel/internal/sources/historical"
	"github.com/parceldistress/sentinel/internal/sources/satellite"
	"github.com/parceldistress/sentinel/internal/sources/vacancy"
	"github.com/parceldistress/sentinel/internal/store"
)

// Server wires the query surface and on-demand scan handlers onto gin's
// default engine, owning one long-lived connection shared by every
// request — the read endpoints are not writes, so the short-lived
// per-flush connection discipline the batch passes use does not apply
// here.
type Server struct {
	db         *sql.DB
	cfg        *config.Config
	aerial     *aerial.Client
	flood      *flood.Client
	historical *historical.Client
	satellite  *satellite.Client
	vacancy    *vacancy.Client
	highres    *highres.Client
}

// Deps are the collaborators NewServer needs. Vacancy may be nil: the
// check-vacancy handler degrades to a 503 when no vacancy credentials were
// configured. The pass2 CLI command, by contrast, refuses to run without
// them.
type Deps struct {
	DB         *sql.DB
	Config     *config.Config
	Aerial     *aerial.Client
	Flood      *flood.Client
	Historical *historical.Client
	Satellite  *satellite.Client
	Vacancy    *vacancy.Client
	HighRes    *highres.Client
}

// NewServer builds a Server from its dependencies.
func NewServer(deps Deps) *Server {
	return &Server{
		db:         deps.DB,
		cfg:        deps.Config,
		aerial:     deps.Aerial,
		flood:      deps.Flood,
		historical: deps.Historical,
		satellite:  deps.Satellite,
		vacancy:    deps.Vacancy,
		highres:    deps.HighRes,
	}
}

// Run builds the gin engine and blocks serving on addr.
func (s *Server) Run(addr string) error {
	r := s.Engine()

	return r.Run(addr)
}

// Engine builds the gin engine without starting it, so tests can drive it
// with httptest.
func (s *Server) Engine() *gin.Engine {
	r := gin.Default()

	r.GET("/api/parcels", s.listParcels)
	r.GET("/api/parcels/:county/:state/:parcel_id", s.getParcel)
	r.GET("/api/config/browser-map-key", s.getBrowserMapKey)

	scan := r.Group("/api/scan")
	scan.POST("/free/:county/:state/:parcel_id", s.scanFree)
	scan.POST("/full/:county/:state/:parcel_id", s.scanFull)
	scan.POST("/enrich-satellite/:county/:state/:parcel_id", s.scanEnrichSatellite)
	scan.POST("/check-vacancy/:county/:state/:parcel_id", s.scanCheckVacancy)
	scan.POST("/baseline/:county/:state/:parcel_id", s.scanBaseline)
	scan.POST("/flood-lookup/:county/:state/:parcel_id", s.scanFloodLookup)
	scan.POST("/high-res-search/:county/:state/:parcel_id", s.scanHighResSearch)

	return r
}

func (s *Server) getBrowserMapKey(ctx *gin.Context) {
	if s.cfg.BrowserMapKey == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no browser map key configured"})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"key": s.cfg.BrowserMapKey})
}

func fetchOneParcel(ctx *gin.Context, db *sql.DB, county, state, parcelID string) (store.ParcelView, bool) {
	views, err := store.Query(ctx.Request.Context(), db, store.Filter{
		ParcelID: parcelID,
		County:   county,
		State:    state,
		Limit:    1,
	})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return store.ParcelView{}, false
	}

	if len(views) == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "parcel not found"})

		return store.ParcelView{}, false
	}

	return views[0], true
}
