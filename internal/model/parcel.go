// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package model holds the Parcel entity and its scan-output column bands.
package model

import (
	"time"

	"github.com/parceldistress/sentinel/internal/spatial"
	"github.com/parceldistress/sentinel/internal/textnorm"
)

// Identity is the compound key a parcel is uniquely addressed by.
// parcel_id alone is only unique within a county.
type Identity struct {
	ParcelID  string
	County    string
	StateCode string
}

// Key returns the textnorm-folded county|STATE key (parcel_id not
// included), used in the vacancy-audit row and in error messages.
func (id Identity) Key() string {
	return textnorm.CountyKey(id.County, id.StateCode)
}

// Parcel is the primary entity: one row per property, owned by an upstream
// GIS ingestor. This system reads identity/location/address fields and
// writes scan-output columns back onto the same row.
type Parcel struct {
	Identity

	Point spatial.Point

	SitusAddress   string
	SitusCity      string
	SitusZIP       string
	MailingAddress string
	MailingCity    string
	MailingZIP     string
	MailingState   string

	PropertyClass string
	Valuation     float64
	LandSizeAcres float64

	Pass1   Pass1Band
	History HistoricalBand
	Sat     SatelliteBand
	Vacancy VacancyBand
	HighRes HighResBand
	Convict ConvictionBand

	UpdatedAt time.Time
}

// Pass1Band holds the bulk NDVI+flood band written by Pass 1.
type Pass1Band struct {
	NDVI          float64
	NDVICategory  string
	FloodZone     string
	SpecialHazard bool
	FloodRiskTier string // NONE|LOW|MODERATE|HIGH

	DistressScore float64

	FlagOvergrowth      bool
	FlagNeglect         bool
	FlagFlood           bool
	FlagStructural      bool
	ConfOvergrowth      float64
	ConfNeglect         float64
	ConfFlood           float64
	ConfStructural      float64

	ScanPass       int
	ScanDate       time.Time
	SentinelWorthy bool
	ScanError      string
}

// HistoricalBand holds the 5-year NDVI slope + percentile/composite band
// written by Pass 1.5.
type HistoricalBand struct {
	NDVISlope5yr     float64
	NDVISlopeValid   bool
	NDVISlopePctile  float64
	VintageCount     int
	YearSpan         int
	DistressComposite float64
	CompositeValid   bool
	CompositeDate    time.Time
}

// SatelliteBand holds the satellite-NDVI trend band written by Pass 1.5b.
type SatelliteBand struct {
	TrendDirection   string // rising|falling|stable|insufficient
	Slope            float64
	LatestNDVI       float64
	MonthCount       int
	MeanNDVI         float64
	Source           string
	ChartArtifactURL string
	SentinelScanDate time.Time
	ScanError        string
}

// VacancyBand holds the carrier-confirmed vacancy band written by Pass 2.
type VacancyBand struct {
	AddressNormalized string
	CityNormalized    string
	ZIPNormalized     string
	ZIP4Normalized    string

	Vacant          bool
	DPVConfirmed    bool
	Business        bool
	AddressMismatch bool

	CheckDate         time.Time
	ErrorCode         string
	FlagVacancy       bool
	VacancyConfidence float64
}

// HighResBand holds the paid high-resolution imagery band written by an
// on-demand scan.
type HighResBand struct {
	SceneCount     int
	ChangeScore    float64
	TemporalSpan   int
	EarliestDate   time.Time
	LatestDate     time.Time
	EarliestThumbURL string
	LatestThumbURL   string
	PlanetScanDate time.Time
}

// ConvictionBand holds the final fused score written by Pass 2.5.
type ConvictionBand struct {
	ConvictionScore       float64
	ConvictionBaseScore   float64
	ConvictionVacancyBonus float64
	ConvictionMCScore     float64
	ConvictionComponents  string // compact JSON
	MCSignalCount         int
	MCCodes               []string
	ConvictionDate        time.Time
}
