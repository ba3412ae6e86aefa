package models

import "time"

// Record is one row of a Search Console export. CTR is always stored as a
// fraction in [0,1], regardless of how the source file formatted it.
type Record struct {
	Query            string
	Page             string
	Domain           string
	Clicks           int
	Impressions      int
	CTR              float64
	Position         float64
	AIOverviewClicks int
}

// Dataset is the parsed contents of one uploaded file. It lives in session
// memory only and is replaced wholesale when the same label is re-uploaded.
type Dataset struct {
	Label       string    `json:"label"`
	Source      string    `json:"source"`
	Records     []Record  `json:"-"`
	SkippedRows int       `json:"skipped_rows"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DatasetSummary is what the API reports about a stored dataset.
type DatasetSummary struct {
	Label       string    `json:"label"`
	Source      string    `json:"source"`
	Rows        int       `json:"rows"`
	SkippedRows int       `json:"skipped_rows"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (d *Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		Label:       d.Label,
		Source:      d.Source,
		Rows:        len(d.Records),
		SkippedRows: d.SkippedRows,
		UploadedAt:  d.UploadedAt,
	}
}

// AggregateRow is one group of an aggregation. CTR is recomputed as total
// clicks over total impressions; Position is the impression-weighted mean.
type AggregateRow struct {
	Key              string  `json:"key"`
	Clicks           int     `json:"clicks"`
	Impressions      int     `json:"impressions"`
	CTR              float64 `json:"ctr"`
	Position         float64 `json:"position"`
	AIOverviewClicks int     `json:"ai_overview_clicks"`
}

// SideMetrics is one dataset's aggregate for a comparison key. Present is
// false when the key never occurred in that dataset, which is not the same
// as a key that occurred with zero clicks.
type SideMetrics struct {
	Present          bool    `json:"present"`
	Clicks           int     `json:"clicks"`
	Impressions      int     `json:"impressions"`
	CTR              float64 `json:"ctr"`
	Position         float64 `json:"position"`
	AIOverviewClicks int     `json:"ai_overview_clicks"`
}

// ComparisonRow pairs one grouping key across two datasets. Deltas are
// B minus A and only meaningful when both sides are present.
type ComparisonRow struct {
	Key              string      `json:"key"`
	A                SideMetrics `json:"a"`
	B                SideMetrics `json:"b"`
	DeltaClicks      int         `json:"delta_clicks"`
	DeltaImpressions int         `json:"delta_impressions"`
	DeltaCTR         float64     `json:"delta_ctr"`
	DeltaPosition    float64     `json:"delta_position"`
}

// OverviewStats are the headline numbers for one dataset.
type OverviewStats struct {
	Label            string  `json:"label"`
	Queries          int     `json:"queries"`
	Clicks           int     `json:"clicks"`
	Impressions      int     `json:"impressions"`
	CTR              float64 `json:"ctr"`
	Position         float64 `json:"position"`
	AIOverviewClicks int     `json:"ai_overview_clicks"`
	AIOverviewShare  float64 `json:"ai_overview_share"`
	SkippedRows      int     `json:"skipped_rows"`
}
