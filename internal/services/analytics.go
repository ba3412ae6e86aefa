package services

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"gsc-dashboard/internal/errors"
	"gsc-dashboard/internal/models"
)

const (
	GroupByQuery  = "query"
	GroupByDomain = "domain"

	// maxDatasets caps how many uploads one session may hold.
	maxDatasets = 8

	unknownKey = "(unknown)"
)

// Analytics holds one session's uploaded Datasets and answers aggregation
// queries over them. Every query is recomputed from the raw Records on
// each call; nothing derived is cached.
type Analytics struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
	order    []string
	logger   *slog.Logger
}

func NewAnalytics() *Analytics {
	return &Analytics{
		datasets: make(map[string]*models.Dataset),
		logger:   slog.Default(),
	}
}

// AddDataset stores a dataset under its label. Re-uploading a label
// replaces the previous dataset in place.
func (a *Analytics) AddDataset(ds *models.Dataset) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.datasets[ds.Label]; !exists {
		if len(a.datasets) >= maxDatasets {
			return errors.Validation(fmt.Sprintf("session already holds %d datasets", maxDatasets))
		}
		a.order = append(a.order, ds.Label)
	}
	a.datasets[ds.Label] = ds

	a.logger.Info("dataset stored",
		"label", ds.Label,
		"rows", len(ds.Records),
		"skipped", ds.SkippedRows,
	)
	return nil
}

func (a *Analytics) RemoveDataset(label string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.datasets[label]; !ok {
		return false
	}
	delete(a.datasets, label)
	a.order = slices.DeleteFunc(a.order, func(l string) bool { return l == label })
	return true
}

// Datasets lists summaries in upload order.
func (a *Analytics) Datasets() []models.DatasetSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.DatasetSummary, 0, len(a.order))
	for _, label := range a.order {
		out = append(out, a.datasets[label].Summary())
	}
	return out
}

func (a *Analytics) dataset(label string) (*models.Dataset, error) {
	if label == "" {
		// Convenience for the single-upload case.
		if len(a.order) == 1 {
			return a.datasets[a.order[0]], nil
		}
		return nil, errors.BadRequest("dataset label is required")
	}
	ds, ok := a.datasets[label]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("no dataset labeled %q", label))
	}
	return ds, nil
}

// Aggregate groups one dataset's records by the exact string value of the
// grouping field, sums clicks and impressions, and recomputes CTR and
// position as impression-weighted values. Rows come back ordered by
// clicks descending, ties broken by key so output is deterministic.
func (a *Analytics) Aggregate(label, groupBy string) ([]models.AggregateRow, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ds, err := a.dataset(label)
	if err != nil {
		return nil, err
	}
	key, err := keyFunc(groupBy)
	if err != nil {
		return nil, err
	}
	return aggregateRecords(ds.Records, key), nil
}

// Compare pairs the aggregates of two datasets key by key. A key missing
// on one side is flagged absent there rather than reported as zero.
func (a *Analytics) Compare(labelA, labelB, groupBy string) ([]models.ComparisonRow, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	dsA, err := a.dataset(labelA)
	if err != nil {
		return nil, err
	}
	dsB, err := a.dataset(labelB)
	if err != nil {
		return nil, err
	}
	key, err := keyFunc(groupBy)
	if err != nil {
		return nil, err
	}

	sideA := make(map[string]models.AggregateRow)
	for _, row := range aggregateRecords(dsA.Records, key) {
		sideA[row.Key] = row
	}
	sideB := make(map[string]models.AggregateRow)
	for _, row := range aggregateRecords(dsB.Records, key) {
		sideB[row.Key] = row
	}

	keys := make([]string, 0, len(sideA))
	for k := range sideA {
		keys = append(keys, k)
	}
	for k := range sideB {
		if _, ok := sideA[k]; !ok {
			keys = append(keys, k)
		}
	}

	rows := make([]models.ComparisonRow, 0, len(keys))
	for _, k := range keys {
		rowA, okA := sideA[k]
		rowB, okB := sideB[k]

		row := models.ComparisonRow{
			Key: k,
			A:   sideMetrics(rowA, okA),
			B:   sideMetrics(rowB, okB),
		}
		if okA && okB {
			row.DeltaClicks = rowB.Clicks - rowA.Clicks
			row.DeltaImpressions = rowB.Impressions - rowA.Impressions
			row.DeltaCTR = rowB.CTR - rowA.CTR
			row.DeltaPosition = rowB.Position - rowA.Position
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(x, y models.ComparisonRow) int {
		if c := cmp.Compare(maxClicks(y), maxClicks(x)); c != 0 {
			return c
		}
		return cmp.Compare(x.Key, y.Key)
	})
	return rows, nil
}

// Overview computes the headline totals for one dataset.
func (a *Analytics) Overview(label string) (models.OverviewStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ds, err := a.dataset(label)
	if err != nil {
		return models.OverviewStats{}, err
	}

	stats := models.OverviewStats{
		Label:       ds.Label,
		Queries:     len(ds.Records),
		SkippedRows: ds.SkippedRows,
	}
	weighted := 0.0
	for _, rec := range ds.Records {
		stats.Clicks += rec.Clicks
		stats.Impressions += rec.Impressions
		stats.AIOverviewClicks += rec.AIOverviewClicks
		weighted += float64(rec.Impressions) * rec.Position
	}
	if stats.Impressions > 0 {
		stats.CTR = float64(stats.Clicks) / float64(stats.Impressions)
		stats.Position = weighted / float64(stats.Impressions)
	}
	if stats.Clicks > 0 {
		stats.AIOverviewShare = float64(stats.AIOverviewClicks) / float64(stats.Clicks)
	}
	return stats, nil
}

// Stats reports per-session counters for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, skipped := 0, 0
	for _, ds := range a.datasets {
		rows += len(ds.Records)
		skipped += ds.SkippedRows
	}
	return map[string]any{
		"datasets":     len(a.datasets),
		"labels":       slices.Clone(a.order),
		"rows":         rows,
		"skipped_rows": skipped,
	}
}

func keyFunc(groupBy string) (func(models.Record) string, error) {
	switch groupBy {
	case GroupByQuery, "":
		return func(r models.Record) string { return r.Query }, nil
	case GroupByDomain:
		return func(r models.Record) string {
			if r.Domain == "" {
				return unknownKey
			}
			return r.Domain
		}, nil
	default:
		return nil, errors.BadRequest(fmt.Sprintf("unknown grouping field %q", groupBy))
	}
}

type accumulator struct {
	clicks      int
	impressions int
	aiClicks    int
	weighted    float64
}

func aggregateRecords(records []models.Record, key func(models.Record) string) []models.AggregateRow {
	groups := make(map[string]*accumulator)
	for _, rec := range records {
		k := key(rec)
		acc := groups[k]
		if acc == nil {
			acc = &accumulator{}
			groups[k] = acc
		}
		acc.clicks += rec.Clicks
		acc.impressions += rec.Impressions
		acc.aiClicks += rec.AIOverviewClicks
		acc.weighted += float64(rec.Impressions) * rec.Position
	}

	rows := make([]models.AggregateRow, 0, len(groups))
	for k, acc := range groups {
		row := models.AggregateRow{
			Key:              k,
			Clicks:           acc.clicks,
			Impressions:      acc.impressions,
			AIOverviewClicks: acc.aiClicks,
		}
		if acc.impressions > 0 {
			row.CTR = float64(acc.clicks) / float64(acc.impressions)
			row.Position = acc.weighted / float64(acc.impressions)
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(x, y models.AggregateRow) int {
		if c := cmp.Compare(y.Clicks, x.Clicks); c != 0 {
			return c
		}
		return cmp.Compare(x.Key, y.Key)
	})
	return rows
}

func sideMetrics(row models.AggregateRow, present bool) models.SideMetrics {
	if !present {
		return models.SideMetrics{}
	}
	return models.SideMetrics{
		Present:          true,
		Clicks:           row.Clicks,
		Impressions:      row.Impressions,
		CTR:              row.CTR,
		Position:         row.Position,
		AIOverviewClicks: row.AIOverviewClicks,
	}
}

func maxClicks(row models.ComparisonRow) int {
	return max(row.A.Clicks, row.B.Clicks)
}

// FilterRows keeps aggregate rows whose key contains the filter,
// case-insensitively. An empty filter keeps everything.
func FilterRows(rows []models.AggregateRow, filter string) []models.AggregateRow {
	if filter == "" {
		return rows
	}
	needle := strings.ToLower(filter)
	out := make([]models.AggregateRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Key), needle) {
			out = append(out, row)
		}
	}
	return out
}

// FilterComparison is FilterRows for comparison output.
func FilterComparison(rows []models.ComparisonRow, filter string) []models.ComparisonRow {
	if filter == "" {
		return rows
	}
	needle := strings.ToLower(filter)
	out := make([]models.ComparisonRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Key), needle) {
			out = append(out, row)
		}
	}
	return out
}

// LimitRows caps a row slice; limit <= 0 means no cap.
func LimitRows[T any](rows []T, limit int) []T {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}
