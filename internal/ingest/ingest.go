// Package ingest parses Search Console CSV exports into Datasets.
//
// Required columns (matched case-insensitively): query, clicks,
// impressions, ctr, position. Optional: page/url, ai_overview_clicks.
// Rows with non-coercible numeric cells are skipped and counted rather
// than failing the whole file; a file with no usable rows is rejected.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gsc-dashboard/internal/errors"
	"gsc-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 2000
	maxWorkers = 8
)

var requiredColumns = []string{"query", "clicks", "impressions", "ctr", "position"}

// columnIndex maps recognized column names to their position in the
// header row. Optional columns are -1 when absent.
type columnIndex struct {
	query       int
	clicks      int
	impressions int
	ctr         int
	position    int
	page        int
	aiClicks    int
}

func indexColumns(header []string) (columnIndex, error) {
	idx := columnIndex{query: -1, clicks: -1, impressions: -1, ctr: -1, position: -1, page: -1, aiClicks: -1}

	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "query", "top queries":
			idx.query = i
		case "clicks":
			idx.clicks = i
		case "impressions":
			idx.impressions = i
		case "ctr":
			idx.ctr = i
		case "position":
			idx.position = i
		case "page", "url", "top pages":
			idx.page = i
		case "ai_overview_clicks":
			idx.aiClicks = i
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		switch name {
		case "query":
			if idx.query < 0 {
				missing = append(missing, name)
			}
		case "clicks":
			if idx.clicks < 0 {
				missing = append(missing, name)
			}
		case "impressions":
			if idx.impressions < 0 {
				missing = append(missing, name)
			}
		case "ctr":
			if idx.ctr < 0 {
				missing = append(missing, name)
			}
		case "position":
			if idx.position < 0 {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return idx, errors.MissingColumn(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return idx, nil
}

// Load parses one uploaded CSV stream into a Dataset. The Dataset label is
// the domain of the first row's page URL when a page column exists,
// otherwise the filename stem.
func Load(ctx context.Context, r io.Reader, filename string) (*models.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.EmptyFile("file is empty")
	}
	if err != nil {
		return nil, errors.BadRequestWrap(err, "could not read CSV header")
	}

	idx, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.BadRequestWrap(err, "could not read CSV rows")
	}
	if len(rows) == 0 {
		return nil, errors.EmptyFile("no data rows after header")
	}

	records, skipped, err := parseRows(ctx, rows, idx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.MalformedValue("no row had usable numeric values")
	}

	return &models.Dataset{
		Label:       deriveLabel(records, filename),
		Source:      filepath.Base(filename),
		Records:     records,
		SkippedRows: skipped,
		UploadedAt:  time.Now().UTC(),
	}, nil
}

// parseRows coerces rows in fixed-size batches fanned out over a bounded
// worker group. Results keep the input row order.
func parseRows(ctx context.Context, rows [][]string, idx columnIndex) ([]models.Record, int, error) {
	parsed := make([]*models.Record, len(rows))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for start := 0; start < len(rows); start += batchSize {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		end := min(start+batchSize, len(rows))
		wg.Go(func() error {
			for i := start; i < end; i++ {
				if rec, err := parseRecord(rows[i], idx); err == nil {
					parsed[i] = rec
				}
			}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, 0, err
	}

	records := make([]models.Record, 0, len(rows))
	skipped := 0
	for _, rec := range parsed {
		if rec == nil {
			skipped++
			continue
		}
		records = append(records, *rec)
	}
	return records, skipped, nil
}

func parseRecord(row []string, idx columnIndex) (*models.Record, error) {
	need := max(idx.query, idx.clicks, idx.impressions, idx.ctr, idx.position)
	if len(row) <= need {
		return nil, fmt.Errorf("row has %d fields, need %d", len(row), need+1)
	}

	query := strings.TrimSpace(row[idx.query])
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	clicks, err := parseCount(row[idx.clicks])
	if err != nil {
		return nil, fmt.Errorf("clicks: %w", err)
	}
	impressions, err := parseCount(row[idx.impressions])
	if err != nil {
		return nil, fmt.Errorf("impressions: %w", err)
	}
	ctr, err := parseCTR(row[idx.ctr])
	if err != nil {
		return nil, fmt.Errorf("ctr: %w", err)
	}
	position, err := strconv.ParseFloat(strings.TrimSpace(row[idx.position]), 64)
	if err != nil || position < 0 {
		return nil, fmt.Errorf("position: %q", row[idx.position])
	}

	rec := &models.Record{
		Query:       query,
		Clicks:      clicks,
		Impressions: impressions,
		CTR:         ctr,
		Position:    position,
	}

	if idx.page >= 0 && idx.page < len(row) {
		rec.Page = strings.TrimSpace(row[idx.page])
		rec.Domain = domainOf(rec.Page)
	}
	if idx.aiClicks >= 0 && idx.aiClicks < len(row) {
		// Optional column: a bad cell here loses only the AI metric.
		if ai, err := parseCount(row[idx.aiClicks]); err == nil {
			rec.AIOverviewClicks = ai
		}
	}

	return rec, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// parseCTR accepts the three shapes Search Console exports use: a fraction
// ("0.105"), a percent string ("10.5%"), or a bare percent ("10.5").
func parseCTR(s string) (float64, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if percent || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("ctr %v out of range", v)
	}
	return v, nil
}

func domainOf(page string) string {
	if page == "" {
		return ""
	}
	u, err := url.Parse(page)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func deriveLabel(records []models.Record, filename string) string {
	for _, rec := range records {
		if rec.Domain != "" {
			return rec.Domain
		}
	}
	base := filepath.Base(filename)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return "dataset"
}
