package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"gsc-dashboard/internal/models"
	"gsc-dashboard/internal/services"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	maxTableRows = 50
	maxChartRows = 10
)

var tableFuncs = template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
	"pos": func(f float64) string { return fmt.Sprintf("%.1f", f) },
}

var keywordTableTemplate = template.Must(template.New("keywordTable").Funcs(tableFuncs).Parse(`
<div id="keywords-content">
<table class="modern-table">
<thead><tr><th>Query</th><th>Clicks</th><th>Impressions</th><th>CTR</th><th>Position</th><th>AI Overview Clicks</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Key}}</td>
<td><strong>{{.Clicks}}</strong></td>
<td>{{.Impressions}}</td>
<td>{{pct .CTR}}</td>
<td>{{pos .Position}}</td>
<td>{{.AIOverviewClicks}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var domainTableTemplate = template.Must(template.New("domainTable").Funcs(tableFuncs).Parse(`
<div id="domains-content">
<table class="modern-table">
<thead><tr><th>Domain</th><th>Clicks</th><th>Impressions</th><th>CTR</th><th>Position</th><th>AI Overview Clicks</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Key}}</td>
<td><strong>{{.Clicks}}</strong></td>
<td>{{.Impressions}}</td>
<td>{{pct .CTR}}</td>
<td>{{pos .Position}}</td>
<td>{{.AIOverviewClicks}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var comparisonTableTemplate = template.Must(template.New("comparisonTable").Funcs(tableFuncs).Parse(`
<div id="comparison-content">
<table class="modern-table">
<thead><tr><th>Key</th><th>Clicks A</th><th>Clicks B</th><th>Δ Clicks</th><th>CTR A</th><th>CTR B</th><th>Position A</th><th>Position B</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Key}}</td>
<td>{{if .A.Present}}{{.A.Clicks}}{{else}}<span class="absent">absent</span>{{end}}</td>
<td>{{if .B.Present}}{{.B.Clicks}}{{else}}<span class="absent">absent</span>{{end}}</td>
<td>{{if and .A.Present .B.Present}}{{.DeltaClicks}}{{else}}&mdash;{{end}}</td>
<td>{{if .A.Present}}{{pct .A.CTR}}{{else}}&mdash;{{end}}</td>
<td>{{if .B.Present}}{{pct .B.CTR}}{{else}}&mdash;{{end}}</td>
<td>{{if .A.Present}}{{pos .A.Position}}{{else}}&mdash;{{end}}</td>
<td>{{if .B.Present}}{{pos .B.Position}}{{else}}&mdash;{{end}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var overviewTemplate = template.Must(template.New("overview").Funcs(tableFuncs).Parse(`
<div id="overview-content">
<div class="metric-cards">
<div class="metric-card"><span class="metric-label">Dataset</span><span class="metric-value">{{.Label}}</span></div>
<div class="metric-card"><span class="metric-label">Queries</span><span class="metric-value">{{.Queries}}</span></div>
<div class="metric-card"><span class="metric-label">Clicks</span><span class="metric-value">{{.Clicks}}</span></div>
<div class="metric-card"><span class="metric-label">Impressions</span><span class="metric-value">{{.Impressions}}</span></div>
<div class="metric-card"><span class="metric-label">CTR</span><span class="metric-value">{{pct .CTR}}</span></div>
<div class="metric-card"><span class="metric-label">Avg Position</span><span class="metric-value">{{pos .Position}}</span></div>
<div class="metric-card"><span class="metric-label">AI Overview Clicks</span><span class="metric-value">{{.AIOverviewClicks}}</span></div>
</div>
{{if .SkippedRows}}<p class="skipped-note">{{.SkippedRows}} malformed rows were skipped during import.</p>{{end}}
</div>`))

type SSEHandlers struct {
	sessions *services.Store
	logger   *slog.Logger
}

func NewSSEHandlers(sessions *services.Store, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		sessions: sessions,
		logger:   logger,
	}
}

func (h *SSEHandlers) session(w http.ResponseWriter, r *http.Request) *services.Analytics {
	var current string
	if c, err := r.Cookie(sessionCookie); err == nil {
		current = c.Value
	}

	id, analytics := h.sessions.GetOrCreate(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return analytics
}

func renderFragment(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, data)
	return buf.String(), err
}

type tableData struct {
	Rows []models.AggregateRow
}

type comparisonData struct {
	Rows []models.ComparisonRow
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	analytics := h.session(w, r)

	stats, err := analytics.Overview(r.URL.Query().Get("dataset"))
	if err != nil {
		h.patchError(sse, "overview-content", err)
		return
	}

	html, err := renderFragment(overviewTemplate, stats)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	sse.PatchElements(html)

	flush(w)
}

func (h *SSEHandlers) HandleKeywords(w http.ResponseWriter, r *http.Request) {
	h.handleAggregate(w, r, services.GroupByQuery, "keywords-content", "keywordsData", keywordTableTemplate)
}

func (h *SSEHandlers) HandleDomains(w http.ResponseWriter, r *http.Request) {
	h.handleAggregate(w, r, services.GroupByDomain, "domains-content", "domainsData", domainTableTemplate)
}

func (h *SSEHandlers) handleAggregate(w http.ResponseWriter, r *http.Request, groupBy, target, signal string, tmpl *template.Template) {
	sse := datastar.NewSSE(w, r)
	analytics := h.session(w, r)
	q := r.URL.Query()

	rows, err := analytics.Aggregate(q.Get("dataset"), groupBy)
	if err != nil {
		h.patchError(sse, target, err)
		return
	}
	rows = services.FilterRows(rows, q.Get("filter"))

	html, err := renderFragment(tmpl, tableData{Rows: services.LimitRows(rows, maxTableRows)})
	if err != nil {
		h.logger.Error("render table", "target", target, "error", err)
		return
	}
	sse.PatchElements(html)

	// Chart payload rides along as a signal; the page draws it client-side.
	jsonData, err := json.Marshal(map[string]any{
		signal: services.LimitRows(rows, maxChartRows),
	})
	if err != nil {
		h.logger.Error("marshal chart data", "signal", signal, "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	flush(w)
}

func (h *SSEHandlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	analytics := h.session(w, r)
	q := r.URL.Query()

	rows, err := analytics.Compare(q.Get("a"), q.Get("b"), q.Get("by"))
	if err != nil {
		h.patchError(sse, "comparison-content", err)
		return
	}
	rows = services.FilterComparison(rows, q.Get("filter"))

	html, err := renderFragment(comparisonTableTemplate, comparisonData{Rows: services.LimitRows(rows, maxTableRows)})
	if err != nil {
		h.logger.Error("render comparison table", "error", err)
		return
	}
	sse.PatchElements(html)

	jsonData, err := json.Marshal(map[string]any{
		"comparisonData": services.LimitRows(rows, maxChartRows),
	})
	if err != nil {
		h.logger.Error("marshal comparison data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	analytics := h.session(w, r)
	q := r.URL.Query()
	label := q.Get("dataset")

	if stats, err := analytics.Overview(label); err == nil {
		if html, err := renderFragment(overviewTemplate, stats); err == nil {
			sse.PatchElements(html)
		}
	}

	signals := make(map[string]any)

	if rows, err := analytics.Aggregate(label, services.GroupByQuery); err == nil {
		if html, err := renderFragment(keywordTableTemplate, tableData{Rows: services.LimitRows(rows, maxTableRows)}); err == nil {
			sse.PatchElements(html)
		}
		signals["keywordsData"] = services.LimitRows(rows, maxChartRows)
	}

	if rows, err := analytics.Aggregate(label, services.GroupByDomain); err == nil {
		if html, err := renderFragment(domainTableTemplate, tableData{Rows: services.LimitRows(rows, maxTableRows)}); err == nil {
			sse.PatchElements(html)
		}
		signals["domainsData"] = services.LimitRows(rows, maxChartRows)
	}

	if len(signals) > 0 {
		if jsonData, err := json.Marshal(signals); err == nil {
			sse.PatchSignals(jsonData)
		} else {
			h.logger.Error("marshal refresh signals", "error", err)
		}
	}

	flush(w)
}

// patchError surfaces a load or validation failure inside the affected
// panel instead of breaking the stream; a bad upload never kills the view.
func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, target string, err error) {
	h.logger.Warn("sse view error", "target", target, "error", err)

	msg := "could not load data"
	if appErr := asAppError(err); appErr != nil {
		msg = appErr.Message
	}

	var buf strings.Builder
	buf.WriteString(`<div id="`)
	buf.WriteString(target)
	buf.WriteString(`"><p class="panel-error">`)
	template.HTMLEscape(&buf, []byte(msg))
	buf.WriteString(`</p></div>`)
	sse.PatchElements(buf.String())
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
