// Package templates holds the dashboard page shell. The page is a single
// templ component; everything inside the tab panels is patched in over
// SSE by the handlers package.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard renders the single-page app: four tabs mirroring the analysis
// views (upload, keywords, domains, comparison), with Datastar driving
// the partial updates and Chart.js drawing from patched signals.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardPage)
		return err
	})
}

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>AI Overview Click Analytics</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<style>
:root { --accent: #1a73e8; --bg: #f6f8fa; --border: #d9dee3; }
* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, sans-serif; background: var(--bg); color: #1f2328; }
header { background: #fff; border-bottom: 1px solid var(--border); padding: 1rem 2rem; }
header h1 { margin: 0; font-size: 1.3rem; }
header p { margin: 0.25rem 0 0; color: #57606a; font-size: 0.9rem; }
main { max-width: 1100px; margin: 1.5rem auto; padding: 0 1rem; }
nav.tabs { display: flex; gap: 0.5rem; margin-bottom: 1rem; }
nav.tabs button { border: 1px solid var(--border); background: #fff; padding: 0.5rem 1rem; border-radius: 6px; cursor: pointer; }
nav.tabs button.active { background: var(--accent); color: #fff; border-color: var(--accent); }
section.panel { background: #fff; border: 1px solid var(--border); border-radius: 8px; padding: 1.25rem; margin-bottom: 1.5rem; }
.metric-cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(140px, 1fr)); gap: 0.75rem; }
.metric-card { border: 1px solid var(--border); border-radius: 6px; padding: 0.75rem; display: flex; flex-direction: column; }
.metric-label { font-size: 0.75rem; color: #57606a; text-transform: uppercase; }
.metric-value { font-size: 1.25rem; font-weight: 600; }
table.modern-table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
table.modern-table th, table.modern-table td { text-align: left; padding: 0.5rem 0.6rem; border-bottom: 1px solid var(--border); }
table.modern-table th { background: var(--bg); }
.absent { color: #9a6700; font-style: italic; }
.panel-error { color: #cf222e; }
.skipped-note { color: #9a6700; font-size: 0.85rem; }
input[type="text"], select { padding: 0.4rem 0.6rem; border: 1px solid var(--border); border-radius: 6px; }
.controls { display: flex; gap: 0.5rem; flex-wrap: wrap; margin-bottom: 1rem; align-items: center; }
button.action { background: var(--accent); color: #fff; border: none; border-radius: 6px; padding: 0.45rem 0.9rem; cursor: pointer; }
</style>
</head>
<body data-signals="{filter: '', dataset: '', compareA: '', compareB: '', compareBy: 'query', keywordsData: [], domainsData: [], comparisonData: []}">
<header>
<h1>AI Overview Click Analytics Dashboard</h1>
<p>Upload Search Console CSV exports, analyze keywords, and compare domains.</p>
</header>
<main data-on-load="@get('/sse/refresh-all')">

<nav class="tabs">
<button class="active" onclick="showTab(this, 'tab-upload')">Upload &amp; Analyze</button>
<button onclick="showTab(this, 'tab-keywords')">Keyword Analysis</button>
<button onclick="showTab(this, 'tab-domains')">Domain/URL Analysis</button>
<button onclick="showTab(this, 'tab-comparison')">Comparison Analytics</button>
</nav>

<section class="panel" id="tab-upload">
<h2>Upload Search Console Data</h2>
<p>Files need the columns query, clicks, impressions, ctr and position; page URL and ai_overview_clicks are optional. Malformed rows are skipped and counted.</p>
<form id="upload-form">
<input type="file" name="files" accept=".csv" multiple required>
<button class="action" type="submit">Upload</button>
</form>
<div id="upload-status"></div>
<h3>Data Overview</h3>
<div id="overview-content"><p>Upload a file to see its summary.</p></div>
</section>

<section class="panel" id="tab-keywords" hidden>
<h2>Keyword Analysis</h2>
<div class="controls">
<input type="text" placeholder="Filter keywords..." data-bind-filter>
<button class="action" data-on-click="@get('/sse/keywords?filter=' + $filter + '&dataset=' + $dataset)">Apply</button>
</div>
<canvas id="keywords-chart" height="110" data-effect="drawBarChart('keywords-chart', $keywordsData, 'clicks')"></canvas>
<div id="keywords-content" data-on-load="@get('/sse/keywords')"></div>
</section>

<section class="panel" id="tab-domains" hidden>
<h2>Domain &amp; Page Analysis</h2>
<div class="controls">
<input type="text" placeholder="Filter domains..." data-bind-filter>
<button class="action" data-on-click="@get('/sse/domains?filter=' + $filter + '&dataset=' + $dataset)">Apply</button>
</div>
<canvas id="domains-chart" height="110" data-effect="drawBarChart('domains-chart', $domainsData, 'clicks')"></canvas>
<div id="domains-content" data-on-load="@get('/sse/domains')"></div>
</section>

<section class="panel" id="tab-comparison" hidden>
<h2>Compare Domains</h2>
<div class="controls">
<input type="text" placeholder="Dataset A label" data-bind-compareA>
<input type="text" placeholder="Dataset B label" data-bind-compareB>
<select data-bind-compareBy><option value="query">By query</option><option value="domain">By domain</option></select>
<button class="action" data-on-click="@get('/sse/compare?a=' + $compareA + '&b=' + $compareB + '&by=' + $compareBy + '&filter=' + $filter)">Compare</button>
</div>
<div id="comparison-content"><p>Upload two files, then pick their labels to compare.</p></div>
</section>

</main>
<script>
function showTab(btn, id) {
	document.querySelectorAll('section.panel').forEach(s => s.hidden = s.id !== id);
	document.querySelectorAll('nav.tabs button').forEach(b => b.classList.toggle('active', b === btn));
}

const charts = {};
function drawBarChart(canvasId, rows, metric) {
	if (!rows || !rows.length) return;
	const el = document.getElementById(canvasId);
	if (!el) return;
	if (charts[canvasId]) charts[canvasId].destroy();
	charts[canvasId] = new Chart(el, {
		type: 'bar',
		data: {
			labels: rows.map(r => r.key),
			datasets: [{ label: metric, data: rows.map(r => r[metric]), backgroundColor: '#1a73e8' }]
		},
		options: { indexAxis: 'y', plugins: { legend: { display: false } } }
	});
}

document.getElementById('upload-form').addEventListener('submit', async (e) => {
	e.preventDefault();
	const status = document.getElementById('upload-status');
	const body = new FormData(e.target);
	try {
		const res = await fetch('/api/datasets', { method: 'POST', body });
		const payload = await res.json();
		const items = payload.data || [];
		status.innerHTML = items.map(it => it.ok
			? '<p>Loaded <strong>' + it.dataset.label + '</strong> (' + it.dataset.rows + ' rows, ' + it.dataset.skipped_rows + ' skipped)</p>'
			: '<p class="panel-error">' + it.source + ': ' + it.error.message + '</p>').join('');
	} catch (err) {
		status.innerHTML = '<p class="panel-error">Upload failed: ' + err + '</p>';
	}
});
</script>
</body>
</html>
`
