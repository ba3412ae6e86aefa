package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gsc-dashboard/internal/models"
	"gsc-dashboard/internal/services"
)

func seededStore(t *testing.T, datasets ...*models.Dataset) *services.Store {
	t.Helper()
	s := services.NewStore(time.Hour, slog.Default())
	t.Cleanup(s.Close)
	s.SetSeed(datasets)
	return s
}

func sampleDataset(label string) *models.Dataset {
	return &models.Dataset{
		Label:  label,
		Source: label + ".csv",
		Records: []models.Record{
			{Query: "buy shoes", Domain: label, Clicks: 10, Impressions: 100, CTR: 0.10, Position: 3.2, AIOverviewClicks: 2},
			{Query: "running tips", Domain: label, Clicks: 3, Impressions: 300, CTR: 0.01, Position: 8.5},
		},
		UploadedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return response
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t), slog.Default())

	body, contentType := multipartCSV(t, "export.csv", "query,clicks,impressions,ctr,position\nbuy shoes,10,100,0.10,3.2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeResponse(t, w)
	if success, _ := response["success"].(bool); !success {
		t.Fatal("expected success=true")
	}

	results, ok := response["data"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected one upload result, got %v", response["data"])
	}

	result := results[0].(map[string]any)
	if ok, _ := result["ok"].(bool); !ok {
		t.Fatalf("upload should succeed: %v", result)
	}
	dataset := result["dataset"].(map[string]any)
	if rows, _ := dataset["rows"].(float64); rows != 1 {
		t.Errorf("rows = %v, want 1", dataset["rows"])
	}
}

func TestAPIHandlers_HandleUpload_BadFileDoesNotBlockOthers(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t), slog.Default())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	good, _ := mw.CreateFormFile("files", "good.csv")
	good.Write([]byte("query,clicks,impressions,ctr,position\nbuy shoes,10,100,0.10,3.2\n"))
	bad, _ := mw.CreateFormFile("files", "bad.csv")
	bad.Write([]byte("query,clicks,ctr,position\nbuy shoes,10,0.10,3.2\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeResponse(t, w)
	results := response["data"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0].(map[string]any)
	if ok, _ := first["ok"].(bool); !ok {
		t.Errorf("good file should load: %v", first)
	}

	second := results[1].(map[string]any)
	if ok, _ := second["ok"].(bool); ok {
		t.Error("bad file should be rejected")
	}
	uploadErr := second["error"].(map[string]any)
	if code, _ := uploadErr["code"].(string); code != "MISSING_COLUMN" {
		t.Errorf("error code = %v, want MISSING_COLUMN", uploadErr["code"])
	}
}

func TestAPIHandlers_HandleUpload_NoFiles(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t), slog.Default())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "nothing here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIHandlers_SessionContinuity(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t), slog.Default())

	body, contentType := multipartCSV(t, "export.csv", "query,clicks,impressions,ctr,position\nbuy shoes,10,100,0.10,3.2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/datasets", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	handlers.HandleUpload(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("upload should set a session cookie")
	}

	// Same cookie sees the uploaded dataset; a cookie-less request does not.
	listReq := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	listReq.AddCookie(cookies[0])
	listW := httptest.NewRecorder()
	handlers.HandleDatasets(listW, listReq)

	response := decodeResponse(t, listW)
	if data := response["data"].([]any); len(data) != 1 {
		t.Errorf("session should hold 1 dataset, got %d", len(data))
	}

	freshW := httptest.NewRecorder()
	handlers.HandleDatasets(freshW, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	freshResponse := decodeResponse(t, freshW)
	if data := freshResponse["data"].([]any); len(data) != 0 {
		t.Errorf("fresh session should be empty, got %d datasets", len(data))
	}
}

func TestAPIHandlers_HandleKeywords(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/keywords?dataset=example.com", nil)
	w := httptest.NewRecorder()

	handlers.HandleKeywords(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeResponse(t, w)
	rows := response["data"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	top := rows[0].(map[string]any)
	if top["key"] != "buy shoes" {
		t.Errorf("top row = %v, want buy shoes first (most clicks)", top["key"])
	}
}

func TestAPIHandlers_HandleKeywords_Filter(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/keywords?dataset=example.com&filter=RUNNING", nil)
	w := httptest.NewRecorder()

	handlers.HandleKeywords(w, req)

	response := decodeResponse(t, w)
	rows := response["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("filtered rows = %d, want 1", len(rows))
	}
	if rows[0].(map[string]any)["key"] != "running tips" {
		t.Errorf("filter should match case-insensitively, got %v", rows[0])
	}
}

func TestAPIHandlers_HandleDomains(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/domains?dataset=example.com", nil)
	w := httptest.NewRecorder()

	handlers.HandleDomains(w, req)

	response := decodeResponse(t, w)
	rows := response["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 domain group", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["key"] != "example.com" || row["clicks"].(float64) != 13 {
		t.Errorf("domain aggregate = %v", row)
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/overview?dataset=example.com", nil)
	w := httptest.NewRecorder()

	handlers.HandleOverview(w, req)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]any)
	if data["clicks"].(float64) != 13 || data["impressions"].(float64) != 400 {
		t.Errorf("overview totals = %v", data)
	}
}

func TestAPIHandlers_HandleOverview_UnknownDataset(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/overview?dataset=nope", nil)
	w := httptest.NewRecorder()

	handlers.HandleOverview(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	response := decodeResponse(t, w)
	if success, _ := response["success"].(bool); success {
		t.Error("expected success=false")
	}
}

func TestAPIHandlers_HandleCompare(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t,
		sampleDataset("siteA"),
		sampleDataset("siteB"),
	), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/compare?a=siteA&b=siteB&by=query", nil)
	w := httptest.NewRecorder()

	handlers.HandleCompare(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeResponse(t, w)
	rows := response["data"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	// Identical datasets: every delta must be exactly zero.
	for _, r := range rows {
		row := r.(map[string]any)
		for _, field := range []string{"delta_clicks", "delta_impressions", "delta_ctr", "delta_position"} {
			if row[field].(float64) != 0 {
				t.Errorf("key %v %s = %v, want 0", row["key"], field, row[field])
			}
		}
	}
}

func TestAPIHandlers_HandleDeleteDataset(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodDelete, "/api/datasets/example.com", nil)
	req.SetPathValue("label", "example.com")
	w := httptest.NewRecorder()

	handlers.HandleDeleteDataset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	again := httptest.NewRequest(http.MethodDelete, "/api/datasets/example.com", nil)
	again.SetPathValue("label", "example.com")
	// Reuse the session so the first delete is visible.
	for _, c := range w.Result().Cookies() {
		again.AddCookie(c)
	}
	againW := httptest.NewRecorder()
	handlers.HandleDeleteDataset(againW, again)

	if againW.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", againW.Code, http.StatusNotFound)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeResponse(t, w)
	data := response["data"].(map[string]any)
	if status, _ := data["status"].(string); status != "healthy" {
		t.Errorf("status = %q, want healthy", status)
	}
	if ts, _ := data["timestamp"].(string); ts == "" {
		t.Error("expected non-empty timestamp")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("invalid timestamp format: %v", err)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(seededStore(t, sampleDataset("example.com")), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()

	handlers.HandleStats(w, req)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]any)
	if data["datasets"].(float64) != 1 {
		t.Errorf("stats datasets = %v, want 1", data["datasets"])
	}
	if _, ok := data["active_sessions"]; !ok {
		t.Error("stats should include active_sessions")
	}
}
