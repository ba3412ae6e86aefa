package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gsc-dashboard/internal/server"
	"gsc-dashboard/internal/services"
)

func testServer(t *testing.T) *server.Server {
	t.Helper()

	sessions := services.NewStore(time.Hour, slog.Default())
	t.Cleanup(sessions.Close)

	sample := filepath.Join(t.TempDir(), "sample.csv")
	csv := "query,page,clicks,impressions,ctr,position\n" +
		"buy shoes,https://www.example.com/shoes,10,100,0.10,3.2\n" +
		"running tips,https://www.example.com/blog,3,300,0.01,8.5\n"
	if err := os.WriteFile(sample, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	sessions.SetSeed(loadSampleDatasets(t.Context(), []string{sample}, slog.Default()))

	return server.NewServer(sessions, slog.Default(), &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})
}

func TestRoutes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"dashboard", http.MethodGet, "/", http.StatusOK},
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"admin stats", http.MethodGet, "/admin/stats", http.StatusOK},
		{"list datasets", http.MethodGet, "/api/datasets", http.StatusOK},
		{"overview", http.MethodGet, "/api/overview?dataset=www.example.com", http.StatusOK},
		{"keywords", http.MethodGet, "/api/keywords?dataset=www.example.com", http.StatusOK},
		{"domains", http.MethodGet, "/api/domains?dataset=www.example.com", http.StatusOK},
		{"sse overview", http.MethodGet, "/sse/overview?dataset=www.example.com", http.StatusOK},
		{"sse refresh", http.MethodGet, "/sse/refresh-all?dataset=www.example.com", http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound},
		{"dashboard wrong method", http.MethodPost, "/", http.StatusMethodNotAllowed},
		{"upload wrong method", http.MethodPut, "/api/datasets", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.target, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestDashboardPage(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		"datastar",
		`id="overview-content"`,
		`id="keywords-content"`,
		`id="domains-content"`,
		`id="comparison-content"`,
		"/sse/refresh-all",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard page missing %q", want)
		}
	}
}

func TestSeededOverviewNumbers(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/overview?dataset=www.example.com", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			Clicks      int     `json:"clicks"`
			Impressions int     `json:"impressions"`
			CTR         float64 `json:"ctr"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}

	if !response.Success {
		t.Fatal("expected success=true")
	}
	if response.Data.Clicks != 13 || response.Data.Impressions != 400 {
		t.Errorf("totals = %+v", response.Data)
	}
	if response.Data.CTR < 0.0324 || response.Data.CTR > 0.0326 {
		t.Errorf("ctr = %v, want 13/400", response.Data.CTR)
	}
}

func TestLoadSampleDatasets_MissingAndBadFiles(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("query,clicks\nx,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.csv")
	if err := os.WriteFile(good, []byte("query,clicks,impressions,ctr,position\nq,1,10,0.1,2.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	datasets := loadSampleDatasets(t.Context(), []string{
		filepath.Join(dir, "does-not-exist.csv"),
		bad,
		good,
	}, slog.Default())

	if len(datasets) != 1 {
		t.Fatalf("datasets = %d, want only the parseable file", len(datasets))
	}
	if datasets[0].Label != "good" {
		t.Errorf("label = %q, want %q", datasets[0].Label, "good")
	}
}
