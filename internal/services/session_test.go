package services

import (
	"log/slog"
	"testing"
	"time"

	"gsc-dashboard/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s := NewStore(ttl, slog.Default())
	t.Cleanup(s.Close)
	return s
}

func TestStore_GetOrCreate(t *testing.T) {
	s := newTestStore(t, time.Hour)

	id, analytics := s.GetOrCreate("")
	if id == "" || analytics == nil {
		t.Fatal("expected a new session")
	}

	again, same := s.GetOrCreate(id)
	if again != id {
		t.Errorf("existing id should be reused, got %q want %q", again, id)
	}
	if same != analytics {
		t.Error("existing session should return the same Analytics")
	}

	other, _ := s.GetOrCreate("not-a-session")
	if other == id {
		t.Error("unknown id should mint a fresh session")
	}

	if s.Len() != 2 {
		t.Errorf("sessions = %d, want 2", s.Len())
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, a := s.GetOrCreate("")
	_, b := s.GetOrCreate("")

	ds := makeDataset("example.com", []models.Record{{Query: "q", Clicks: 1, Impressions: 1}})
	if err := a.AddDataset(ds); err != nil {
		t.Fatal(err)
	}

	if len(b.Datasets()) != 0 {
		t.Error("an upload in one session must not appear in another")
	}
}

func TestStore_SeedDatasets(t *testing.T) {
	s := newTestStore(t, time.Hour)
	s.SetSeed([]*models.Dataset{
		makeDataset("demo.example.com", []models.Record{{Query: "q", Clicks: 1, Impressions: 10}}),
	})

	_, analytics := s.GetOrCreate("")
	summaries := analytics.Datasets()
	if len(summaries) != 1 || summaries[0].Label != "demo.example.com" {
		t.Errorf("new sessions should start with seeded datasets, got %+v", summaries)
	}

	// Replacing the seeded label only affects this session.
	replacement := makeDataset("demo.example.com", []models.Record{
		{Query: "q", Clicks: 2, Impressions: 20},
		{Query: "r", Clicks: 3, Impressions: 30},
	})
	if err := analytics.AddDataset(replacement); err != nil {
		t.Fatal(err)
	}

	_, fresh := s.GetOrCreate("")
	if fresh.Datasets()[0].Rows != 1 {
		t.Error("seed datasets must not be mutated by a session's replacement")
	}
}

func TestStore_EvictIdle(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)

	id, _ := s.GetOrCreate("")
	if s.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", s.Len())
	}

	s.evictIdle(time.Now().Add(time.Second))

	if s.Len() != 0 {
		t.Errorf("idle session should be evicted, have %d", s.Len())
	}

	again, _ := s.GetOrCreate(id)
	if again == id {
		t.Error("evicted id must not be resurrected")
	}
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	s := NewStore(time.Hour, slog.Default())
	s.Close()
	s.Close()
}
