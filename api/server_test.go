package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"propwatch/services"
)

func TestInvalidProjectID(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil)
	router := s.Router()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/projects/not-a-uuid/agencies"},
		{http.MethodGet, "/api/projects/not-a-uuid/shared-properties"},
		{http.MethodPost, "/api/projects/not-a-uuid/consolidate"},
		{http.MethodPost, "/api/projects/not-a-uuid/agencies/consolidate"},
	}

	for _, tc := range paths {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status %d, want 400", tc.method, tc.path, rec.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Errorf("%s %s: non-JSON error body", tc.method, tc.path)
		}
	}
}

func TestWriteServiceErrorPartialConsolidation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, &services.ConsolidationError{
		Deleted: 4,
		Group:   2,
		Err:     errors.New("delete losers: connection reset"),
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("non-JSON error body: %v", err)
	}
	if body["deleted_count"] != float64(4) {
		t.Errorf("deleted_count = %v, want 4", body["deleted_count"])
	}
	if body["error"] == "" || body["error"] == "internal error" {
		t.Errorf("error = %v, partial failure reported as generic", body["error"])
	}
}

func TestScrapeResultsRejectsBadJSON(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/scrape-results", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestConsolidateAgenciesValidation(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil)
	router := s.Router()

	cases := []string{
		`{"loser": "", "keeper": "A"}`,
		`{"loser": "A", "keeper": ""}`,
		`{"loser": "A", "keeper": "A"}`,
	}

	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost,
			"/api/projects/6ba7b810-9dad-11d1-80b4-00c04fd430c8/agencies/consolidate",
			strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
	}
}

func TestInvalidJobID(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}
