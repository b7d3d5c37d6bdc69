package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"propwatch/models"
)

func TestExecuteUnknownJobType(t *testing.T) {
	s := &JobService{}
	job := &models.Job{ID: uuid.New(), Type: "reticulate_splines"}

	if _, err := s.execute(context.Background(), job); err == nil {
		t.Fatal("unknown job type must fail immediately")
	}
}

func TestValidateJobType(t *testing.T) {
	if err := models.ValidateJobType(models.JobTypeConsolidateDuplicates); err != nil {
		t.Fatalf("known type rejected: %v", err)
	}
	if err := models.ValidateJobType("definitely_not_a_job"); err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestIngestPayloadValidation(t *testing.T) {
	p := &models.IngestPayload{
		Count:      1,
		Properties: []models.Listing{{Portal: "Gallito"}},
	}
	if err := validatePayload(p); err == nil {
		t.Fatal("missing project id accepted")
	}

	p.ProjectID = uuid.New()
	p.Count = 2
	if err := validatePayload(p); err == nil {
		t.Fatal("count mismatch accepted")
	}

	p.Count = 1
	if err := validatePayload(p); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	p.Properties[0].Portal = ""
	if err := validatePayload(p); err == nil {
		t.Fatal("listing without portal accepted")
	}
}
