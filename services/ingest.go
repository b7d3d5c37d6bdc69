package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"propwatch/models"
	"propwatch/storage"
)

// IngestService accepts one scrape run's payload and appends it to the
// project's listings in a single transaction.
type IngestService struct {
	store *storage.PostgresStore
}

func NewIngestService(store *storage.PostgresStore) *IngestService {
	return &IngestService{store: store}
}

// ValidationError reports a malformed ingest payload. Validation failures
// never partially apply.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Reason)
}

// Ingest validates the payload and stores its listings. Listings arriving
// without an id get one assigned; created_at defaults to the payload
// timestamp so a replayed batch keeps its original ordering.
func (s *IngestService) Ingest(ctx context.Context, payload *models.IngestPayload) (int, error) {
	if err := validatePayload(payload); err != nil {
		return 0, err
	}

	createdAt := payload.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	for i := range payload.Properties {
		l := &payload.Properties[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.ProjectID = payload.ProjectID
		if l.CreatedAt.IsZero() {
			l.CreatedAt = createdAt
		}
		if l.AgencyPhone == "" {
			l.AgencyPhone = models.PhoneUnknown
		}
		if l.ImageStatus == "" {
			if l.ImageURL != "" {
				l.ImageStatus = models.ImageStatusPending
			} else {
				l.ImageStatus = models.ImageStatusNone
			}
		}
	}

	if err := s.store.InsertListingsBatch(ctx, payload.Properties); err != nil {
		return 0, fmt.Errorf("store batch: %w", err)
	}

	log.Printf("[ingest] project %s: stored %d listings (%d merged duplicates)",
		payload.ProjectID, len(payload.Properties), payload.Summary.Duplicates)
	return len(payload.Properties), nil
}

func validatePayload(p *models.IngestPayload) error {
	if p.ProjectID == uuid.Nil {
		return &ValidationError{Field: "project_id", Reason: "is required"}
	}
	if p.Count != len(p.Properties) {
		return &ValidationError{Field: "count", Reason: fmt.Sprintf("is %d but %d properties given", p.Count, len(p.Properties))}
	}
	for i := range p.Properties {
		if p.Properties[i].Portal == "" {
			return &ValidationError{Field: fmt.Sprintf("properties[%d].portal", i), Reason: "is required"}
		}
	}
	return nil
}
