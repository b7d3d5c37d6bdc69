package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"propwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL,
		portal TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		price BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
		currency TEXT NOT NULL DEFAULT 'USD',
		neighborhood TEXT NOT NULL DEFAULT '',
		area_m2 INTEGER NOT NULL DEFAULT 0,
		rooms INTEGER NOT NULL DEFAULT 0,
		agency_name TEXT NOT NULL DEFAULT '',
		agency_phone TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		image_key TEXT,
		image_status TEXT NOT NULL DEFAULT 'none',
		image_attempts INTEGER NOT NULL DEFAULT 0,
		is_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_listings_project ON listings (project_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_listings_agency ON listings (project_id, agency_name);

	CREATE TABLE IF NOT EXISTS shared_property_matches (
		id BIGSERIAL PRIMARY KEY,
		project_id UUID NOT NULL,
		listing_a UUID NOT NULL,
		listing_b UUID NOT NULL,
		agency_a TEXT NOT NULL,
		agency_b TEXT NOT NULL,
		neighborhood TEXT NOT NULL,
		price BIGINT NOT NULL,
		match_reasons JSONB,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (listing_a, listing_b)
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		payload JSONB,
		project_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		result JSONB,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (status, created_at);`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Listings
// =============================================================================

const listingColumns = `id, project_id, portal, source_id, title, price, currency,
		neighborhood, area_m2, rooms, agency_name, agency_phone, link,
		image_url, image_key, image_status, image_attempts, is_duplicate, created_at`

func scanListing(row pgx.Row, l *models.Listing) error {
	return row.Scan(
		&l.ID, &l.ProjectID, &l.Portal, &l.SourceID, &l.Title, &l.Price, &l.Currency,
		&l.Neighborhood, &l.AreaM2, &l.Rooms, &l.AgencyName, &l.AgencyPhone, &l.Link,
		&l.ImageURL, &l.ImageKey, &l.ImageStatus, &l.ImageAttempts, &l.IsDuplicate, &l.CreatedAt,
	)
}

// InsertListingsBatch writes one scrape run's listings in a single
// transaction, so partial batches never interleave into the table.
func (s *PostgresStore) InsertListingsBatch(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	for i := range listings {
		l := &listings[i]
		if _, err := tx.Exec(ctx, query,
			l.ID, l.ProjectID, l.Portal, l.SourceID, l.Title, l.Price, l.Currency,
			l.Neighborhood, l.AreaM2, l.Rooms, l.AgencyName, l.AgencyPhone, l.Link,
			l.ImageURL, l.ImageKey, l.ImageStatus, l.ImageAttempts, l.IsDuplicate, l.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert listing %s: %w", l.SourceID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetListingsByProject(ctx context.Context, projectID uuid.UUID) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE project_id = $1
		ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// UpdateListingMerge persists the fields the consolidator backfills onto a
// keeper row.
func (s *PostgresStore) UpdateListingMerge(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings SET
			agency_phone = $2, image_url = $3, area_m2 = $4,
			portal = $5, link = $6, is_duplicate = $7
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.AgencyPhone, l.ImageURL, l.AreaM2, l.Portal, l.Link, l.IsDuplicate,
	)
	return err
}

func (s *PostgresStore) DeleteListings(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =============================================================================
// Agencies (derived from listings, only the rename is a write)
// =============================================================================

func (s *PostgresStore) CountListingsByAgency(ctx context.Context, projectID uuid.UUID, agencyName string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE project_id = $1 AND agency_name = $2`,
		projectID, agencyName,
	).Scan(&count)
	return count, err
}

// RenameAgency points every listing of the losing agency at the keeper.
// A single UPDATE, so it is atomic; re-running it is a no-op.
func (s *PostgresStore) RenameAgency(ctx context.Context, projectID uuid.UUID, loser, keeper string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET agency_name = $3 WHERE project_id = $1 AND agency_name = $2`,
		projectID, loser, keeper,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// =============================================================================
// Shared property matches
// =============================================================================

func (s *PostgresStore) InsertSharedMatch(ctx context.Context, m *models.SharedPropertyMatch) error {
	query := `
		INSERT INTO shared_property_matches (
			project_id, listing_a, listing_b, agency_a, agency_b,
			neighborhood, price, match_reasons, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (listing_a, listing_b) DO NOTHING
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		m.ProjectID, m.ListingA, m.ListingB, m.AgencyA, m.AgencyB,
		m.Neighborhood, m.Price, m.MatchReasons, m.Status, m.CreatedAt,
	).Scan(&m.ID)

	if err == pgx.ErrNoRows {
		return nil // already recorded
	}
	return err
}

func (s *PostgresStore) GetSharedMatches(ctx context.Context, projectID uuid.UUID) ([]models.SharedPropertyMatch, error) {
	query := `
		SELECT id, project_id, listing_a, listing_b, agency_a, agency_b,
			neighborhood, price, match_reasons, status, created_at
		FROM shared_property_matches
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.SharedPropertyMatch
	for rows.Next() {
		var m models.SharedPropertyMatch
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.ListingA, &m.ListingB, &m.AgencyA, &m.AgencyB,
			&m.Neighborhood, &m.Price, &m.MatchReasons, &m.Status, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// =============================================================================
// Jobs
// =============================================================================

const jobColumns = `id, type, payload, project_id, status, attempts, max_attempts,
		result, error_message, created_at, started_at, finished_at`

func scanJob(row pgx.Row, j *models.Job) error {
	return row.Scan(
		&j.ID, &j.Type, &j.Payload, &j.ProjectID, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.Result, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
}

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.Job) error {
	query := `
		INSERT INTO jobs (id, type, payload, project_id, status, attempts, max_attempts, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		j.ID, j.Type, j.Payload, j.ProjectID, j.Status, j.Attempts, j.MaxAttempts, j.ErrorMessage, j.CreatedAt,
	)
	return err
}

// claimJobSQL is the compare-and-swap claim: the inner SELECT picks the
// oldest pending job with attempts left, the outer status condition plus
// SKIP LOCKED guarantees two workers can never both move it to running.
const claimJobSQL = `
	UPDATE jobs SET status = 'running', attempts = attempts + 1, started_at = NOW()
	WHERE id = (
		SELECT id FROM jobs
		WHERE status = 'pending' AND attempts < max_attempts
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	) AND status = 'pending'
	RETURNING `

// ClaimNextJob atomically claims the oldest pending job that still has
// attempts left. Returns (nil, nil) when the queue is empty.
func (s *PostgresStore) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	query := claimJobSQL + jobColumns

	var j models.Job
	err := scanJob(s.pool.QueryRow(ctx, query), &j)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, result []byte) error {
	query := `
		UPDATE jobs SET status = 'completed', result = $2, finished_at = NOW()
		WHERE id = $1 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, query, id, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", id)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE jobs SET status = 'failed', error_message = $2, finished_at = NOW()
		WHERE id = $1 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, query, id, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var j models.Job
	err := scanJob(s.pool.QueryRow(ctx, query, id), &j)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// =============================================================================
// Image archive queries
// =============================================================================

func (s *PostgresStore) GetPendingImageListings(ctx context.Context, limit int) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE image_status = 'pending' AND image_attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) UpdateListingImage(ctx context.Context, id uuid.UUID, status string, imageKey *string, attempts int) error {
	query := `
		UPDATE listings SET
			image_status = $2, image_key = COALESCE($3, image_key), image_attempts = $4
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, status, imageKey, attempts)
	return err
}
