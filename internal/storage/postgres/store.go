// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadforge/leadforge/internal/lead"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements the persistence collaborator contracts on Postgres.
type Store struct {
	pool dbPool
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateLead inserts a lead row.
func (s *Store) CreateLead(ctx context.Context, l lead.Lead) error {
	const query = `
INSERT INTO leads (id, campaign_id, company_name, domain, url, industry, status, score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := s.pool.Exec(ctx, query,
		l.ID, l.CampaignID, l.CompanyName, l.Domain, l.URL, l.Industry, string(l.Status), l.Score, l.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetLead fetches a lead by ID.
func (s *Store) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	const query = `
SELECT id, campaign_id, company_name, domain, url, industry, status, score, created_at
FROM leads WHERE id = $1`
	var l lead.Lead
	var status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.CampaignID, &l.CompanyName, &l.Domain, &l.URL, &l.Industry, &status, &l.Score, &l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Lead{}, fmt.Errorf("lead %s: %w", id, lead.ErrNotFound)
	}
	if err != nil {
		return lead.Lead{}, fmt.Errorf("select lead: %w", err)
	}
	l.Status = lead.LeadStatus(status)
	return l, nil
}

// UpdateLead updates the mutable lead fields.
func (s *Store) UpdateLead(ctx context.Context, l lead.Lead) error {
	const query = `
UPDATE leads SET company_name = $2, status = $3, score = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, l.ID, l.CompanyName, string(l.Status), l.Score)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %s: %w", l.ID, lead.ErrNotFound)
	}
	return nil
}

// ListLeadsByCampaign returns the campaign's leads filtered by status.
func (s *Store) ListLeadsByCampaign(ctx context.Context, campaignID string, statuses ...lead.LeadStatus) ([]lead.Lead, error) {
	query := `
SELECT id, campaign_id, company_name, domain, url, industry, status, score, created_at
FROM leads WHERE campaign_id = $1`
	args := []any{campaignID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		strs := make([]string, len(statuses))
		for i, st := range statuses {
			strs[i] = string(st)
		}
		args = append(args, strs)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select campaign leads: %w", err)
	}
	defer rows.Close()

	var out []lead.Lead
	for rows.Next() {
		var l lead.Lead
		var status string
		if err := rows.Scan(
			&l.ID, &l.CampaignID, &l.CompanyName, &l.Domain, &l.URL, &l.Industry, &status, &l.Score, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead row: %w", err)
		}
		l.Status = lead.LeadStatus(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead rows: %w", err)
	}
	return out, nil
}

// ReplaceEnrichment deletes any prior enrichment for the lead and inserts the
// new row inside one transaction.
func (s *Store) ReplaceEnrichment(ctx context.Context, e lead.Enrichment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enrichment tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM lead_enrichments WHERE lead_id = $1`, e.LeadID); err != nil {
		return fmt.Errorf("delete stale enrichment: %w", err)
	}

	const insert = `
INSERT INTO lead_enrichments (
	lead_id, content, title, description, keywords, language,
	company_name, services, technologies, certifications,
	email, phone, address, scraped_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	if _, err := tx.Exec(ctx, insert,
		e.LeadID, e.Content, e.Title, e.Description, e.Keywords, e.Language,
		e.CompanyName, e.Services, e.Technologies, e.Certifications,
		e.Email, e.Phone, e.Address, e.ScrapedAt,
	); err != nil {
		return fmt.Errorf("insert enrichment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enrichment tx: %w", err)
	}
	return nil
}

// GetEnrichment fetches the enrichment row for a lead.
func (s *Store) GetEnrichment(ctx context.Context, leadID string) (lead.Enrichment, error) {
	const query = `
SELECT lead_id, content, title, description, keywords, language,
	company_name, services, technologies, certifications,
	email, phone, address, scraped_at
FROM lead_enrichments WHERE lead_id = $1`
	var e lead.Enrichment
	err := s.pool.QueryRow(ctx, query, leadID).Scan(
		&e.LeadID, &e.Content, &e.Title, &e.Description, &e.Keywords, &e.Language,
		&e.CompanyName, &e.Services, &e.Technologies, &e.Certifications,
		&e.Email, &e.Phone, &e.Address, &e.ScrapedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Enrichment{}, fmt.Errorf("enrichment for lead %s: %w", leadID, lead.ErrNotFound)
	}
	if err != nil {
		return lead.Enrichment{}, fmt.Errorf("select enrichment: %w", err)
	}
	return e, nil
}

// DeleteEnrichment removes the enrichment row for a lead.
func (s *Store) DeleteEnrichment(ctx context.Context, leadID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM lead_enrichments WHERE lead_id = $1`, leadID); err != nil {
		return fmt.Errorf("delete enrichment: %w", err)
	}
	return nil
}

// GetModel fetches a scoring model with its criteria (stored as JSONB).
func (s *Store) GetModel(ctx context.Context, id string) (lead.ScoringModel, error) {
	const query = `
SELECT id, name, industry, criteria, is_active, qualify_threshold
FROM scoring_models WHERE id = $1`
	var m lead.ScoringModel
	var criteriaJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Industry, &criteriaJSON, &m.IsActive, &m.QualifyThreshold,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.ScoringModel{}, fmt.Errorf("scoring model %s: %w", id, lead.ErrNotFound)
	}
	if err != nil {
		return lead.ScoringModel{}, fmt.Errorf("select scoring model: %w", err)
	}
	if len(criteriaJSON) > 0 {
		if err := json.Unmarshal(criteriaJSON, &m.Criteria); err != nil {
			return lead.ScoringModel{}, fmt.Errorf("decode model criteria: %w", err)
		}
	}
	return m, nil
}

// GetCampaign fetches a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, id string) (lead.Campaign, error) {
	const query = `SELECT id, name, scoring_model_id FROM campaigns WHERE id = $1`
	var c lead.Campaign
	err := s.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.ScoringModelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Campaign{}, fmt.Errorf("campaign %s: %w", id, lead.ErrNotFound)
	}
	if err != nil {
		return lead.Campaign{}, fmt.Errorf("select campaign: %w", err)
	}
	return c, nil
}

// SaveScoringResult upserts the result for a lead by its unique key.
func (s *Store) SaveScoringResult(ctx context.Context, leadID string, result lead.ScoringResult) error {
	criteriaJSON, err := json.Marshal(result.CriteriaScores)
	if err != nil {
		return fmt.Errorf("encode criteria scores: %w", err)
	}
	const query = `
INSERT INTO scoring_results (lead_id, total_score, confidence, criteria_scores, scored_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (lead_id) DO UPDATE SET
	total_score = EXCLUDED.total_score,
	confidence = EXCLUDED.confidence,
	criteria_scores = EXCLUDED.criteria_scores,
	scored_at = EXCLUDED.scored_at`
	if _, err := s.pool.Exec(ctx, query,
		leadID, result.TotalScore, result.Confidence, criteriaJSON, result.ScoredAt,
	); err != nil {
		return fmt.Errorf("upsert scoring result: %w", err)
	}
	return nil
}

// GetScoringResult fetches the latest result for a lead.
func (s *Store) GetScoringResult(ctx context.Context, leadID string) (lead.ScoringResult, error) {
	const query = `
SELECT total_score, confidence, criteria_scores, scored_at
FROM scoring_results WHERE lead_id = $1`
	var r lead.ScoringResult
	var criteriaJSON []byte
	err := s.pool.QueryRow(ctx, query, leadID).Scan(
		&r.TotalScore, &r.Confidence, &criteriaJSON, &r.ScoredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.ScoringResult{}, fmt.Errorf("scoring result for lead %s: %w", leadID, lead.ErrNotFound)
	}
	if err != nil {
		return lead.ScoringResult{}, fmt.Errorf("select scoring result: %w", err)
	}
	if len(criteriaJSON) > 0 {
		if err := json.Unmarshal(criteriaJSON, &r.CriteriaScores); err != nil {
			return lead.ScoringResult{}, fmt.Errorf("decode criteria scores: %w", err)
		}
	}
	return r, nil
}
