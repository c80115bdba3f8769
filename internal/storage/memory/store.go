// Package memory provides an in-memory persistence collaborator for
// development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/leadforge/leadforge/internal/lead"
)

// Store implements lead.LeadStore, lead.ModelStore, and lead.ResultStore
// with maps guarded by a single RWMutex.
type Store struct {
	mu          sync.RWMutex
	leads       map[string]lead.Lead
	enrichments map[string]lead.Enrichment
	models      map[string]lead.ScoringModel
	campaigns   map[string]lead.Campaign
	results     map[string]lead.ScoringResult
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		leads:       make(map[string]lead.Lead),
		enrichments: make(map[string]lead.Enrichment),
		models:      make(map[string]lead.ScoringModel),
		campaigns:   make(map[string]lead.Campaign),
		results:     make(map[string]lead.ScoringResult),
	}
}

// CreateLead stores a new lead.
func (s *Store) CreateLead(_ context.Context, l lead.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[l.ID]; exists {
		return fmt.Errorf("lead %s already exists", l.ID)
	}
	s.leads[l.ID] = l
	return nil
}

// GetLead fetches a lead by ID.
func (s *Store) GetLead(_ context.Context, id string) (lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, fmt.Errorf("lead %s: %w", id, lead.ErrNotFound)
	}
	return l, nil
}

// UpdateLead replaces an existing lead.
func (s *Store) UpdateLead(_ context.Context, l lead.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[l.ID]; !ok {
		return fmt.Errorf("lead %s: %w", l.ID, lead.ErrNotFound)
	}
	s.leads[l.ID] = l
	return nil
}

// ListLeadsByCampaign returns the campaign's leads, optionally filtered by
// status.
func (s *Store) ListLeadsByCampaign(_ context.Context, campaignID string, statuses ...lead.LeadStatus) ([]lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []lead.Lead
	for _, l := range s.leads {
		if l.CampaignID != campaignID {
			continue
		}
		if len(statuses) > 0 && !statusIn(l.Status, statuses) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// ReplaceEnrichment deletes any prior enrichment before storing the new row.
func (s *Store) ReplaceEnrichment(_ context.Context, e lead.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrichments, e.LeadID)
	s.enrichments[e.LeadID] = e
	return nil
}

// GetEnrichment fetches the enrichment row for a lead.
func (s *Store) GetEnrichment(_ context.Context, leadID string) (lead.Enrichment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrichments[leadID]
	if !ok {
		return lead.Enrichment{}, fmt.Errorf("enrichment for lead %s: %w", leadID, lead.ErrNotFound)
	}
	return e, nil
}

// DeleteEnrichment removes the enrichment row for a lead, if present.
func (s *Store) DeleteEnrichment(_ context.Context, leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrichments, leadID)
	return nil
}

// GetModel fetches a scoring model by ID.
func (s *Store) GetModel(_ context.Context, id string) (lead.ScoringModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return lead.ScoringModel{}, fmt.Errorf("scoring model %s: %w", id, lead.ErrNotFound)
	}
	return m, nil
}

// GetCampaign fetches a campaign by ID.
func (s *Store) GetCampaign(_ context.Context, id string) (lead.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return lead.Campaign{}, fmt.Errorf("campaign %s: %w", id, lead.ErrNotFound)
	}
	return c, nil
}

// SaveScoringResult upserts the result for a lead, replacing any prior one.
func (s *Store) SaveScoringResult(_ context.Context, leadID string, result lead.ScoringResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[leadID] = result
	return nil
}

// GetScoringResult fetches the latest result for a lead.
func (s *Store) GetScoringResult(_ context.Context, leadID string) (lead.ScoringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[leadID]
	if !ok {
		return lead.ScoringResult{}, fmt.Errorf("scoring result for lead %s: %w", leadID, lead.ErrNotFound)
	}
	return r, nil
}

// PutModel seeds a scoring model (development/tests).
func (s *Store) PutModel(m lead.ScoringModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = m
}

// PutCampaign seeds a campaign (development/tests).
func (s *Store) PutCampaign(c lead.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

func statusIn(status lead.LeadStatus, statuses []lead.LeadStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}
