package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leadforge/leadforge/internal/lead"
)

func TestLeadLifecycle(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	ld := lead.Lead{
		ID:         "lead-1",
		CampaignID: "camp-1",
		Domain:     "example.com",
		URL:        "https://example.com",
		Status:     lead.StatusRaw,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateLead(ctx, ld))
	require.Error(t, store.CreateLead(ctx, ld), "duplicate ID must be rejected")

	got, err := store.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, ld, got)

	got.Status = lead.StatusScored
	require.NoError(t, store.UpdateLead(ctx, got))
	updated, err := store.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, lead.StatusScored, updated.Status)

	_, err = store.GetLead(ctx, "missing")
	require.ErrorIs(t, err, lead.ErrNotFound)
	require.ErrorIs(t, store.UpdateLead(ctx, lead.Lead{ID: "missing"}), lead.ErrNotFound)
}

func TestListLeadsByCampaignFiltersStatus(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.CreateLead(ctx, lead.Lead{ID: "l1", CampaignID: "camp-1", Status: lead.StatusRaw}))
	require.NoError(t, store.CreateLead(ctx, lead.Lead{ID: "l2", CampaignID: "camp-1", Status: lead.StatusQualified}))
	require.NoError(t, store.CreateLead(ctx, lead.Lead{ID: "l3", CampaignID: "camp-2", Status: lead.StatusRaw}))

	all, err := store.ListLeadsByCampaign(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, all, 2)

	raw, err := store.ListLeadsByCampaign(ctx, "camp-1", lead.StatusRaw)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "l1", raw[0].ID)
}

func TestEnrichmentReplaceSemantics(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	first := lead.Enrichment{LeadID: "lead-1", Content: "old content"}
	require.NoError(t, store.ReplaceEnrichment(ctx, first))

	second := lead.Enrichment{LeadID: "lead-1", Content: "new content"}
	require.NoError(t, store.ReplaceEnrichment(ctx, second))

	got, err := store.GetEnrichment(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, "new content", got.Content)

	require.NoError(t, store.DeleteEnrichment(ctx, "lead-1"))
	_, err = store.GetEnrichment(ctx, "lead-1")
	require.ErrorIs(t, err, lead.ErrNotFound)

	// Deleting an absent enrichment is not an error.
	require.NoError(t, store.DeleteEnrichment(ctx, "lead-1"))
}

func TestModelAndCampaignLookups(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	store.PutModel(lead.ScoringModel{ID: "model-1", Name: "Dental"})
	store.PutCampaign(lead.Campaign{ID: "camp-1", ScoringModelID: "model-1"})

	model, err := store.GetModel(ctx, "model-1")
	require.NoError(t, err)
	require.Equal(t, "Dental", model.Name)

	campaign, err := store.GetCampaign(ctx, "camp-1")
	require.NoError(t, err)
	require.Equal(t, "model-1", campaign.ScoringModelID)

	_, err = store.GetModel(ctx, "missing")
	require.ErrorIs(t, err, lead.ErrNotFound)
	_, err = store.GetCampaign(ctx, "missing")
	require.ErrorIs(t, err, lead.ErrNotFound)
}

func TestScoringResultUpsert(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveScoringResult(ctx, "lead-1", lead.ScoringResult{TotalScore: 40}))
	require.NoError(t, store.SaveScoringResult(ctx, "lead-1", lead.ScoringResult{TotalScore: 85}))

	got, err := store.GetScoringResult(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, 85, got.TotalScore)

	_, err = store.GetScoringResult(ctx, "missing")
	require.ErrorIs(t, err, lead.ErrNotFound)
}
