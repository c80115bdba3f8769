package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/storage/memory"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(store, store, store, clock, zap.NewNop()), store
}

func seedLead(t *testing.T, store *memory.Store, id string, enrichment *lead.Enrichment) {
	t.Helper()
	require.NoError(t, store.CreateLead(context.Background(), lead.Lead{
		ID:         id,
		CampaignID: "camp-1",
		Domain:     "brightsmile.example.com",
		URL:        "https://brightsmile.example.com",
		Industry:   "dental",
		Status:     lead.StatusRaw,
	}))
	if enrichment != nil {
		e := *enrichment
		e.LeadID = id
		require.NoError(t, store.ReplaceEnrichment(context.Background(), e))
	}
}

func TestScoreLeadKeywordPartialMatch(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", &lead.Enrichment{
		Content: "We offer invisalign treatment for adults and teens.",
	})
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"invisalign", "cerec"}, Weight: 100},
		},
	})

	result, err := engine.ScoreLead(context.Background(), "lead-1", "model-1")
	require.NoError(t, err)

	// 1 of 2 terms matched -> 50, weighted at 100 -> total 50.
	require.Len(t, result.CriteriaScores, 1)
	require.Equal(t, 50, result.CriteriaScores[0].Score)
	require.Equal(t, []string{"invisalign"}, result.CriteriaScores[0].MatchedContent)
	require.Equal(t, 50, result.TotalScore)
}

func TestScoreLeadWeightedTotal(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", &lead.Enrichment{
		Content: "Family dental practice offering invisalign and teeth whitening.",
	})
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			// 1/2 matched -> 50, contribution 50/100*60 = 30.
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"invisalign", "cerec"}, Weight: 60},
			// 2/2 matched -> 100, contribution 100/100*40 = 40.
			{ID: "c2", Type: lead.CriterionContent, SearchTerms: []string{"dental", "whitening"}, Weight: 40},
		},
	})

	result, err := engine.ScoreLead(context.Background(), "lead-1", "model-1")
	require.NoError(t, err)
	require.Equal(t, 70, result.TotalScore)
}

func TestScoreLeadDomainCriterionUsesDomainOnly(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", &lead.Enrichment{
		Content: "Content mentions dentist but domain does not.",
	})
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionDomain, SearchTerms: []string{"smile", "dentist"}, Weight: 100},
		},
	})

	result, err := engine.ScoreLead(context.Background(), "lead-1", "model-1")
	require.NoError(t, err)

	// Only "smile" appears in brightsmile.example.com; "dentist" in the
	// content must not count for a DOMAIN criterion.
	require.Equal(t, 50, result.CriteriaScores[0].Score)
	require.Equal(t, []string{"smile"}, result.CriteriaScores[0].MatchedContent)
}

func TestScoreLeadWithoutEnrichment(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", nil)
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"dental"}, Weight: 100},
		},
	})

	result, err := engine.ScoreLead(context.Background(), "lead-1", "model-1")
	require.NoError(t, err)
	// "dental" matches the lead's industry field even without enrichment.
	require.Equal(t, 100, result.TotalScore)
}

func TestScoreLeadWeightsNotRenormalized(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", &lead.Enrichment{Content: "invisalign cerec"})
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"invisalign"}, Weight: 80},
			{ID: "c2", Type: lead.CriterionKeyword, SearchTerms: []string{"cerec"}, Weight: 80},
		},
	})

	result, err := engine.ScoreLead(context.Background(), "lead-1", "model-1")
	require.NoError(t, err)
	// Weights summing to 160 yield a total above 100; no re-normalization.
	require.Equal(t, 160, result.TotalScore)
}

func TestSaveScoringResultUpdatesLeadStatus(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", nil)
	model := lead.ScoringModel{ID: "model-1", QualifyThreshold: 60}

	require.NoError(t, engine.SaveScoringResult(context.Background(), "lead-1", model, lead.ScoringResult{TotalScore: 75}))

	ld, err := store.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Equal(t, lead.StatusQualified, ld.Status)
	require.NotNil(t, ld.Score)
	require.Equal(t, 75, *ld.Score)

	saved, err := store.GetScoringResult(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Equal(t, 75, saved.TotalScore)
}

func TestSaveScoringResultBelowThreshold(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	seedLead(t, store, "lead-1", nil)
	model := lead.ScoringModel{ID: "model-1"}

	require.NoError(t, engine.SaveScoringResult(context.Background(), "lead-1", model, lead.ScoringResult{TotalScore: 69}))

	ld, err := store.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	// Default threshold is 70; 69 stays SCORED.
	require.Equal(t, lead.StatusScored, ld.Status)
}

func TestScoreCampaignLeads(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	store.PutModel(lead.ScoringModel{
		ID: "model-1",
		Criteria: []lead.ScoringCriterion{
			{ID: "c1", Type: lead.CriterionKeyword, SearchTerms: []string{"dental"}, Weight: 100},
		},
	})
	store.PutCampaign(lead.Campaign{ID: "camp-1", ScoringModelID: "model-1"})

	seedLead(t, store, "lead-1", &lead.Enrichment{Content: "dental services"})
	seedLead(t, store, "lead-2", &lead.Enrichment{Content: "unrelated widgets"})

	summary, err := engine.ScoreCampaignLeads(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalLeads)
	require.Equal(t, 2, summary.ScoredLeads)
	require.Equal(t, 2, summary.QualifiedLeads)
}

func TestScoreCampaignLeadsRequiresModel(t *testing.T) {
	t.Parallel()

	engine, store := newTestEngine(t)
	store.PutCampaign(lead.Campaign{ID: "camp-1"})

	_, err := engine.ScoreCampaignLeads(context.Background(), "camp-1")
	require.ErrorIs(t, err, lead.ErrModelMissing)
}

func TestScoreLeadMissingLead(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t)
	_, err := engine.ScoreLead(context.Background(), "absent", "model-1")
	require.ErrorIs(t, err, lead.ErrNotFound)
}
