// Package scoring evaluates leads against weighted criteria models.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/metrics"
)

// Confidence formula weights: content richness, term match ratio, enrichment
// presence. Richness saturates at richnessSaturation characters of combined
// text.
const (
	richnessWeight     = 0.30
	matchRatioWeight   = 0.40
	enrichmentWeight   = 0.30
	richnessSaturation = 2000
)

// Engine scores leads against a ScoringModel's weighted criteria.
type Engine struct {
	leads   lead.LeadStore
	models  lead.ModelStore
	results lead.ResultStore
	clock   lead.Clock
	logger  *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(
	leads lead.LeadStore,
	models lead.ModelStore,
	results lead.ResultStore,
	clock lead.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		leads:   leads,
		models:  models,
		results: results,
		clock:   clock,
		logger:  logger,
	}
}

// ScoreLead evaluates the lead against every criterion of the model. The
// total score is the literal sum of weighted contributions; models whose
// weights sum above or below 100 yield totals outside the 0-100 band by
// design.
func (e *Engine) ScoreLead(ctx context.Context, leadID, modelID string) (lead.ScoringResult, error) {
	ld, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return lead.ScoringResult{}, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	model, err := e.models.GetModel(ctx, modelID)
	if err != nil {
		return lead.ScoringResult{}, fmt.Errorf("load scoring model %s: %w", modelID, err)
	}

	enrichment, err := e.leads.GetEnrichment(ctx, leadID)
	hasEnrichment := err == nil
	if err != nil && !errors.Is(err, lead.ErrNotFound) {
		return lead.ScoringResult{}, fmt.Errorf("load enrichment for %s: %w", leadID, err)
	}

	combined := combinedText(ld, enrichment, hasEnrichment)
	domainText := strings.ToLower(ld.Domain)

	result := lead.ScoringResult{
		CriteriaScores: make([]lead.CriterionScore, 0, len(model.Criteria)),
		ScoredAt:       e.clock.Now(),
	}

	var total float64
	var confidenceSum int
	for _, criterion := range model.Criteria {
		text := combined
		if criterion.Type == lead.CriterionDomain {
			text = domainText
		}
		score := evaluateCriterion(criterion, text, combined, hasEnrichment)
		result.CriteriaScores = append(result.CriteriaScores, score)
		total += float64(score.Score) / 100 * float64(criterion.Weight)
		confidenceSum += score.Confidence
	}

	result.TotalScore = int(math.Round(total))
	if len(model.Criteria) > 0 {
		result.Confidence = int(math.Round(float64(confidenceSum) / float64(len(model.Criteria))))
	}
	return result, nil
}

// SaveScoringResult replaces any prior result for the lead and updates the
// lead's denormalized score and status using the model's threshold.
func (e *Engine) SaveScoringResult(ctx context.Context, leadID string, model lead.ScoringModel, result lead.ScoringResult) error {
	if err := e.results.SaveScoringResult(ctx, leadID, result); err != nil {
		return fmt.Errorf("save scoring result for %s: %w", leadID, err)
	}

	ld, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}
	score := result.TotalScore
	ld.Score = &score
	ld.Status = lead.StatusScored
	if model.Qualifies(result.TotalScore) {
		ld.Status = lead.StatusQualified
	}
	if err := e.leads.UpdateLead(ctx, ld); err != nil {
		return fmt.Errorf("update lead %s: %w", leadID, err)
	}
	metrics.ObserveLeadScored(string(ld.Status))
	return nil
}

// ScoreCampaignLeads scores every RAW or SCORED lead in the campaign,
// continuing past individual failures. The campaign must have an assigned
// scoring model.
func (e *Engine) ScoreCampaignLeads(ctx context.Context, campaignID string) (lead.CampaignSummary, error) {
	campaign, err := e.models.GetCampaign(ctx, campaignID)
	if err != nil {
		return lead.CampaignSummary{}, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	if campaign.ScoringModelID == "" {
		return lead.CampaignSummary{}, fmt.Errorf("campaign %s: %w", campaignID, lead.ErrModelMissing)
	}
	model, err := e.models.GetModel(ctx, campaign.ScoringModelID)
	if err != nil {
		return lead.CampaignSummary{}, fmt.Errorf("load scoring model %s: %w", campaign.ScoringModelID, err)
	}

	leads, err := e.leads.ListLeadsByCampaign(ctx, campaignID, lead.StatusRaw, lead.StatusScored)
	if err != nil {
		return lead.CampaignSummary{}, fmt.Errorf("list campaign leads: %w", err)
	}

	summary := lead.CampaignSummary{TotalLeads: len(leads)}
	for _, ld := range leads {
		result, scoreErr := e.ScoreLead(ctx, ld.ID, model.ID)
		if scoreErr != nil {
			e.logger.Warn("scoring lead failed",
				zap.String("lead_id", ld.ID),
				zap.String("campaign_id", campaignID),
				zap.Error(scoreErr),
			)
			continue
		}
		if saveErr := e.SaveScoringResult(ctx, ld.ID, model, result); saveErr != nil {
			e.logger.Warn("saving scoring result failed",
				zap.String("lead_id", ld.ID),
				zap.Error(saveErr),
			)
			continue
		}
		summary.ScoredLeads++
		if model.Qualifies(result.TotalScore) {
			summary.QualifiedLeads++
		}
	}
	return summary, nil
}

// evaluateCriterion computes the matched fraction of search terms as
// case-insensitive substrings of text, scaled to 0-100.
func evaluateCriterion(criterion lead.ScoringCriterion, text, combined string, hasEnrichment bool) lead.CriterionScore {
	score := lead.CriterionScore{CriterionID: criterion.ID}
	if len(criterion.SearchTerms) == 0 {
		score.Confidence = confidence(len(combined), 0, hasEnrichment)
		return score
	}

	for _, term := range criterion.SearchTerms {
		if strings.Contains(text, strings.ToLower(term)) {
			score.MatchedContent = append(score.MatchedContent, term)
		}
	}
	ratio := float64(len(score.MatchedContent)) / float64(len(criterion.SearchTerms))
	score.Score = int(math.Round(ratio * 100))
	score.Confidence = confidence(len(combined), ratio, hasEnrichment)
	return score
}

// confidence combines content richness, match ratio, and enrichment presence
// into a bounded 0-100 estimate.
func confidence(textLen int, matchRatio float64, hasEnrichment bool) int {
	richness := float64(textLen) / richnessSaturation * 100
	if richness > 100 {
		richness = 100
	}
	presence := 0.0
	if hasEnrichment {
		presence = 100
	}
	c := richnessWeight*richness + matchRatioWeight*matchRatio*100 + enrichmentWeight*presence
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return int(math.Round(c))
}

// combinedText concatenates the lowercase searchable text for a lead.
func combinedText(ld lead.Lead, enrichment lead.Enrichment, hasEnrichment bool) string {
	parts := []string{ld.CompanyName, ld.Domain, ld.Industry, ld.URL}
	if hasEnrichment {
		parts = append(parts,
			enrichment.Title,
			enrichment.Description,
			enrichment.Content,
			strings.Join(enrichment.Keywords, " "),
			strings.Join(enrichment.Services, " "),
			strings.Join(enrichment.Certifications, " "),
			enrichment.Email,
			enrichment.Phone,
			enrichment.Address,
		)
	}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}
