// Package pipeline implements the top-level lead enrichment driver.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/metrics"
	"github.com/leadforge/leadforge/internal/scoring"
	"github.com/leadforge/leadforge/internal/scrape"
)

// Pipeline drives URLs through lead creation, scraping/enrichment, and
// scoring. URLs are processed sequentially so progress counters increase
// monotonically and can be reported to listeners mid-run.
type Pipeline struct {
	scraper   *scrape.Scraper
	engine    *scoring.Engine
	leads     lead.LeadStore
	models    lead.ModelStore
	publisher lead.Publisher
	registry  *Registry
	clock     lead.Clock
	ids       lead.IDGenerator
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	scraper *scrape.Scraper,
	engine *scoring.Engine,
	leads lead.LeadStore,
	models lead.ModelStore,
	publisher lead.Publisher,
	registry *Registry,
	clock lead.Clock,
	ids lead.IDGenerator,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		scraper:   scraper,
		engine:    engine,
		leads:     leads,
		models:    models,
		publisher: publisher,
		registry:  registry,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// ProcessURLs runs the full pipeline for a campaign. Campaign-level
// misconfiguration fails the job before any leads are created; per-URL
// failures are isolated and recorded without affecting sibling URLs.
func (p *Pipeline) ProcessURLs(ctx context.Context, urls []string, campaignID, industry string) (lead.PipelineJob, error) {
	if len(urls) == 0 {
		return lead.PipelineJob{}, fmt.Errorf("at least one url is required: %w", lead.ErrValidation)
	}
	if campaignID == "" {
		return lead.PipelineJob{}, fmt.Errorf("campaign id is required: %w", lead.ErrValidation)
	}

	jobID, err := p.ids.NewID()
	if err != nil {
		return lead.PipelineJob{}, fmt.Errorf("generate job id: %w", err)
	}
	job := lead.PipelineJob{
		ID:         jobID,
		CampaignID: campaignID,
		URLs:       urls,
		Status:     lead.JobPending,
		Progress:   lead.Progress{Total: len(urls)},
		CreatedAt:  p.clock.Now(),
	}

	model, err := p.loadCampaignModel(ctx, campaignID)
	if err != nil {
		return p.failJob(ctx, job, err), nil
	}

	started := p.clock.Now()
	job.StartedAt = &started
	job.Status = lead.JobRunning
	p.registry.Put(job)
	p.notify(ctx, lead.EventPipelineStarted, "Pipeline started",
		fmt.Sprintf("Processing %d URLs for campaign %s", len(urls), campaignID),
		map[string]any{"job_id": job.ID, "campaign_id": campaignID, "total": len(urls)},
	)

	for _, rawURL := range urls {
		outcome, fatal := p.processURL(ctx, rawURL, campaignID, industry, model, &job.Progress)
		if fatal != nil {
			return p.failJob(ctx, job, fatal), nil
		}
		job.Results = append(job.Results, outcome)
		job.Progress.Processed++
		p.registry.Put(job)
		p.notify(ctx, lead.EventPipelineProgress, "Pipeline progress",
			fmt.Sprintf("Processed %d of %d URLs", job.Progress.Processed, job.Progress.Total),
			map[string]any{"job_id": job.ID, "progress": job.Progress},
		)
	}

	job.Status = lead.JobCompleted
	completed := p.clock.Now()
	job.CompletedAt = &completed
	p.registry.Put(job)
	metrics.ObservePipelineJob(string(job.Status))
	p.notify(ctx, lead.EventPipelineCompleted, "Pipeline completed",
		fmt.Sprintf("Campaign %s: %d processed, %d scored, %d qualified",
			campaignID, job.Progress.Processed, job.Progress.Scored, job.Progress.Qualified),
		map[string]any{"job_id": job.ID, "progress": job.Progress, "results": job.Results},
	)
	return job, nil
}

// Job returns a previously created job from the in-process registry.
func (p *Pipeline) Job(id string) (lead.PipelineJob, bool) {
	return p.registry.Get(id)
}

// loadCampaignModel enforces the pipeline precondition: the campaign exists
// and carries an active scoring model.
func (p *Pipeline) loadCampaignModel(ctx context.Context, campaignID string) (lead.ScoringModel, error) {
	campaign, err := p.models.GetCampaign(ctx, campaignID)
	if err != nil {
		return lead.ScoringModel{}, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	if campaign.ScoringModelID == "" {
		return lead.ScoringModel{}, fmt.Errorf("campaign %s: %w", campaignID, lead.ErrModelMissing)
	}
	model, err := p.models.GetModel(ctx, campaign.ScoringModelID)
	if err != nil {
		return lead.ScoringModel{}, fmt.Errorf("load scoring model %s: %w", campaign.ScoringModelID, err)
	}
	return model, nil
}

// processURL runs create-lead, scrape-and-enrich, and score for one URL.
// The returned fatal error is reserved for infrastructure failures that must
// abort the whole job; handled per-URL failures come back as a failed outcome.
func (p *Pipeline) processURL(
	ctx context.Context,
	rawURL, campaignID, industry string,
	model lead.ScoringModel,
	progress *lead.Progress,
) (lead.URLResult, error) {
	normalized := scrape.Normalize(rawURL)

	leadID, err := p.ids.NewID()
	if err != nil {
		return lead.URLResult{}, fmt.Errorf("generate lead id: %w", err)
	}
	ld := lead.Lead{
		ID:          leadID,
		CampaignID:  campaignID,
		CompanyName: scrape.Hostname(normalized),
		Domain:      scrape.Hostname(normalized),
		URL:         normalized,
		Industry:    industry,
		Status:      lead.StatusRaw,
		CreatedAt:   p.clock.Now(),
	}
	if err := p.leads.CreateLead(ctx, ld); err != nil {
		return lead.URLResult{}, fmt.Errorf("create lead for %s: %w", normalized, err)
	}

	if err := p.enrich(ctx, &ld, industry); err != nil {
		p.logger.Warn("url enrichment failed",
			zap.String("url", normalized),
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
		return lead.URLResult{
			URL:    normalized,
			LeadID: leadID,
			Status: lead.URLResultFailed,
			Error:  err.Error(),
		}, nil
	}
	progress.Scraped++

	result, err := p.engine.ScoreLead(ctx, leadID, model.ID)
	if err != nil {
		p.logger.Warn("lead scoring failed",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
		return lead.URLResult{
			URL:    normalized,
			LeadID: leadID,
			Status: lead.URLResultFailed,
			Error:  err.Error(),
		}, nil
	}
	if err := p.engine.SaveScoringResult(ctx, leadID, model, result); err != nil {
		return lead.URLResult{}, fmt.Errorf("persist scoring result for %s: %w", leadID, err)
	}
	progress.Scored++

	qualified := model.Qualifies(result.TotalScore)
	if qualified {
		progress.Qualified++
	}
	score := result.TotalScore
	return lead.URLResult{
		URL:       normalized,
		LeadID:    leadID,
		Status:    lead.URLResultSuccess,
		Score:     &score,
		Qualified: &qualified,
	}, nil
}

// enrich deletes stale enrichment, scrapes the URL, and persists a fresh
// enrichment row. A scrape failure is returned for per-URL handling.
func (p *Pipeline) enrich(ctx context.Context, ld *lead.Lead, industry string) error {
	if err := p.leads.DeleteEnrichment(ctx, ld.ID); err != nil && !errors.Is(err, lead.ErrNotFound) {
		return fmt.Errorf("delete stale enrichment: %w", err)
	}

	sr := p.scraper.ScrapeURL(ctx, ld.URL, industry)
	if !sr.Success {
		return fmt.Errorf("scrape %s: %s", ld.URL, sr.Error)
	}

	enrichment := lead.Enrichment{
		LeadID:         ld.ID,
		Content:        sr.Content,
		Title:          sr.Metadata.Title,
		Description:    sr.Metadata.Description,
		Keywords:       sr.Metadata.Keywords,
		Language:       sr.Metadata.Language,
		CompanyName:    sr.Structured.CompanyName,
		Services:       sr.Structured.Services,
		Technologies:   sr.Structured.Technologies,
		Certifications: sr.Structured.Certifications,
		Email:          sr.Structured.Contact.Email,
		Phone:          sr.Structured.Contact.Phone,
		Address:        sr.Structured.Contact.Address,
		ScrapedAt:      sr.Timestamp,
	}
	if err := p.leads.ReplaceEnrichment(ctx, enrichment); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}

	if sr.Structured.CompanyName != "" && sr.Structured.CompanyName != ld.CompanyName {
		ld.CompanyName = sr.Structured.CompanyName
		if err := p.leads.UpdateLead(ctx, *ld); err != nil {
			return fmt.Errorf("update lead company name: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) failJob(ctx context.Context, job lead.PipelineJob, cause error) lead.PipelineJob {
	job.Status = lead.JobFailed
	job.Error = cause.Error()
	completed := p.clock.Now()
	job.CompletedAt = &completed
	p.registry.Put(job)
	metrics.ObservePipelineJob(string(job.Status))
	p.logger.Error("pipeline job failed",
		zap.String("job_id", job.ID),
		zap.String("campaign_id", job.CampaignID),
		zap.Error(cause),
	)
	p.notify(ctx, lead.EventPipelineFailed, "Pipeline failed", cause.Error(),
		map[string]any{"job_id": job.ID, "campaign_id": job.CampaignID},
	)
	return job
}

// notify publishes fire-and-forget; delivery failures are logged, never
// surfaced.
func (p *Pipeline) notify(ctx context.Context, eventType lead.EventType, title, message string, payload map[string]any) {
	if p.publisher == nil {
		return
	}
	if _, err := p.publisher.Publish(ctx, lead.Event{
		Type:    eventType,
		Title:   title,
		Message: message,
		Payload: payload,
	}); err != nil {
		p.logger.Warn("notification publish failed",
			zap.String("event", string(eventType)),
			zap.Error(err),
		)
	}
}
