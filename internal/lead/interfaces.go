package lead

import (
	"context"
	"time"
)

// LeadStore persists leads and their enrichment rows.
type LeadStore interface {
	CreateLead(ctx context.Context, l Lead) error
	GetLead(ctx context.Context, id string) (Lead, error)
	UpdateLead(ctx context.Context, l Lead) error
	ListLeadsByCampaign(ctx context.Context, campaignID string, statuses ...LeadStatus) ([]Lead, error)
	// ReplaceEnrichment deletes any prior enrichment for the lead before
	// inserting the new row.
	ReplaceEnrichment(ctx context.Context, e Enrichment) error
	GetEnrichment(ctx context.Context, leadID string) (Enrichment, error)
	DeleteEnrichment(ctx context.Context, leadID string) error
}

// ModelStore provides read-only access to campaigns and scoring models.
type ModelStore interface {
	GetModel(ctx context.Context, id string) (ScoringModel, error)
	GetCampaign(ctx context.Context, id string) (Campaign, error)
}

// ResultStore persists scoring results, upserted by lead.
type ResultStore interface {
	SaveScoringResult(ctx context.Context, leadID string, result ScoringResult) error
	GetScoringResult(ctx context.Context, leadID string) (ScoringResult, error)
}

// EventType classifies pipeline notifications.
type EventType string

// Published event types.
const (
	EventPipelineStarted   EventType = "pipeline_started"
	EventPipelineProgress  EventType = "pipeline_progress"
	EventPipelineCompleted EventType = "pipeline_completed"
	EventPipelineFailed    EventType = "pipeline_failed"
	EventLeadCreated       EventType = "lead_created"
)

// Event is a fire-and-forget notification published to the pub/sub channel.
type Event struct {
	Type    EventType      `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Publisher pushes events to Pub/Sub (or similar). Delivery is best-effort;
// callers never wait on acknowledgment.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// AuditEntry records one scraping attempt.
type AuditEntry struct {
	URL          string    `json:"url"`
	Success      bool      `json:"success"`
	ProcessingMs int64     `json:"processing_time_ms"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// AuditLog is an append-only record of scraping attempts.
type AuditLog interface {
	RecordScrape(ctx context.Context, entry AuditEntry)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces lead and job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
