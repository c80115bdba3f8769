// Package lead defines core types shared across subsystems.
package lead

import "time"

// LeadStatus tracks where a lead sits in the enrichment/scoring lifecycle.
type LeadStatus string

// Lead status values persisted in the lead store.
const (
	StatusRaw       LeadStatus = "RAW"
	StatusScored    LeadStatus = "SCORED"
	StatusQualified LeadStatus = "QUALIFIED"
)

// JobStatus represents the lifecycle state of a scraping or pipeline job.
type JobStatus string

// Job status values.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// CriterionType selects how a scoring criterion matches lead text.
type CriterionType string

// Supported criterion types.
const (
	CriterionKeyword CriterionType = "KEYWORD"
	CriterionDomain  CriterionType = "DOMAIN"
	CriterionContent CriterionType = "CONTENT"
)

// Lead is a prospective company tracked through enrichment and scoring.
type Lead struct {
	ID          string     `json:"id"`
	CampaignID  string     `json:"campaign_id"`
	CompanyName string     `json:"company_name"`
	Domain      string     `json:"domain"`
	URL         string     `json:"url"`
	Industry    string     `json:"industry,omitempty"`
	Status      LeadStatus `json:"status"`
	Score       *int       `json:"score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Enrichment holds the data extracted from a lead's web presence.
// Replaced wholesale on re-scrape (delete-then-create).
type Enrichment struct {
	LeadID         string    `json:"lead_id"`
	Content        string    `json:"content"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Keywords       []string  `json:"keywords,omitempty"`
	Language       string    `json:"language"`
	CompanyName    string    `json:"company_name,omitempty"`
	Services       []string  `json:"services,omitempty"`
	Technologies   []string  `json:"technologies,omitempty"`
	Certifications []string  `json:"certifications,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

// ContactInfo captures contact fields extracted from a page.
type ContactInfo struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// PageMetadata holds document-level metadata for a scraped page.
type PageMetadata struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords,omitempty"`
	Language     string   `json:"language"`
	LastModified string   `json:"last_modified,omitempty"`
}

// StructuredData holds industry-aware fields extracted from a page.
type StructuredData struct {
	CompanyName    string      `json:"company_name,omitempty"`
	Industry       string      `json:"industry,omitempty"`
	Services       []string    `json:"services,omitempty"`
	Technologies   []string    `json:"technologies,omitempty"`
	Certifications []string    `json:"certifications,omitempty"`
	Contact        ContactInfo `json:"contact_info"`
}

// ScrapingResult is the immutable outcome of scraping one URL.
type ScrapingResult struct {
	URL          string         `json:"url"`
	Success      bool           `json:"success"`
	Content      string         `json:"content,omitempty"`
	Metadata     PageMetadata   `json:"metadata"`
	Structured   StructuredData `json:"structured_data"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	ProcessingMs int64          `json:"processing_time_ms"`
}

// ScrapingJob tracks one batch scraping invocation. Ephemeral.
type ScrapingJob struct {
	ID          string           `json:"id"`
	URLs        []string         `json:"urls"`
	Industry    string           `json:"industry,omitempty"`
	Status      JobStatus        `json:"status"`
	Results     []ScrapingResult `json:"results"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ScoringCriterion is one weighted rule within a scoring model.
// Weight is 0-100 but weights across a model are not required to sum to 100.
type ScoringCriterion struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        CriterionType `json:"type"`
	SearchTerms []string      `json:"search_terms"`
	Weight      int           `json:"weight"`
}

// DefaultQualifyThreshold applies when a model does not set its own.
const DefaultQualifyThreshold = 70

// ScoringModel is a campaign's criteria set. Consumed read-only by the engine.
type ScoringModel struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Industry         string             `json:"industry,omitempty"`
	Criteria         []ScoringCriterion `json:"criteria"`
	IsActive         bool               `json:"is_active"`
	QualifyThreshold int                `json:"qualify_threshold,omitempty"`
}

// Threshold returns the model's qualification threshold, defaulting when unset.
func (m ScoringModel) Threshold() int {
	if m.QualifyThreshold <= 0 {
		return DefaultQualifyThreshold
	}
	return m.QualifyThreshold
}

// Qualifies reports whether a total score meets the model's threshold.
func (m ScoringModel) Qualifies(score int) bool {
	return score >= m.Threshold()
}

// CriterionScore is the per-criterion breakdown of a scoring run.
type CriterionScore struct {
	CriterionID    string   `json:"criterion_id"`
	Score          int      `json:"score"`
	MatchedContent []string `json:"matched_content,omitempty"`
	Confidence     int      `json:"confidence"`
}

// ScoringResult aggregates criterion scores for one lead.
// TotalScore is the literal sum of weighted contributions; it is not
// re-normalized when weights do not sum to 100.
type ScoringResult struct {
	TotalScore     int              `json:"total_score"`
	Confidence     int              `json:"confidence"`
	CriteriaScores []CriterionScore `json:"criteria_scores"`
	ScoredAt       time.Time        `json:"scored_at"`
}

// Campaign is the slice of the campaign domain the pipeline needs.
type Campaign struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ScoringModelID string `json:"scoring_model_id,omitempty"`
}

// Progress carries the pipeline counters reported to listeners mid-run.
// Invariants: Processed <= Total; Qualified <= Scored <= Processed.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Scraped   int `json:"scraped"`
	Scored    int `json:"scored"`
	Qualified int `json:"qualified"`
}

// URLResult is the per-URL outcome appended to a pipeline job.
type URLResult struct {
	URL       string `json:"url"`
	LeadID    string `json:"lead_id,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Score     *int   `json:"score,omitempty"`
	Qualified *bool  `json:"qualified,omitempty"`
}

// URL result statuses.
const (
	URLResultSuccess = "success"
	URLResultFailed  = "failed"
)

// PipelineJob tracks one ProcessURLs invocation. Held only for the lifetime
// of the process; never persisted durably.
type PipelineJob struct {
	ID          string      `json:"id"`
	CampaignID  string      `json:"campaign_id"`
	URLs        []string    `json:"urls"`
	Status      JobStatus   `json:"status"`
	Progress    Progress    `json:"progress"`
	Results     []URLResult `json:"results"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// CampaignSummary aggregates a bulk campaign scoring run.
type CampaignSummary struct {
	TotalLeads     int `json:"total_leads"`
	ScoredLeads    int `json:"scored_leads"`
	QualifiedLeads int `json:"qualified_leads"`
}
