package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leadforge/leadforge/internal/lead"
)

// Extraction limits.
const (
	maxContentChars    = 10000
	minContentChars    = 100
	maxServiceTokens   = 10
	maxServiceTokenLen = 80
)

// contentSelectors are tried in order; the first whose text exceeds
// minContentChars wins. The document body is the final fallback.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".content",
	"#content",
	".main-content",
	"body",
}

// companySelectors locate a company name, most specific first.
var companySelectors = []string{
	"[itemprop=name]",
	".company-name",
	".brand",
	".logo img",
	".site-title",
	"h1",
}

var serviceSelectors = []string{
	".services li", "#services li", ".service-list li",
	".offerings li", ".our-services li",
	".services h3", "#services h3", ".offerings h3",
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reEmail      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	rePhone      = regexp.MustCompile(`\+?\(?\d{1,3}\)?[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}`)
	reISO        = regexp.MustCompile(`(?i)\bISO[\s\-]?\d{4,5}(?::\d{4})?\b`)
	reCertified  = regexp.MustCompile(`(?i)\b(?:[A-Za-z]+[\s\-])?(?:certified|licensed|accredited|approved)\b`)
)

// industryTechnologies maps an industry hint to the technology keywords worth
// scanning for on that industry's sites.
var industryTechnologies = map[string][]string{
	"dental": {
		"invisalign", "cerec", "itero", "cbct", "digital x-ray",
		"laser dentistry", "3d imaging", "intraoral camera",
	},
	"healthcare": {
		"telehealth", "ehr", "emr", "patient portal", "hipaa",
		"mri", "ultrasound",
	},
	"construction": {
		"bim", "autocad", "revit", "prefabrication", "drone survey",
		"project management software",
	},
	"software": {
		"kubernetes", "aws", "azure", "react", "machine learning",
		"api", "saas", "microservices",
	},
	"legal": {
		"e-discovery", "case management", "docketing", "clio",
	},
	"manufacturing": {
		"cnc", "cad", "cam", "lean manufacturing", "six sigma",
		"injection molding", "robotics",
	},
}

// Extractor parses retrieved markup into plain text, page metadata, and
// industry-aware structured fields. It is best-effort and heuristic; a
// missing field is an empty value, never an error.
type Extractor struct{}

// NewExtractor constructs an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extracted bundles everything pulled from one page.
type Extracted struct {
	Content    string
	Metadata   lead.PageMetadata
	Structured lead.StructuredData
}

// Extract parses markup and pulls content, metadata, and structured data.
// The industry hint enables service/technology/certification extraction.
func (e *Extractor) Extract(body []byte, industry string) (Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extracted{}, fmt.Errorf("parse markup: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	out := Extracted{
		Content:  extractContent(doc),
		Metadata: extractMetadata(doc),
	}
	out.Structured = extractStructured(doc, out.Content, industry)
	return out, nil
}

func extractContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		text := collapseWhitespace(doc.Find(sel).First().Text())
		if len(text) > minContentChars {
			return truncate(text, maxContentChars)
		}
	}
	return truncate(collapseWhitespace(doc.Find("body").Text()), maxContentChars)
}

func extractMetadata(doc *goquery.Document) lead.PageMetadata {
	meta := lead.PageMetadata{Language: "en"}

	meta.Title = collapseWhitespace(doc.Find("title").First().Text())
	if meta.Title == "" {
		meta.Title = collapseWhitespace(doc.Find("h1").First().Text())
	}

	meta.Description = metaContent(doc, "description")

	if kw := metaContent(doc, "keywords"); kw != "" {
		for _, part := range strings.Split(kw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				meta.Keywords = append(meta.Keywords, trimmed)
			}
		}
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		meta.Language = strings.TrimSpace(lang)
	}

	if lm := metaContent(doc, "last-modified"); lm != "" {
		meta.LastModified = lm
	} else if lm, ok := doc.Find(`meta[http-equiv="last-modified"]`).Attr("content"); ok {
		meta.LastModified = strings.TrimSpace(lm)
	}

	return meta
}

func extractStructured(doc *goquery.Document, content, industry string) lead.StructuredData {
	sd := lead.StructuredData{Industry: industry}

	for _, sel := range companySelectors {
		node := doc.Find(sel).First()
		name := collapseWhitespace(node.Text())
		if name == "" {
			if alt, ok := node.Attr("alt"); ok {
				name = collapseWhitespace(alt)
			}
		}
		if name != "" {
			sd.CompanyName = name
			break
		}
	}

	bodyText := collapseWhitespace(doc.Find("body").Text())
	if m := reEmail.FindString(bodyText); m != "" {
		sd.Contact.Email = m
	}
	if m := rePhone.FindString(bodyText); m != "" {
		sd.Contact.Phone = strings.TrimSpace(m)
	}

	if industry == "" {
		return sd
	}

	sd.Services = extractServices(doc)
	sd.Technologies = matchKeywords(content, industryTechnologies[strings.ToLower(industry)])
	sd.Certifications = extractCertifications(bodyText)
	return sd
}

func extractServices(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var services []string
	for _, sel := range serviceSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			token := collapseWhitespace(s.Text())
			if token == "" || len(token) > maxServiceTokenLen {
				return true
			}
			key := strings.ToLower(token)
			if _, dup := seen[key]; dup {
				return true
			}
			seen[key] = struct{}{}
			services = append(services, token)
			return len(services) < maxServiceTokens
		})
		if len(services) >= maxServiceTokens {
			break
		}
	}
	return services
}

func matchKeywords(content string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(content)
	var hits []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

func extractCertifications(text string) []string {
	seen := make(map[string]struct{})
	var certs []string
	add := func(matches []string) {
		for _, m := range matches {
			key := strings.ToLower(strings.TrimSpace(m))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			certs = append(certs, strings.TrimSpace(m))
		}
	}
	add(reISO.FindAllString(text, -1))
	add(reCertified.FindAllString(text, -1))
	return certs
}

func metaContent(doc *goquery.Document, name string) string {
	content, ok := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).Attr("content")
	if !ok {
		return ""
	}
	return strings.TrimSpace(content)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
