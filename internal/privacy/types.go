package privacy

import "regexp"

// DetectionRule is a single pattern that proposes spans for one class
type DetectionRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Suggestion is a candidate span a reviewer may accept as an annotation.
// Offsets are UTF-16 code units like every other span.
type Suggestion struct {
	StartOffset  int    `json:"startOffset"`
	EndOffset    int    `json:"endOffset"`
	ClassID      string `json:"classId"`
	Detector     string `json:"detector"`
	OriginalText string `json:"originalText"`
}

// Finding counts the suggestions one detector produced
type Finding struct {
	EntityType string `json:"entityType"`
	Count      int    `json:"count"`
}

// SuggestResult contains the suggestions for one document
type SuggestResult struct {
	Suggestions []Suggestion `json:"suggestions"`
	Findings    []Finding    `json:"findings"`
}

// GetDefaultRules returns the built-in detection rules
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "email",
			Pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		},
		{
			Name:    "phone",
			Pattern: regexp.MustCompile(`(?:\+?1[\s.\-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.\-])\d{3}[\s.\-]\d{4}\b`),
		},
		{
			Name:    "credit_card",
			Pattern: regexp.MustCompile(`\b(?:\d{4}[ \-]?){3}\d{4}\b`),
		},
		{
			Name:    "iban",
			Pattern: regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
		},
		{
			Name:    "zip_code",
			Pattern: regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
		},
	}
}
