// Package privacy proposes PII spans for reviewers to confirm. Suggestions
// are never committed on their own.
package privacy

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/config"
	"github.com/raaihank/annotext/internal/logger"
	"github.com/raaihank/annotext/internal/overlap"
)

// Suggester runs the enabled detection rules over documents
type Suggester struct {
	rules   []DetectionRule
	enabled map[string]bool
	classes map[string]string
	logger  *logger.Logger
	config  config.PrivacyConfig
}

// New creates a new suggester instance
func New(cfg config.PrivacyConfig, log *logger.Logger) (*Suggester, error) {
	s := &Suggester{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		classes: cfg.Classes,
		logger:  log,
		config:  cfg,
	}

	if err := s.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy suggester initialized",
		zap.Int("total_rules", len(s.rules)),
		zap.Int("enabled_rules", len(s.EnabledRules())),
	)

	return s, nil
}

// configureDetectors enables detectors based on configuration. A detector
// without a class mapping cannot produce suggestions and is rejected.
func (s *Suggester) configureDetectors(detectors []string) error {
	for _, rule := range s.rules {
		s.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range s.rules {
				if _, mapped := s.classes[rule.Name]; mapped {
					s.enabled[rule.Name] = true
				}
			}
			continue
		}

		if _, known := s.enabled[detector]; !known {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		if _, mapped := s.classes[detector]; !mapped {
			return fmt.Errorf("detector %s has no class mapping", detector)
		}
		s.enabled[detector] = true
	}

	return nil
}

// Suggest returns candidate spans for doc. Candidates overlapping an
// existing annotation are dropped, and overlapping candidates are resolved
// the same way the highlighter resolves annotations.
func (s *Suggester) Suggest(doc *annotation.Document, existing []annotation.Annotation) SuggestResult {
	result := SuggestResult{Suggestions: []Suggestion{}, Findings: []Finding{}}
	if !s.config.Enabled {
		return result
	}

	text := doc.Text()
	var candidates []annotation.Annotation
	for _, rule := range s.rules {
		if !s.enabled[rule.Name] {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			candidates = append(candidates, annotation.Annotation{
				ID:          rule.Name,
				StartOffset: doc.UnitOffset(loc[0]),
				EndOffset:   doc.UnitOffset(loc[1]),
				ClassID:     s.classes[rule.Name],
			})
		}
	}

	kept, _ := overlap.Partition(doc, candidates)

	counts := make(map[string]int)
	for _, c := range kept {
		if overlapsAny(c.Span(), existing) {
			continue
		}
		result.Suggestions = append(result.Suggestions, Suggestion{
			StartOffset:  c.StartOffset,
			EndOffset:    c.EndOffset,
			ClassID:      c.ClassID,
			Detector:     c.ID,
			OriginalText: doc.Slice(c.StartOffset, c.EndOffset),
		})
		counts[c.ID]++
	}

	for name, count := range counts {
		result.Findings = append(result.Findings, Finding{EntityType: name, Count: count})
	}
	sort.Slice(result.Findings, func(i, j int) bool {
		return result.Findings[i].EntityType < result.Findings[j].EntityType
	})

	if len(result.Suggestions) > 0 {
		s.logger.Debug("PII suggestions produced",
			zap.String("document_id", doc.ID),
			zap.Int("count", len(result.Suggestions)),
		)
	}

	return result
}

func overlapsAny(span annotation.Span, existing []annotation.Annotation) bool {
	for _, ann := range existing {
		if span.Overlaps(ann.Span()) {
			return true
		}
	}
	return false
}

// EnabledRules returns the names of enabled rules in rule order
func (s *Suggester) EnabledRules() []string {
	var enabled []string
	for _, rule := range s.rules {
		if s.enabled[rule.Name] {
			enabled = append(enabled, rule.Name)
		}
	}
	return enabled
}

// EnableRule enables a specific detection rule
func (s *Suggester) EnableRule(ruleName string) error {
	if _, exists := s.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	if _, mapped := s.classes[ruleName]; !mapped {
		return fmt.Errorf("rule %s has no class mapping", ruleName)
	}
	s.enabled[ruleName] = true
	s.logger.Info("Detection rule enabled", zap.String("rule", ruleName))
	return nil
}

// DisableRule disables a specific detection rule
func (s *Suggester) DisableRule(ruleName string) error {
	if _, exists := s.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	s.enabled[ruleName] = false
	s.logger.Info("Detection rule disabled", zap.String("rule", ruleName))
	return nil
}
