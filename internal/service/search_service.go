package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blgu-assess-go/internal/checklist"
	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/pkg/es"
)

const defaultSearchSize = 20

var ErrEmptyQuery = errors.New("search query is empty")

// IndicatorSearcher runs a full-text query over indexed indicators.
type IndicatorSearcher interface {
	Search(ctx context.Context, query string, governanceAreaID, size int) ([]model.IndicatorSearchHit, error)
}

// SearchService finds published leaf indicators by code, name or checklist
// text.
type SearchService interface {
	SearchIndicators(ctx context.Context, query string, governanceAreaID, size int) ([]model.IndicatorSearchHit, error)
}

type searchService struct {
	searcher IndicatorSearcher
}

func NewSearchService(searcher IndicatorSearcher) SearchService {
	return &searchService{searcher: searcher}
}

func (s *searchService) SearchIndicators(ctx context.Context, query string, governanceAreaID, size int) ([]model.IndicatorSearchHit, error) {
	query = es.NormalizeQuery(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if size <= 0 || size > 100 {
		size = defaultSearchSize
	}
	hits, err := s.searcher.Search(ctx, query, governanceAreaID, size)
	if err != nil {
		return nil, fmt.Errorf("search indicators: %w", err)
	}
	return hits, nil
}

// IndicatorDocuments projects the leaves of a snapshot into search documents.
// Parents are not indexed; they carry no checklist.
func IndicatorDocuments(draftID uint, snap indicator.Snapshot) []model.IndicatorDocument {
	docs := make([]model.IndicatorDocument, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if !indicator.IsLeafIndicator(n, snap.Nodes) {
			continue
		}
		docs = append(docs, model.IndicatorDocument{
			DocID:            fmt.Sprintf("%d-%s", draftID, n.TempID),
			DraftID:          draftID,
			DraftVersion:     snap.Version,
			GovernanceAreaID: snap.GovernanceAreaID,
			IndicatorID:      n.TempID,
			Code:             n.Code,
			Name:             n.Name,
			Description:      n.Description,
			ChecklistText:    checklistText(n.ChecklistItems),
			ValidationRule:   string(validationRuleOf(n)),
		})
	}
	return docs
}

func checklistText(items []checklist.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Label != "" {
			parts = append(parts, it.Label)
		}
		if it.Description != "" {
			parts = append(parts, it.Description)
		}
	}
	return strings.Join(parts, "\n")
}

// validationRuleOf reads calculation_schema.validation_rule.
func validationRuleOf(n *indicator.IndicatorNode) checklist.ValidationRule {
	rule, _ := n.CalculationSchema["validation_rule"].(string)
	return checklist.ValidationRule(rule)
}

// autoCalculatorsOf reads calculation_schema.auto_calculator, which may be a
// single definition or a list of them.
func autoCalculatorsOf(n *indicator.IndicatorNode) []checklist.AutoCalculator {
	calcs, _ := checklist.ParseAutoCalculators(n.CalculationSchema["auto_calculator"], n.ChecklistItems)
	return calcs
}
