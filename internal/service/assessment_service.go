package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blgu-assess-go/internal/checklist"
	"blgu-assess-go/internal/indicator"
	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/pkg/log"
	"blgu-assess-go/pkg/tasks"
)

var (
	ErrIndicatorNotFound = errors.New("indicator not found in the published draft")
	ErrNotLeafIndicator  = errors.New("indicator has children and is not auto-calculable")
	ErrDraftNotPublished = errors.New("draft has not been published")
	ErrMissingAssessment = errors.New("assessment id is required")
	ErrPublisherDisabled = errors.New("verdict publishing is not configured")
	ErrNothingToEvaluate = errors.New("either items or a draft indicator must be given")
)

// SnapshotCache keeps published snapshots close to the evaluator.
type SnapshotCache interface {
	CacheSnapshot(ctx context.Context, draftID uint, version int64, payload []byte, ttl time.Duration) error
	CachedSnapshot(ctx context.Context, draftID uint) (int64, []byte, bool, error)
}

// VerdictPublisher hands a submitted verdict to the recording pipeline.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, task tasks.VerdictTask) error
}

// EvaluateRequest names what to evaluate: either a leaf of a published draft
// (DraftID and IndicatorID) or an inline checklist (Items).
type EvaluateRequest struct {
	DraftID         uint                       `json:"draftId"`
	IndicatorID     string                     `json:"indicatorId"`
	Items           []checklist.Item           `json:"items"`
	ValidationRule  checklist.ValidationRule   `json:"validationRule"`
	AutoCalculators []checklist.AutoCalculator `json:"autoCalculators"`
	Values          checklist.Values           `json:"values"`
}

// EvaluationResult is a suggested verdict with everything the assessment form
// needs to render it.
type EvaluationResult struct {
	checklist.Result
	DraftID        uint                     `json:"draftId,omitempty"`
	DraftVersion   int64                    `json:"draftVersion,omitempty"`
	IndicatorID    string                   `json:"indicatorId,omitempty"`
	IndicatorCode  string                   `json:"indicatorCode,omitempty"`
	ValidationRule checklist.ValidationRule `json:"validationRule"`
	Values         checklist.Values         `json:"values"`
	LockedFields   []string                 `json:"lockedFields"`
	RejectedFields []string                 `json:"rejectedFields,omitempty"`
	Computations   []checklist.Computation  `json:"computations,omitempty"`
	// Children holds the per-child outcome when an auto-calculable parent
	// was evaluated.
	Children []ChildVerdict `json:"children,omitempty"`
}

// ChildVerdict is one child's share of an auto-calculable parent's verdict.
type ChildVerdict struct {
	IndicatorID string            `json:"indicatorId"`
	Code        string            `json:"code"`
	Verdict     checklist.Verdict `json:"verdict"`
}

// AssessmentService evaluates checklists and records submitted verdicts.
type AssessmentService interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluationResult, error)
	SubmitVerdict(ctx context.Context, assessmentID string, req EvaluateRequest, user *model.User) (*EvaluationResult, string, error)
	ListVerdicts(ctx context.Context, assessmentID string) ([]model.VerdictRecord, error)
	LatestVerdicts(ctx context.Context, assessmentID string) (map[string]model.VerdictRecord, error)
}

type assessmentService struct {
	draftRepo   repository.DraftRepository
	verdictRepo repository.VerdictRepository
	cache       SnapshotCache
	publisher   VerdictPublisher
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewAssessmentService wires the evaluator. cache may be nil.
func NewAssessmentService(draftRepo repository.DraftRepository, verdictRepo repository.VerdictRepository, cache SnapshotCache, publisher VerdictPublisher, cacheTTL time.Duration) AssessmentService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &assessmentService{
		draftRepo:   draftRepo,
		verdictRepo: verdictRepo,
		cache:       cache,
		publisher:   publisher,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

// publishedSnapshot returns the tree assessments run against: the cached copy
// when present, otherwise the draft's published payload.
func (s *assessmentService) publishedSnapshot(ctx context.Context, draftID uint) (indicator.Snapshot, error) {
	var snap indicator.Snapshot
	if s.cache != nil {
		version, payload, ok, err := s.cache.CachedSnapshot(ctx, draftID)
		if err != nil {
			log.Warnf("[AssessmentService] snapshot cache read for draft %d: %v", draftID, err)
		} else if ok {
			if err := json.Unmarshal(payload, &snap); err == nil {
				snap.Version = version
				return snap, nil
			}
		}
	}

	draft, err := s.draftRepo.FindByID(ctx, draftID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snap, ErrDraftNotFound
	}
	if err != nil {
		return snap, err
	}
	if !draft.IsPublished() {
		return snap, ErrDraftNotPublished
	}
	if err := json.Unmarshal(draft.PublishedPayload, &snap); err != nil {
		return snap, fmt.Errorf("decode published draft %d: %w", draftID, err)
	}
	snap.Version = draft.PublishedVersion
	if s.cache != nil {
		if err := s.cache.CacheSnapshot(ctx, draftID, snap.Version, draft.PublishedPayload, s.cacheTTL); err != nil {
			log.Warnf("[AssessmentService] snapshot cache write for draft %d: %v", draftID, err)
		}
	}
	return snap, nil
}

func (s *assessmentService) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluationResult, error) {
	if req.DraftID == 0 || req.IndicatorID == "" {
		if len(req.Items) == 0 {
			return nil, ErrNothingToEvaluate
		}
		return evaluateChecklist(req.Items, req.ValidationRule, req.AutoCalculators, req.Values), nil
	}

	snap, err := s.publishedSnapshot(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	tree := newPublishedTree(snap)
	n, ok := tree.nodes[req.IndicatorID]
	if !ok {
		return nil, ErrIndicatorNotFound
	}
	if len(tree.children[n.TempID]) > 0 && !n.IsAutoCalculable {
		return nil, ErrNotLeafIndicator
	}

	res := tree.evaluate(n, req)
	res.DraftID = req.DraftID
	res.DraftVersion = snap.Version
	return res, nil
}

// evaluateChecklist applies the auto-calculators, merges the caller's values
// around the fields they lock, and evaluates.
func evaluateChecklist(items []checklist.Item, rule checklist.ValidationRule, calcs []checklist.AutoCalculator, input checklist.Values) *EvaluationResult {
	if input == nil {
		input = checklist.Values{}
	}
	forced, locked, comps := checklist.ApplyAutoCalculations(input, calcs)
	values, rejected := checklist.MergeInput(forced, input, locked)
	return &EvaluationResult{
		Result:         checklist.Evaluate(items, values, rule),
		ValidationRule: rule,
		Values:         values,
		LockedFields:   locked.Keys(),
		RejectedFields: rejected,
		Computations:   comps,
	}
}

type publishedTree struct {
	nodes    map[string]*indicator.IndicatorNode
	children map[string][]*indicator.IndicatorNode
}

func newPublishedTree(snap indicator.Snapshot) *publishedTree {
	t := &publishedTree{
		nodes:    make(map[string]*indicator.IndicatorNode, len(snap.Nodes)),
		children: make(map[string][]*indicator.IndicatorNode),
	}
	// snapshot nodes are already in tree order
	for _, n := range snap.Nodes {
		t.nodes[n.TempID] = n
		t.children[n.ParentKey()] = append(t.children[n.ParentKey()], n)
	}
	return t
}

// evaluate runs a leaf's checklist, or ANDs the verdicts of a parent's
// children: any Fail fails the parent, all Pass passes it, anything else
// leaves it undetermined.
func (t *publishedTree) evaluate(n *indicator.IndicatorNode, req EvaluateRequest) *EvaluationResult {
	kids := t.children[n.TempID]
	if len(kids) == 0 {
		rule := validationRuleOf(n)
		if rule == checklist.RuleUnspecified {
			rule = req.ValidationRule
		}
		res := evaluateChecklist(n.ChecklistItems, rule, autoCalculatorsOf(n), req.Values)
		res.IndicatorID = n.TempID
		res.IndicatorCode = n.Code
		return res
	}

	res := &EvaluationResult{
		Result:        checklist.Result{UnmetRequired: []string{}},
		IndicatorID:   n.TempID,
		IndicatorCode: n.Code,
		Values:        req.Values,
		LockedFields:  []string{},
	}
	locked := map[string]bool{}
	passed, failed := 0, 0
	for _, k := range kids {
		sub := t.evaluate(k, req)
		res.Children = append(res.Children, ChildVerdict{IndicatorID: k.TempID, Code: k.Code, Verdict: sub.Verdict})
		res.CheckedCount += sub.CheckedCount
		res.TotalRequired += sub.TotalRequired
		res.UnmetRequired = append(res.UnmetRequired, sub.UnmetRequired...)
		res.Computations = append(res.Computations, sub.Computations...)
		for _, f := range sub.LockedFields {
			if !locked[f] {
				locked[f] = true
				res.LockedFields = append(res.LockedFields, f)
			}
		}
		switch sub.Verdict {
		case checklist.VerdictPass:
			passed++
		case checklist.VerdictFail:
			failed++
		}
	}
	switch {
	case failed > 0:
		res.Verdict = checklist.VerdictFail
	case passed == len(kids):
		res.Verdict = checklist.VerdictPass
	}
	return res
}

// SubmitVerdict evaluates req and queues the outcome for recording under
// assessmentID. It returns the result and the event id of the queued task.
func (s *assessmentService) SubmitVerdict(ctx context.Context, assessmentID string, req EvaluateRequest, user *model.User) (*EvaluationResult, string, error) {
	assessmentID = strings.TrimSpace(assessmentID)
	if assessmentID == "" {
		return nil, "", ErrMissingAssessment
	}
	if s.publisher == nil {
		return nil, "", ErrPublisherDisabled
	}
	res, err := s.Evaluate(ctx, req)
	if err != nil {
		return nil, "", err
	}
	values, err := json.Marshal(res.Values)
	if err != nil {
		return nil, "", err
	}

	task := tasks.VerdictTask{
		EventID:        uuid.NewString(),
		AssessmentID:   assessmentID,
		DraftID:        res.DraftID,
		IndicatorID:    res.IndicatorID,
		IndicatorCode:  res.IndicatorCode,
		ValidationRule: string(res.ValidationRule),
		CheckedCount:   res.CheckedCount,
		TotalRequired:  res.TotalRequired,
		UnmetRequired:  res.UnmetRequired,
		Values:         values,
		SubmittedBy:    user.ID,
		SubmittedAt:    s.now(),
	}
	if res.Verdict.Determined() {
		v := string(res.Verdict)
		task.Verdict = &v
	}
	if err := s.publisher.PublishVerdict(ctx, task); err != nil {
		log.Error("failed to publish verdict", err)
		return nil, "", fmt.Errorf("queue verdict: %w", err)
	}
	log.Infow("verdict submitted", "assessmentId", assessmentID, "eventId", task.EventID,
		"indicatorId", task.IndicatorID, "verdict", res.Verdict, "userId", user.ID)
	return res, task.EventID, nil
}

func (s *assessmentService) ListVerdicts(ctx context.Context, assessmentID string) ([]model.VerdictRecord, error) {
	return s.verdictRepo.ListByAssessment(ctx, assessmentID)
}

func (s *assessmentService) LatestVerdicts(ctx context.Context, assessmentID string) (map[string]model.VerdictRecord, error) {
	return s.verdictRepo.LatestByIndicator(ctx, assessmentID)
}
