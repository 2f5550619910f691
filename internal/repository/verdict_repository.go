package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blgu-assess-go/internal/model"
)

// VerdictRepository stores the verdict history of assessments.
type VerdictRepository interface {
	// Create inserts rec; a record with the same EventID already present is
	// left as is and no error is returned.
	Create(ctx context.Context, rec *model.VerdictRecord) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]model.VerdictRecord, error)
	LatestByIndicator(ctx context.Context, assessmentID string) (map[string]model.VerdictRecord, error)
}

type verdictRepository struct {
	db *gorm.DB
}

func NewVerdictRepository(db *gorm.DB) VerdictRepository {
	return &verdictRepository{db: db}
}

func (r *verdictRepository) Create(ctx context.Context, rec *model.VerdictRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(rec).Error
}

// ListByAssessment returns the history oldest first.
func (r *verdictRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]model.VerdictRecord, error) {
	var recs []model.VerdictRecord
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("submitted_at asc, id asc").
		Find(&recs).Error
	return recs, err
}

// LatestByIndicator keeps the most recent record per indicator id.
func (r *verdictRepository) LatestByIndicator(ctx context.Context, assessmentID string) (map[string]model.VerdictRecord, error) {
	recs, err := r.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]model.VerdictRecord, len(recs))
	for _, rec := range recs {
		latest[rec.IndicatorID] = rec
	}
	return latest, nil
}
