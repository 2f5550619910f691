package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blgu-assess-go/internal/model"
)

// ErrVersionConflict means the stored draft no longer has the version the
// caller loaded; someone else saved in between.
var ErrVersionConflict = errors.New("draft version conflict")

// DraftRepository persists indicator tree snapshots with optimistic locking.
type DraftRepository interface {
	Create(ctx context.Context, draft *model.IndicatorDraft) error
	FindByID(ctx context.Context, id uint) (*model.IndicatorDraft, error)
	FindByTitle(ctx context.Context, title string) (*model.IndicatorDraft, error)
	List(ctx context.Context, governanceAreaID int) ([]model.IndicatorDraft, error)
	SaveSnapshot(ctx context.Context, id uint, expectedVersion int64, payload []byte, governanceAreaID int, userID uint) (int64, error)
	MarkPublished(ctx context.Context, id uint, version int64, exportObject string, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(ctx context.Context, draft *model.IndicatorDraft) error {
	if draft.Version == 0 {
		draft.Version = 1
	}
	if draft.Status == "" {
		draft.Status = model.DraftStatusDraft
	}
	return r.db.WithContext(ctx).Create(draft).Error
}

func (r *draftRepository) FindByID(ctx context.Context, id uint) (*model.IndicatorDraft, error) {
	var d model.IndicatorDraft
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepository) FindByTitle(ctx context.Context, title string) (*model.IndicatorDraft, error) {
	var d model.IndicatorDraft
	if err := r.db.WithContext(ctx).Where("title = ?", title).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns drafts most recently updated first, without payloads. A zero
// governanceAreaID lists every area.
func (r *draftRepository) List(ctx context.Context, governanceAreaID int) ([]model.IndicatorDraft, error) {
	var drafts []model.IndicatorDraft
	q := r.db.WithContext(ctx).Omit("payload", "published_payload").Order("updated_at desc, id desc")
	if governanceAreaID > 0 {
		q = q.Where("governance_area_id = ?", governanceAreaID)
	}
	err := q.Find(&drafts).Error
	return drafts, err
}

// SaveSnapshot writes payload if the stored version still equals
// expectedVersion and returns the new version. The version check and the
// write are one UPDATE statement.
func (r *draftRepository) SaveSnapshot(ctx context.Context, id uint, expectedVersion int64, payload []byte, governanceAreaID int, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.IndicatorDraft{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"payload":            datatypes.JSON(payload),
			"governance_area_id": governanceAreaID,
			"version":            gorm.Expr("version + 1"),
			"status":             model.DraftStatusDraft,
			"updated_by":         userID,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("save draft %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, r.missOrConflict(ctx, id)
	}
	return expectedVersion + 1, nil
}

// MarkPublished copies the current payload of version into the published
// slot.
func (r *draftRepository) MarkPublished(ctx context.Context, id uint, version int64, exportObject string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.IndicatorDraft{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"status":            model.DraftStatusPublished,
			"published_version": version,
			"published_payload": gorm.Expr("payload"),
			"export_object":     exportObject,
			"published_at":      at,
		})
	if res.Error != nil {
		return fmt.Errorf("publish draft %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *draftRepository) missOrConflict(ctx context.Context, id uint) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.IndicatorDraft{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrVersionConflict
}

func (r *draftRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.IndicatorDraft{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
