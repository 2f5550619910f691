package repository

import (
	"gorm.io/gorm"

	"blgu-assess-go/internal/model"
)

// GovernanceAreaRepository persists governance areas.
type GovernanceAreaRepository interface {
	Create(area *model.GovernanceArea) error
	FindByID(id uint) (*model.GovernanceArea, error)
	FindByCode(code string) (*model.GovernanceArea, error)
	FindAll() ([]model.GovernanceArea, error)
	Update(area *model.GovernanceArea) error
	Delete(id uint) error
}

type governanceAreaRepository struct {
	db *gorm.DB
}

func NewGovernanceAreaRepository(db *gorm.DB) GovernanceAreaRepository {
	return &governanceAreaRepository{db: db}
}

func (r *governanceAreaRepository) Create(area *model.GovernanceArea) error {
	return r.db.Create(area).Error
}

// FindAll lists areas in id order, which is also their code prefix order.
func (r *governanceAreaRepository) FindAll() ([]model.GovernanceArea, error) {
	var areas []model.GovernanceArea
	err := r.db.Order("id asc").Find(&areas).Error
	return areas, err
}

func (r *governanceAreaRepository) FindByID(id uint) (*model.GovernanceArea, error) {
	var area model.GovernanceArea
	if err := r.db.First(&area, id).Error; err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *governanceAreaRepository) FindByCode(code string) (*model.GovernanceArea, error) {
	var area model.GovernanceArea
	if err := r.db.Where("code = ?", code).First(&area).Error; err != nil {
		return nil, err
	}
	return &area, nil
}

func (r *governanceAreaRepository) Update(area *model.GovernanceArea) error {
	return r.db.Save(area).Error
}

func (r *governanceAreaRepository) Delete(id uint) error {
	return r.db.Delete(&model.GovernanceArea{}, id).Error
}
