package repository

import (
	"errors"

	"nanobanana_backend/internal/domain/catalog/model"

	"gorm.io/gorm"
)

// ErrPackageNotFound 套餐不存在
var ErrPackageNotFound = errors.New("package not found")

// PackageRepository 套餐目录仓库
type PackageRepository interface {
	Create(pkg *model.Package) error
	GetByID(id string) (*model.Package, error)
	GetActive() ([]model.Package, error)
	ExistsByName(name string, excludeID string) (bool, error)
	Update(pkg *model.Package) error
	Delete(tx *gorm.DB, id string) error
}

type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository 创建套餐仓库
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) Create(pkg *model.Package) error {
	return r.db.Create(pkg).Error
}

func (r *packageRepository) GetByID(id string) (*model.Package, error) {
	var pkg model.Package
	if err := r.db.Where("id = ?", id).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *packageRepository) GetActive() ([]model.Package, error) {
	var packages []model.Package
	err := r.db.Where("is_active = ?", true).
		Order("sort_order ASC, price ASC").
		Find(&packages).Error
	return packages, err
}

func (r *packageRepository) ExistsByName(name string, excludeID string) (bool, error) {
	query := r.db.Model(&model.Package{}).Where("name = ?", name)
	if excludeID != "" {
		query = query.Where("id != ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *packageRepository) Update(pkg *model.Package) error {
	return r.db.Save(pkg).Error
}

func (r *packageRepository) Delete(tx *gorm.DB, id string) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.Unscoped().Where("id = ?", id).Delete(&model.Package{}).Error
}
