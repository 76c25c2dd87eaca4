package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// GormReportRepository 审计报告的只追加存储实现
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository 构造函数
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// Save 落库一份新报告
func (r *GormReportRepository) Save(ctx context.Context, report *domain.AuditReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// FindByTransactionID 按交易 ID 查询报告，按创建时间倒序
func (r *GormReportRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.AuditReport, error) {
	var reports []*domain.AuditReport
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Find(&reports).Error
	return reports, err
}

// List 分页列出报告，按创建时间倒序
func (r *GormReportRepository) List(ctx context.Context, limit, offset int) ([]*domain.AuditReport, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.AuditReport{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []*domain.AuditReport
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reports).Error
	return reports, total, err
}
