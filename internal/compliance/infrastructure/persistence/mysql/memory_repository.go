package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/db"
)

// 单次召回扫描的候选上限
const recallCandidateLimit = 256

// GormMemoryStore 历史记忆库的 MySQL 实现。候选集取同客户记录与
// 同签名的跨客户记录，排序在内存中完成。
type GormMemoryStore struct {
	db *gorm.DB
}

// NewGormMemoryStore 构造函数
func NewGormMemoryStore(db *gorm.DB) *GormMemoryStore {
	return &GormMemoryStore{db: db}
}

// Recall 召回相关历史记忆：同客户记录优先于跨客户记录，
// 其次按签名距离升序，距离相同按创建时间倒序
func (s *GormMemoryStore) Recall(ctx context.Context, customerID string, signature domain.TransactionSignature, k int) (domain.HistoricalContext, error) {
	if k <= 0 {
		k = 5
	}

	var candidates []domain.MemoryRecord
	err := s.db.WithContext(ctx).
		Where("customer_id = ? OR signature = ?", customerID, signature.Key()).
		Order("created_at DESC").
		Limit(recallCandidateLimit).
		Find(&candidates).Error
	if err != nil {
		return domain.HistoricalContext{}, err
	}

	ranked := domain.RankRecords(candidates, customerID, signature)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return domain.HistoricalContext{Records: ranked}, nil
}

// Upsert 追加一条记忆，transaction_id 冲突时忽略（幂等）
func (s *GormMemoryStore) Upsert(ctx context.Context, record *domain.MemoryRecord) error {
	return db.InsertIgnoreConflict(ctx, s.db, record, "transaction_id")
}
