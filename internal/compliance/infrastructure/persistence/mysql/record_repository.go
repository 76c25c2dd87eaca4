// Package mysql 合规流水线的 GORM 持久化实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// GormRecordStore 客户与交易记录的只读访问实现
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore 构造函数
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

// GetTransaction 按交易 ID 读取交易
func (r *GormRecordStore) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetCustomer 按客户 ID 读取客户快照
func (r *GormRecordStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetRecentTransactions 读取客户在 before 之前 window 窗口内的交易，按时间倒序
func (r *GormRecordStore) GetRecentTransactions(ctx context.Context, customerID string, window time.Duration, before time.Time) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	cutoff := before.Add(-window)
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND occurred_at >= ? AND occurred_at <= ?", customerID, cutoff, before).
		Order("occurred_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
