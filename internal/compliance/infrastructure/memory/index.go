// Package memory 历史记忆库的进程内索引实现，
// 作为无外部依赖的组合期可插拔后端
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// Index 进程内记忆索引。记录只追加，transaction_id 去重保证幂等。
type Index struct {
	mu      sync.RWMutex
	records []domain.MemoryRecord
	byTxID  map[string]struct{}
}

// NewIndex 创建空索引
func NewIndex() *Index {
	return &Index{
		byTxID: make(map[string]struct{}),
	}
}

// Recall 召回相关历史记忆：同客户记录优先，其次按签名距离升序，
// 距离相同按创建时间倒序
func (idx *Index) Recall(ctx context.Context, customerID string, signature domain.TransactionSignature, k int) (domain.HistoricalContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoricalContext{}, err
	}
	if k <= 0 {
		k = 5
	}

	idx.mu.RLock()
	candidates := make([]domain.MemoryRecord, len(idx.records))
	copy(candidates, idx.records)
	idx.mu.RUnlock()

	candidates = domain.RankRecords(candidates, customerID, signature)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return domain.HistoricalContext{Records: candidates}, nil
}

// Upsert 追加一条记忆，同一 transaction_id 重复写入直接忽略
func (idx *Index) Upsert(ctx context.Context, record *domain.MemoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.byTxID[record.TransactionID]; exists {
		return nil
	}
	stored := *record
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	idx.records = append(idx.records, stored)
	idx.byTxID[record.TransactionID] = struct{}{}
	return nil
}

// Len 当前记录数
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}
