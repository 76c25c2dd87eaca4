package domain

import (
	"context"

	"gorm.io/gorm"
)

// MemoryRecord 历史评估记忆，只追加，创建后不再变更。
// transaction_id 上的唯一索引保证同一交易重复处理不会产生重复记录。
type MemoryRecord struct {
	gorm.Model
	// RecordID 记录 ID
	RecordID string `gorm:"column:record_id;type:varchar(64);uniqueIndex;not null" json:"record_id"`
	// CustomerID 客户 ID
	CustomerID string `gorm:"column:customer_id;type:varchar(32);index;not null" json:"customer_id"`
	// TransactionID 交易 ID，幂等约束所在
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// Signature 交易签名键
	Signature string `gorm:"column:signature;type:varchar(64);index;not null" json:"signature"`
	// RiskScore 当次评估得分
	RiskScore int `gorm:"column:risk_score;not null" json:"risk_score"`
	// RiskBand 当次评估风险等级
	RiskBand RiskBand `gorm:"column:risk_band;type:varchar(10);not null" json:"risk_band"`
	// Summary 摘要文本
	Summary string `gorm:"column:summary;type:text" json:"summary"`
}

// TableName 表名
func (MemoryRecord) TableName() string { return "memory_records" }

// HistoricalContext 按相关性降序排列的历史记忆，空列表表示冷启动，属正常状态
type HistoricalContext struct {
	// Records 召回的历史记录，最相关的在前
	Records []MemoryRecord `json:"records"`
}

// Empty 是否无任何召回结果
func (h HistoricalContext) Empty() bool { return len(h.Records) == 0 }

// HighBandMatches 统计与给定签名相似且历史等级为 HIGH 的记录数
func (h HistoricalContext) HighBandMatches(sig TransactionSignature) int {
	count := 0
	for _, rec := range h.Records {
		if rec.RiskBand != RiskBandHigh {
			continue
		}
		recSig, ok := ParseSignatureKey(rec.Signature)
		if !ok {
			continue
		}
		if SimilarSignatures(sig, recSig) {
			count++
		}
	}
	return count
}

// MemoryStore 历史记忆库。Recall 超时或后端不可用时由调用侧吸收为降级，
// 不会使流水线失败；Upsert 对 transaction_id 幂等。
type MemoryStore interface {
	// Recall 召回与客户/签名相关的至多 k 条历史记忆，按相关性降序
	Recall(ctx context.Context, customerID string, signature TransactionSignature, k int) (HistoricalContext, error)
	// Upsert 追加一条记忆，同一 transaction_id 重复写入不产生重复记录
	Upsert(ctx context.Context, record *MemoryRecord) error
}
