package domain

import (
	"context"
	"time"
)

// RecordStore 客户与交易记录的只读访问接口。
// 记录缺失返回 ErrTransactionNotFound / ErrCustomerNotFound。
type RecordStore interface {
	// GetTransaction 按交易 ID 读取交易
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	// GetCustomer 按客户 ID 读取客户快照
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	// GetRecentTransactions 读取客户在 before 之前 window 窗口内的交易，按时间倒序
	GetRecentTransactions(ctx context.Context, customerID string, window time.Duration, before time.Time) ([]Transaction, error)
}

// ReportRepository 审计报告的只追加存储
type ReportRepository interface {
	// Save 落库一份新报告
	Save(ctx context.Context, report *AuditReport) error
	// FindByTransactionID 按交易 ID 查询报告，按创建时间倒序
	FindByTransactionID(ctx context.Context, transactionID string) ([]*AuditReport, error)
	// List 分页列出报告，按创建时间倒序
	List(ctx context.Context, limit, offset int) ([]*AuditReport, int64, error)
}

// Notifier 审计报告的下游通知器，分发失败只记录，不影响流水线结果
type Notifier interface {
	// Name 通知器名称，用于分发记录
	Name() string
	// Notify 投递报告
	Notify(ctx context.Context, report *AuditReport) error
}

// SemanticAnalyzer 语义分析能力。Explain 仅产出注解文本，
// 失败或超时由调用侧吸收为降级，绝不影响数值得分。
type SemanticAnalyzer interface {
	// Explain 为部分完成的评估生成可读解释
	Explain(ctx context.Context, c NormalizedCase, assessment RiskAssessment) (string, error)
}

// SanctionsFeed 外部制裁信息源，按目的国返回布尔命中
type SanctionsFeed interface {
	// Flagged 目的国是否被制裁信息源标记
	Flagged(ctx context.Context, countryCode string) bool
}
