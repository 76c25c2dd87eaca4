package domain

import "errors"

var (
	// ErrTransactionNotFound 交易记录不存在，致命错误，向调用方透出
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrCustomerNotFound 客户记录不存在，致命错误，向调用方透出
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInvariantViolation 确定性报告生成失败，属程序缺陷
	ErrInvariantViolation = errors.New("invariant violation")
)

// IsNotFound 判断错误是否属于记录缺失类
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) || errors.Is(err, ErrCustomerNotFound)
}

// 降级标记：非致命的依赖故障被吸收后记录在评估结果中
const (
	DegradationMemoryRecall    = "memory_recall"
	DegradationMemoryUpsert    = "memory_upsert"
	DegradationSemanticExplain = "semantic_explain"
)
