package semantic

import (
	"context"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// NoopAnalyzer 空实现，未配置语义分析时使用
type NoopAnalyzer struct{}

// NewNoopAnalyzer 构造函数
func NewNoopAnalyzer() *NoopAnalyzer { return &NoopAnalyzer{} }

// Explain 始终返回空注解
func (a *NoopAnalyzer) Explain(ctx context.Context, c domain.NormalizedCase, assessment domain.RiskAssessment) (string, error) {
	return "", nil
}
