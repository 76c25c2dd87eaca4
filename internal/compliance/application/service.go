package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// ComplianceService 合规服务门面，对外暴露评估入口与报告查询
type ComplianceService struct {
	pipeline *Pipeline
	reports  domain.ReportRepository
}

// NewComplianceService 构造函数
func NewComplianceService(pipeline *Pipeline, reports domain.ReportRepository) *ComplianceService {
	return &ComplianceService{
		pipeline: pipeline,
		reports:  reports,
	}
}

// Assess 对单笔交易执行合规评估，返回审计报告或致命错误
func (s *ComplianceService) Assess(ctx context.Context, transactionID string) (*domain.AuditReport, error) {
	result, err := s.pipeline.Run(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return result.Report, nil
}

// AssessDetailed 与 Assess 一致，但附带评估与分发明细
func (s *ComplianceService) AssessDetailed(ctx context.Context, transactionID string) (*PipelineResult, error) {
	return s.pipeline.Run(ctx, transactionID)
}

// BatchItem 批量评估中单笔交易的结果
type BatchItem struct {
	// TransactionID 交易 ID
	TransactionID string `json:"transaction_id"`
	// Report 审计报告，失败时为空
	Report *domain.AuditReport `json:"report,omitempty"`
	// Error 失败原因
	Error string `json:"error,omitempty"`
}

// AssessBatch 并发评估多笔交易，各运行相互独立，单笔失败不影响其他
func (s *ComplianceService) AssessBatch(ctx context.Context, transactionIDs []string, concurrency int) []BatchItem {
	if concurrency <= 0 {
		concurrency = 4
	}

	items := make([]BatchItem, len(transactionIDs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range transactionIDs {
		i, id := i, id
		g.Go(func() error {
			items[i].TransactionID = id
			report, err := s.Assess(ctx, id)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}
	g.Wait()
	return items
}

// GetReportsByTransaction 查询某笔交易的全部审计报告
func (s *ComplianceService) GetReportsByTransaction(ctx context.Context, transactionID string) ([]*domain.AuditReport, error) {
	return s.reports.FindByTransactionID(ctx, transactionID)
}

// ListReports 分页列出审计报告
func (s *ComplianceService) ListReports(ctx context.Context, limit, offset int) ([]*domain.AuditReport, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reports.List(ctx, limit, offset)
}
