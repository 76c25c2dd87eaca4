package notifier

import (
	"context"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
)

// LogNotifier 仅记录日志的通知器，开发与联调环境使用
type LogNotifier struct {
	name string
}

// NewLogNotifier 构造函数
func NewLogNotifier(name string) *LogNotifier {
	return &LogNotifier{name: name}
}

// Name 通知器名称
func (n *LogNotifier) Name() string { return n.name }

// Notify 输出报告摘要日志
func (n *LogNotifier) Notify(ctx context.Context, report *domain.AuditReport) error {
	logger.Info(ctx, "audit report dispatched",
		"notifier", n.name,
		"report_id", report.ReportID,
		"transaction_id", report.TransactionID,
		"compliance_rating", report.ComplianceRating,
		"risk_band", report.RiskBand,
		"regulatory_filing_required", report.RegulatoryFilingRequired,
	)
	return nil
}
