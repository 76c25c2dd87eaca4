// Package application 合规流水线应用服务：编排、报告生成与对外门面
package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

// ReportGenerator 审计报告生成器。Generate 是评估结果的纯函数：
// 评级由等级派生，行动表按等级固定。
type ReportGenerator struct {
	actions map[domain.RiskBand]domain.StringList
}

// NewReportGenerator 创建生成器，行动表按等级固定
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{
		actions: map[domain.RiskBand]domain.StringList{
			domain.RiskBandHigh: {
				"freeze pending investigation",
				"enhanced due diligence",
				"file suspicious activity report",
			},
			domain.RiskBandMedium: {
				"enhanced monitoring",
				"internal risk documentation",
			},
			domain.RiskBandLow: {
				"standard monitoring",
			},
		},
	}
}

// Generate 将风险评估转换为正式审计报告。
// 评估结果必须可由因子重放，否则视为程序不变量被破坏。
func (g *ReportGenerator) Generate(a domain.RiskAssessment) (*domain.AuditReport, error) {
	if a.TransactionID == "" {
		return nil, fmt.Errorf("%w: assessment has no transaction id", domain.ErrInvariantViolation)
	}
	if replay := a.ReplayScore(); replay != a.Score {
		return nil, fmt.Errorf("%w: score %d for %s is not reproducible from factors (replay %d)",
			domain.ErrInvariantViolation, a.Score, a.TransactionID, replay)
	}
	if domain.BandFromScore(a.Score) != a.Band {
		return nil, fmt.Errorf("%w: band %s for %s does not match score %d",
			domain.ErrInvariantViolation, a.Band, a.TransactionID, a.Score)
	}

	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode factors for %s: %v",
			domain.ErrInvariantViolation, a.TransactionID, err)
	}

	now := time.Now().UTC()
	return &domain.AuditReport{
		ReportID:         newReportID(now, a.TransactionID),
		TransactionID:    a.TransactionID,
		ComplianceRating: domain.RatingFromBand(a.Band),
		RequiredActions:  g.actions[a.Band],
		RegulatoryFilingRequired: a.Band == domain.RiskBandHigh ||
			(a.Band == domain.RiskBandMedium && a.HistoricalInfluence.Adjustment > 0),
		RiskScore:    a.Score,
		RiskBand:     a.Band,
		Factors:      string(factors),
		Narrative:    a.Narrative,
		Degradations: domain.StringList(a.Degradations),
		RuleVersion:  a.RuleVersion,
	}, nil
}

// newReportID 生成时间戳前缀的报告 ID，可按字典序还原生成顺序
func newReportID(t time.Time, transactionID string) string {
	return fmt.Sprintf("AUD%s%09d-%s", t.Format("20060102150405"), t.Nanosecond(), transactionID)
}
