// Package notifier 审计报告的下游通知器适配器
package notifier

import (
	"context"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/mq"
)

// alertPayload 通知消息体，HIGH 等级报告额外标记为欺诈告警
type alertPayload struct {
	ReportID                 string                  `json:"report_id"`
	TransactionID            string                  `json:"transaction_id"`
	ComplianceRating         domain.ComplianceRating `json:"compliance_rating"`
	RiskScore                int                     `json:"risk_score"`
	RiskBand                 domain.RiskBand         `json:"risk_band"`
	RequiredActions          []string                `json:"required_actions"`
	RegulatoryFilingRequired bool                    `json:"regulatory_filing_required"`
	FraudAlert               bool                    `json:"fraud_alert"`
}

func newAlertPayload(report *domain.AuditReport) alertPayload {
	return alertPayload{
		ReportID:                 report.ReportID,
		TransactionID:            report.TransactionID,
		ComplianceRating:         report.ComplianceRating,
		RiskScore:                report.RiskScore,
		RiskBand:                 report.RiskBand,
		RequiredActions:          report.RequiredActions,
		RegulatoryFilingRequired: report.RegulatoryFilingRequired,
		FraudAlert:               report.RiskBand == domain.RiskBandHigh,
	}
}

// KafkaNotifier 将审计报告投递到 Kafka 主题
type KafkaNotifier struct {
	name     string
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaNotifier 构造函数
func NewKafkaNotifier(name string, producer *mq.KafkaProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		name:     name,
		producer: producer,
		topic:    topic,
	}
}

// Name 通知器名称
func (n *KafkaNotifier) Name() string { return n.name }

// Notify 投递报告，消息键为交易 ID 以保证同一交易的分区有序
func (n *KafkaNotifier) Notify(ctx context.Context, report *domain.AuditReport) error {
	return n.producer.SendMessage(ctx, n.topic, report.TransactionID, newAlertPayload(report))
}
