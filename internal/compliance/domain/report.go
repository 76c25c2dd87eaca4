package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// StringList 以 JSON 形式落库的字符串列表
type StringList []string

// Value 实现 driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// AuditReport 审计报告，流水线的终态产物。每次运行创建一次，落库后不再变更。
type AuditReport struct {
	gorm.Model
	// ReportID 报告 ID，时间戳前缀，可按字典序还原生成顺序
	ReportID string `gorm:"column:report_id;type:varchar(96);uniqueIndex;not null" json:"report_id"`
	// TransactionID 被评估交易 ID
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);index;not null" json:"transaction_id"`
	// ComplianceRating 合规评级
	ComplianceRating ComplianceRating `gorm:"column:compliance_rating;type:varchar(32);not null" json:"compliance_rating"`
	// RequiredActions 必需采取的行动，顺序固定
	RequiredActions StringList `gorm:"column:required_actions;type:text;not null" json:"required_actions"`
	// RegulatoryFilingRequired 是否需要监管申报
	RegulatoryFilingRequired bool `gorm:"column:regulatory_filing_required;not null" json:"regulatory_filing_required"`
	// RiskScore 评估得分
	RiskScore int `gorm:"column:risk_score;not null" json:"risk_score"`
	// RiskBand 风险等级
	RiskBand RiskBand `gorm:"column:risk_band;type:varchar(10);not null" json:"risk_band"`
	// Factors 评估因子（JSON），审计还原用
	Factors string `gorm:"column:factors;type:text;not null" json:"factors"`
	// Narrative 语义注解
	Narrative string `gorm:"column:narrative;type:text" json:"narrative,omitempty"`
	// Degradations 处理过程中吸收的降级标记
	Degradations StringList `gorm:"column:degradations;type:text" json:"degradations,omitempty"`
	// RuleVersion 使用的规则表版本
	RuleVersion string `gorm:"column:rule_version;type:varchar(16);not null" json:"rule_version"`
}

// TableName 表名
func (AuditReport) TableName() string { return "audit_reports" }
