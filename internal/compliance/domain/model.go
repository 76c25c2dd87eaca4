// Package domain 交易合规流水线的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RiskBand 风险等级
type RiskBand string

const (
	RiskBandLow    RiskBand = "LOW"
	RiskBandMedium RiskBand = "MEDIUM"
	RiskBandHigh   RiskBand = "HIGH"
)

// BandFromScore 将数值得分映射为风险等级，映射对 [0,100] 全覆盖
func BandFromScore(score int) RiskBand {
	switch {
	case score >= 75:
		return RiskBandHigh
	case score >= 50:
		return RiskBandMedium
	default:
		return RiskBandLow
	}
}

// ComplianceRating 合规评级
type ComplianceRating string

const (
	RatingCompliant             ComplianceRating = "COMPLIANT"
	RatingConditionalCompliance ComplianceRating = "CONDITIONAL_COMPLIANCE"
	RatingNonCompliant          ComplianceRating = "NON_COMPLIANT"
)

// RatingFromBand 合规评级由风险等级派生，与数值得分解耦
func RatingFromBand(band RiskBand) ComplianceRating {
	switch band {
	case RiskBandHigh:
		return RatingNonCompliant
	case RiskBandMedium:
		return RatingConditionalCompliance
	default:
		return RatingCompliant
	}
}

// Customer 客户实体，评估时的不可变快照，由记录库负责维护
type Customer struct {
	gorm.Model
	// CustomerID 客户 ID
	CustomerID string `gorm:"column:customer_id;type:varchar(32);uniqueIndex;not null" json:"customer_id"`
	// CountryCode 客户所在国家代码
	CountryCode string `gorm:"column:country_code;type:varchar(2);not null" json:"country_code"`
	// AccountAgeDays 账户年龄（天）
	AccountAgeDays int `gorm:"column:account_age_days;not null" json:"account_age_days"`
	// DeviceTrustScore 设备信任度 [0.0, 1.0]
	DeviceTrustScore float64 `gorm:"column:device_trust_score;not null" json:"device_trust_score"`
	// HasPastFraudFlag 是否存在历史欺诈标记
	HasPastFraudFlag bool `gorm:"column:has_past_fraud_flag;not null" json:"has_past_fraud_flag"`
}

// TableName 表名
func (Customer) TableName() string { return "customers" }

// Transaction 交易实体，不可变，引用且仅引用一个客户
type Transaction struct {
	gorm.Model
	// TransactionID 交易 ID
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// CustomerID 客户 ID
	CustomerID string `gorm:"column:customer_id;type:varchar(32);index;not null" json:"customer_id"`
	// Amount 交易金额（原始币种）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(20,4);not null" json:"amount"`
	// Currency 币种代码
	Currency string `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	// DestinationCountry 目的国家代码
	DestinationCountry string `gorm:"column:destination_country;type:varchar(2);not null" json:"destination_country"`
	// OccurredAt 交易发生时间
	OccurredAt time.Time `gorm:"column:occurred_at;index;not null" json:"occurred_at"`
}

// TableName 表名
func (Transaction) TableName() string { return "transactions" }

// NormalizedCase 单次流水线运行的规范化输入：交易 + 客户快照 + 近期交易窗口。
// 每次运行临时构建，不落库。
type NormalizedCase struct {
	// Transaction 当前待评估交易
	Transaction Transaction `json:"transaction"`
	// Customer 交易所属客户的快照
	Customer Customer `json:"customer"`
	// RecentTransactions 同一客户在检测窗口内的近期交易，按时间倒序，不含当前交易
	RecentTransactions []Transaction `json:"recent_transactions"`
	// SanctionsFlagged 外部制裁信息源对目的地的布尔命中
	SanctionsFlagged bool `json:"sanctions_flagged"`
}
