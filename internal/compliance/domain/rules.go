package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// RuleConfig 风险规则表。所有权重与阈值均为外部可调的配置常量，
// 构造后不再变更，同一规则表下的评分完全确定。
type RuleConfig struct {
	// Version 规则表版本，随评估结果持久化
	Version string
	// CountryWeights 高风险目的国权重表
	CountryWeights map[string]int
	// DefaultCountryWeight 制裁名单命中但未列出目的国时的默认权重
	DefaultCountryWeight int
	// HighAmountThresholdUSD 大额交易申报阈值（USD 等值）
	HighAmountThresholdUSD decimal.Decimal
	// HighAmountWeight 大额交易权重
	HighAmountWeight int
	// YoungAccountAgeDays 新账户天数阈值
	YoungAccountAgeDays int
	// YoungAccountWeight 新账户权重
	YoungAccountWeight int
	// DeviceTrustThreshold 设备信任度阈值
	DeviceTrustThreshold float64
	// LowDeviceTrustWeight 低设备信任度权重
	LowDeviceTrustWeight int
	// PastFraudWeight 历史欺诈标记权重
	PastFraudWeight int
	// StructuringCount 拆分交易笔数阈值
	StructuringCount int
	// StructuringWindow 拆分交易时间窗口
	StructuringWindow time.Duration
	// StructuringMargin 拆分交易距申报阈值的比例边界
	StructuringMargin decimal.Decimal
	// StructuringWeight 拆分交易权重
	StructuringWeight int
	// HistoryEscalationWeight 历史升级权重
	HistoryEscalationWeight int
	// HistoryShareCap 历史贡献占最终得分的比例上限
	HistoryShareCap float64
	// USDRates 各币种兑 USD 汇率表
	USDRates map[string]decimal.Decimal
}

// DefaultRuleConfig 返回默认规则表
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Version: "v1",
		CountryWeights: map[string]int{
			"NG": 75,
			"IR": 85,
			"RU": 80,
			"KP": 85,
		},
		DefaultCountryWeight:    75,
		HighAmountThresholdUSD:  decimal.NewFromInt(10000),
		HighAmountWeight:        20,
		YoungAccountAgeDays:     30,
		YoungAccountWeight:      15,
		DeviceTrustThreshold:    0.5,
		LowDeviceTrustWeight:    15,
		PastFraudWeight:         20,
		StructuringCount:        3,
		StructuringWindow:       24 * time.Hour,
		StructuringMargin:       decimal.NewFromFloat(0.02),
		StructuringWeight:       30,
		HistoryEscalationWeight: 10,
		HistoryShareCap:         0.15,
		USDRates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"EUR": decimal.NewFromFloat(1.08),
			"GBP": decimal.NewFromFloat(1.27),
		},
	}
}

// RiskEngine 确定性规则评估器。Score 是其输入加注入规则表的纯函数，
// 相同输入必然得到相同的得分与因子序列。
type RiskEngine struct {
	cfg RuleConfig
}

// NewRiskEngine 创建评估器
func NewRiskEngine(cfg RuleConfig) *RiskEngine {
	return &RiskEngine{cfg: cfg}
}

// Config 返回注入的规则表
func (e *RiskEngine) Config() RuleConfig { return e.cfg }

// USDAmount 将金额换算为 USD 等值，未知币种按 1:1 处理
func (e *RiskEngine) USDAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	if rate, ok := e.cfg.USDRates[currency]; ok {
		return amount.Mul(rate)
	}
	return amount
}

// Signature 派生交易签名。金额分桶宽度取申报阈值的四分之一，
// 保证阈值附近的交易落入相邻分桶。
func (e *RiskEngine) Signature(c NormalizedCase) TransactionSignature {
	usd := e.USDAmount(c.Transaction.Amount, c.Transaction.Currency)
	width := e.cfg.HighAmountThresholdUSD.Div(decimal.NewFromInt(4))
	bucket := 0
	if width.IsPositive() {
		bucket = int(usd.Div(width).IntPart())
	}
	if bucket > 999 {
		bucket = 999
	}
	return TransactionSignature{
		AmountBucket: bucket,
		Destination:  c.Transaction.DestinationCountry,
		Risky:        c.Customer.HasPastFraudFlag || c.Customer.DeviceTrustScore < e.cfg.DeviceTrustThreshold,
	}
}

// Score 对规范化案件执行规则评估，得分为各因子贡献之和，封顶 100。
// history 为空（冷启动或召回降级）时历史影响为零。
func (e *RiskEngine) Score(c NormalizedCase, history HistoricalContext) RiskAssessment {
	factors := make([]Factor, 0, 8)
	usd := e.USDAmount(c.Transaction.Amount, c.Transaction.Currency)
	dest := c.Transaction.DestinationCountry

	if weight, ok := e.cfg.CountryWeights[dest]; ok {
		factors = append(factors, Factor{
			Name:         FactorHighRiskDestination,
			Contribution: weight,
			Detail:       fmt.Sprintf("destination %s is on the high-risk country list", dest),
		})
	} else if c.SanctionsFlagged {
		factors = append(factors, Factor{
			Name:         FactorHighRiskDestination,
			Contribution: e.cfg.DefaultCountryWeight,
			Detail:       fmt.Sprintf("destination %s flagged by the sanctions feed", dest),
		})
	}

	if usd.GreaterThan(e.cfg.HighAmountThresholdUSD) {
		factors = append(factors, Factor{
			Name:         FactorHighAmount,
			Contribution: e.cfg.HighAmountWeight,
			Detail:       fmt.Sprintf("amount %s USD exceeds the %s USD reporting threshold", usd.StringFixed(2), e.cfg.HighAmountThresholdUSD.StringFixed(0)),
		})
	}

	if c.Customer.AccountAgeDays < e.cfg.YoungAccountAgeDays {
		factors = append(factors, Factor{
			Name:         FactorYoungAccount,
			Contribution: e.cfg.YoungAccountWeight,
			Detail:       fmt.Sprintf("account age %d days is below %d days", c.Customer.AccountAgeDays, e.cfg.YoungAccountAgeDays),
		})
	}

	if c.Customer.DeviceTrustScore < e.cfg.DeviceTrustThreshold {
		factors = append(factors, Factor{
			Name:         FactorLowDeviceTrust,
			Contribution: e.cfg.LowDeviceTrustWeight,
			Detail:       fmt.Sprintf("device trust score %.2f is below %.2f", c.Customer.DeviceTrustScore, e.cfg.DeviceTrustThreshold),
		})
	}

	if c.Customer.HasPastFraudFlag {
		factors = append(factors, Factor{
			Name:         FactorPastFraud,
			Contribution: e.cfg.PastFraudWeight,
			Detail:       "customer has a past fraud flag",
		})
	}

	if count, triggered := e.detectStructuring(c); triggered {
		factors = append(factors, Factor{
			Name:         FactorStructuring,
			Contribution: e.cfg.StructuringWeight,
			Detail:       fmt.Sprintf("%d transactions just below the reporting threshold within %s", count, e.cfg.StructuringWindow),
		})
	}

	base := 0
	for _, f := range factors {
		base += f.Contribution
	}
	if base > 100 {
		base = 100
	}

	sig := e.Signature(c)
	influence := HistoricalInfluence{}
	if matched := history.HighBandMatches(sig); matched > 0 {
		adj := e.escalation(base)
		influence = HistoricalInfluence{MatchedRecords: matched, Adjustment: adj}
		if adj > 0 {
			factors = append(factors, Factor{
				Name:         FactorHistoricalPattern,
				Contribution: adj,
				Detail:       fmt.Sprintf("%d prior HIGH-risk assessments with a similar signature", matched),
			})
		}
	}

	score := base + influence.Adjustment
	if score > 100 {
		score = 100
	}

	return RiskAssessment{
		TransactionID:       c.Transaction.TransactionID,
		Score:               score,
		Band:                BandFromScore(score),
		Factors:             factors,
		HistoricalInfluence: influence,
		Signature:           sig,
		RuleVersion:         e.cfg.Version,
		AssessedAt:          time.Now().UTC(),
	}
}

// escalation 计算历史升级贡献：从配置权重出发，收敛至不超过最终得分
// HistoryShareCap 比例的最大值
func (e *RiskEngine) escalation(base int) int {
	adj := e.cfg.HistoryEscalationWeight
	for adj > 0 {
		final := base + adj
		if final > 100 {
			final = 100
		}
		limit := int(math.Floor(e.cfg.HistoryShareCap * float64(final)))
		if adj <= limit {
			break
		}
		adj = limit
	}
	if base+adj > 100 {
		adj = 100 - base
	}
	return adj
}

// detectStructuring 拆分交易检测：在时间窗口内统计略低于申报阈值的交易笔数
// （含当前交易），达到配置笔数即触发
func (e *RiskEngine) detectStructuring(c NormalizedCase) (int, bool) {
	threshold := e.cfg.HighAmountThresholdUSD
	lower := threshold.Mul(decimal.NewFromInt(1).Sub(e.cfg.StructuringMargin))
	cutoff := c.Transaction.OccurredAt.Add(-e.cfg.StructuringWindow)

	count := 0
	if e.nearThreshold(c.Transaction, lower, threshold) {
		count++
	}
	for _, tx := range c.RecentTransactions {
		if tx.TransactionID == c.Transaction.TransactionID {
			continue
		}
		if tx.OccurredAt.Before(cutoff) || tx.OccurredAt.After(c.Transaction.OccurredAt) {
			continue
		}
		if e.nearThreshold(tx, lower, threshold) {
			count++
		}
	}
	return count, count >= e.cfg.StructuringCount
}

// nearThreshold 金额是否落在 [threshold*(1-margin), threshold) 区间
func (e *RiskEngine) nearThreshold(tx Transaction, lower, threshold decimal.Decimal) bool {
	usd := e.USDAmount(tx.Amount, tx.Currency)
	return usd.GreaterThanOrEqual(lower) && usd.LessThan(threshold)
}
