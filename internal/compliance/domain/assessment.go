package domain

import "time"

// 规则因子名称
const (
	FactorHighRiskDestination = "high_risk_destination"
	FactorHighAmount          = "high_amount"
	FactorYoungAccount        = "young_account"
	FactorLowDeviceTrust      = "low_device_trust"
	FactorPastFraud           = "past_fraud"
	FactorStructuring         = "structuring"
	FactorHistoricalPattern   = "historical_pattern"
)

// Factor 单个风险因子及其得分贡献
type Factor struct {
	// Name 因子名称
	Name string `json:"name"`
	// Contribution 对总分的贡献
	Contribution int `json:"contribution"`
	// Detail 触发说明
	Detail string `json:"detail"`
}

// HistoricalInfluence 历史记忆对本次评估的影响，随评估持久化，
// 审计时无需访问记忆库即可还原
type HistoricalInfluence struct {
	// MatchedRecords 命中的相似历史记录数
	MatchedRecords int `json:"matched_records"`
	// Adjustment 实际施加的得分调整
	Adjustment int `json:"adjustment"`
}

// RiskAssessment 一次评估的完整结果。Score 始终可由 Factors 求和封顶还原，
// Narrative 仅作注解，不参与任何数值计算。
type RiskAssessment struct {
	// TransactionID 被评估交易 ID
	TransactionID string `json:"transaction_id"`
	// Score 风险得分 [0,100]
	Score int `json:"score"`
	// Band 风险等级
	Band RiskBand `json:"band"`
	// Factors 命中的风险因子，顺序稳定
	Factors []Factor `json:"factors"`
	// Narrative 语义分析给出的可选注解
	Narrative string `json:"narrative,omitempty"`
	// HistoricalInfluence 历史影响
	HistoricalInfluence HistoricalInfluence `json:"historical_influence"`
	// Signature 本次交易的签名
	Signature TransactionSignature `json:"signature"`
	// Degradations 被吸收的依赖降级标记
	Degradations []string `json:"degradations,omitempty"`
	// RuleVersion 使用的规则表版本
	RuleVersion string `json:"rule_version"`
	// AssessedAt 评估时间
	AssessedAt time.Time `json:"assessed_at"`
}

// ReplayScore 由因子贡献重放得分：求和后封顶于 [0,100]
func (a RiskAssessment) ReplayScore() int {
	sum := 0
	for _, f := range a.Factors {
		sum += f.Contribution
	}
	if sum > 100 {
		return 100
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// Degraded 是否发生过依赖降级
func (a RiskAssessment) Degraded() bool { return len(a.Degradations) > 0 }

// MarkDegraded 追加一个降级标记，重复标记只记一次
func (a *RiskAssessment) MarkDegraded(dependency string) {
	for _, d := range a.Degradations {
		if d == dependency {
			return
		}
	}
	a.Degradations = append(a.Degradations, dependency)
}
