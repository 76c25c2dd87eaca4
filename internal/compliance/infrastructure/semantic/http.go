// Package semantic 语义分析能力的适配器实现。
// 评分与报告核心只依赖 domain.SemanticAnalyzer 接口，不感知具体供应商。
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
)

// HTTPAnalyzer 通过 HTTP 调用外部推理服务生成评估注解。
// 调用失败或超时由流水线吸收为降级，不影响数值得分。
type HTTPAnalyzer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPAnalyzer 构造函数
func NewHTTPAnalyzer(endpoint string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPAnalyzer{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// explainRequest 请求体：案件摘要与部分完成的评估
type explainRequest struct {
	TransactionID      string          `json:"transaction_id"`
	Amount             string          `json:"amount"`
	Currency           string          `json:"currency"`
	DestinationCountry string          `json:"destination_country"`
	Score              int             `json:"score"`
	Band               domain.RiskBand `json:"band"`
	Factors            []domain.Factor `json:"factors"`
}

// explainResponse 响应体
type explainResponse struct {
	Narrative string `json:"narrative"`
}

// Explain 请求外部服务生成可读解释
func (a *HTTPAnalyzer) Explain(ctx context.Context, c domain.NormalizedCase, assessment domain.RiskAssessment) (string, error) {
	payload := explainRequest{
		TransactionID:      c.Transaction.TransactionID,
		Amount:             c.Transaction.Amount.StringFixed(2),
		Currency:           c.Transaction.Currency,
		DestinationCountry: c.Transaction.DestinationCountry,
		Score:              assessment.Score,
		Band:               assessment.Band,
		Factors:            assessment.Factors,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal explain request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("semantic analyzer returned status %d", resp.StatusCode)
	}

	var decoded explainResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode explain response: %w", err)
	}

	logger.Debug(ctx, "semantic narrative generated",
		"transaction_id", c.Transaction.TransactionID,
		"narrative_len", len(decoded.Narrative),
	)
	return decoded.Narrative, nil
}
