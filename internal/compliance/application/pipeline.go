package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
	"github.com/wyfcoding/compliancepipeline/pkg/metrics"
)

// PipelineState 流水线状态
type PipelineState string

const (
	StateStarted    PipelineState = "STARTED"
	StateNormalized PipelineState = "NORMALIZED"
	StateScored     PipelineState = "SCORED"
	StateReported   PipelineState = "REPORTED"
	StateDispatched PipelineState = "DISPATCHED"
	StateDone       PipelineState = "DONE"
	StateFailed     PipelineState = "FAILED"
)

// DispatchResult 单个通知器的分发结果
type DispatchResult struct {
	// Notifier 通知器名称
	Notifier string `json:"notifier"`
	// Success 是否投递成功
	Success bool `json:"success"`
	// Error 失败原因
	Error string `json:"error,omitempty"`
	// Duration 投递耗时
	Duration time.Duration `json:"duration"`
}

// PipelineResult 一次流水线运行的完整结果
type PipelineResult struct {
	// State 终态
	State PipelineState `json:"state"`
	// Assessment 风险评估结果
	Assessment domain.RiskAssessment `json:"assessment"`
	// Report 审计报告，运行成功时非空
	Report *domain.AuditReport `json:"report,omitempty"`
	// Dispatches 各通知器的分发记录
	Dispatches []DispatchResult `json:"dispatches,omitempty"`
}

// PipelineConfig 编排配置
type PipelineConfig struct {
	// RecallK 历史召回条数上限
	RecallK int
	// RecallTimeout 历史召回超时
	RecallTimeout time.Duration
	// ExplainTimeout 语义分析超时
	ExplainTimeout time.Duration
}

// Pipeline 流水线编排器。前四个阶段严格串行，每个阶段的输出是下一阶段的
// 唯一输入；分发阶段对各通知器并发扇出，全部完成后进入 DONE。
type Pipeline struct {
	records   domain.RecordStore
	memory    domain.MemoryStore
	engine    *domain.RiskEngine
	generator *ReportGenerator
	reports   domain.ReportRepository
	analyzer  domain.SemanticAnalyzer
	sanctions domain.SanctionsFeed
	notifiers []domain.Notifier
	cfg       PipelineConfig
	metrics   *metrics.Metrics
}

// NewPipeline 创建编排器。analyzer、sanctions 与 metrics 允许为 nil。
func NewPipeline(
	records domain.RecordStore,
	memory domain.MemoryStore,
	engine *domain.RiskEngine,
	generator *ReportGenerator,
	reports domain.ReportRepository,
	analyzer domain.SemanticAnalyzer,
	sanctions domain.SanctionsFeed,
	notifiers []domain.Notifier,
	cfg PipelineConfig,
	m *metrics.Metrics,
) *Pipeline {
	if cfg.RecallK <= 0 {
		cfg.RecallK = 5
	}
	if cfg.RecallTimeout <= 0 {
		cfg.RecallTimeout = 500 * time.Millisecond
	}
	if cfg.ExplainTimeout <= 0 {
		cfg.ExplainTimeout = 2 * time.Second
	}
	return &Pipeline{
		records:   records,
		memory:    memory,
		engine:    engine,
		generator: generator,
		reports:   reports,
		analyzer:  analyzer,
		sanctions: sanctions,
		notifiers: notifiers,
		cfg:       cfg,
		metrics:   m,
	}
}

// Run 驱动一次完整的流水线运行。
// 返回审计报告或致命错误，绝不返回不完整的报告。
func (p *Pipeline) Run(ctx context.Context, transactionID string) (*PipelineResult, error) {
	result := &PipelineResult{State: StateStarted}
	logger.Info(ctx, "pipeline started", "transaction_id", transactionID)

	// NORMALIZED：记录缺失为致命错误
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, result, "normalize", err)
	}
	c, err := p.normalize(ctx, transactionID)
	if err != nil {
		return p.fail(ctx, result, "normalize", err)
	}
	result.State = StateNormalized

	// SCORED：召回与语义分析的故障在阶段内吸收为降级
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, result, "score", err)
	}
	result.Assessment = p.score(ctx, c)
	result.State = StateScored

	// REPORTED：生成为纯函数，失败即程序缺陷
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, result, "report", err)
	}
	report, err := p.generator.Generate(result.Assessment)
	if err != nil {
		return p.fail(ctx, result, "report", err)
	}
	if err := p.reports.Save(ctx, report); err != nil {
		return p.fail(ctx, result, "report", fmt.Errorf("persist audit report: %w", err))
	}
	result.Report = report
	result.State = StateReported

	// 报告已落库，之后的取消不再回滚已有进度
	tail := context.WithoutCancel(ctx)
	p.remember(tail, c, result.Assessment)

	// DISPATCHED：各通知器独立并发，失败仅记录
	result.Dispatches = p.dispatch(tail, report)
	result.State = StateDispatched

	if p.metrics != nil {
		p.metrics.AssessmentsTotal.WithLabelValues(string(result.Assessment.Band)).Inc()
	}
	result.State = StateDone
	logger.Info(ctx, "pipeline completed",
		"transaction_id", transactionID,
		"report_id", report.ReportID,
		"score", result.Assessment.Score,
		"band", result.Assessment.Band,
		"degraded", result.Assessment.Degraded(),
	)
	return result, nil
}

// fail 统一的致命失败出口
func (p *Pipeline) fail(ctx context.Context, result *PipelineResult, stage string, err error) (*PipelineResult, error) {
	result.State = StateFailed
	if p.metrics != nil {
		p.metrics.PipelineFailuresTotal.WithLabelValues(stage).Inc()
	}
	logger.Error(ctx, "pipeline failed", "stage", stage, "error", err)
	return result, err
}

// normalize 组装规范化案件：交易 + 客户快照 + 检测窗口内的近期交易
func (p *Pipeline) normalize(ctx context.Context, transactionID string) (domain.NormalizedCase, error) {
	if p.metrics != nil {
		defer p.metrics.ObserveStage("normalize")()
	}

	tx, err := p.records.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.NormalizedCase{}, fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	customer, err := p.records.GetCustomer(ctx, tx.CustomerID)
	if err != nil {
		return domain.NormalizedCase{}, fmt.Errorf("get customer %s: %w", tx.CustomerID, err)
	}
	recent, err := p.records.GetRecentTransactions(ctx, tx.CustomerID, p.engine.Config().StructuringWindow, tx.OccurredAt)
	if err != nil {
		return domain.NormalizedCase{}, fmt.Errorf("get recent transactions for %s: %w", tx.CustomerID, err)
	}

	c := domain.NormalizedCase{
		Transaction:        *tx,
		Customer:           *customer,
		RecentTransactions: recent,
	}
	if p.sanctions != nil {
		c.SanctionsFlagged = p.sanctions.Flagged(ctx, tx.DestinationCountry)
	}
	return c, nil
}

// score 执行确定性评分。历史召回与语义分析是仅有的两个可阻塞点，
// 各自带超时且可独立取消；失败吸收为降级标记。
func (p *Pipeline) score(ctx context.Context, c domain.NormalizedCase) domain.RiskAssessment {
	if p.metrics != nil {
		defer p.metrics.ObserveStage("score")()
	}

	sig := p.engine.Signature(c)
	history := domain.HistoricalContext{}
	recallDegraded := false

	rctx, cancel := context.WithTimeout(ctx, p.cfg.RecallTimeout)
	recalled, err := p.memory.Recall(rctx, c.Customer.CustomerID, sig, p.cfg.RecallK)
	cancel()
	if err != nil {
		recallDegraded = true
		if p.metrics != nil {
			p.metrics.DegradationsTotal.WithLabelValues(domain.DegradationMemoryRecall).Inc()
		}
		logger.Warn(ctx, "historical recall degraded",
			"customer_id", c.Customer.CustomerID,
			"error", err,
		)
	} else {
		history = recalled
	}

	assessment := p.engine.Score(c, history)
	if recallDegraded {
		assessment.MarkDegraded(domain.DegradationMemoryRecall)
	}

	if p.analyzer != nil {
		ectx, cancel := context.WithTimeout(ctx, p.cfg.ExplainTimeout)
		narrative, err := p.analyzer.Explain(ectx, c, assessment)
		cancel()
		if err != nil {
			assessment.MarkDegraded(domain.DegradationSemanticExplain)
			if p.metrics != nil {
				p.metrics.DegradationsTotal.WithLabelValues(domain.DegradationSemanticExplain).Inc()
			}
			logger.Warn(ctx, "semantic augmentation degraded",
				"transaction_id", c.Transaction.TransactionID,
				"error", err,
			)
		} else {
			assessment.Narrative = narrative
		}
	}

	return assessment
}

// remember 将本次评估写入历史记忆。写入对 transaction_id 幂等，
// 失败仅记录，不影响已生成的报告。
func (p *Pipeline) remember(ctx context.Context, c domain.NormalizedCase, a domain.RiskAssessment) {
	record := &domain.MemoryRecord{
		RecordID:      fmt.Sprintf("MEM%s%09d-%s", a.AssessedAt.Format("20060102150405"), a.AssessedAt.Nanosecond(), a.TransactionID),
		CustomerID:    c.Customer.CustomerID,
		TransactionID: a.TransactionID,
		Signature:     a.Signature.Key(),
		RiskScore:     a.Score,
		RiskBand:      a.Band,
		Summary:       summarize(a),
	}
	if err := p.memory.Upsert(ctx, record); err != nil {
		if p.metrics != nil {
			p.metrics.DegradationsTotal.WithLabelValues(domain.DegradationMemoryUpsert).Inc()
		}
		logger.Warn(ctx, "memory upsert failed",
			"transaction_id", a.TransactionID,
			"error", err,
		)
	}
}

// dispatch 并发扇出到所有通知器，通知器之间无顺序保证
func (p *Pipeline) dispatch(ctx context.Context, report *domain.AuditReport) []DispatchResult {
	if len(p.notifiers) == 0 {
		return nil
	}
	if p.metrics != nil {
		defer p.metrics.ObserveStage("dispatch")()
	}

	results := make([]DispatchResult, len(p.notifiers))
	var g errgroup.Group
	for i, notifier := range p.notifiers {
		i, notifier := i, notifier
		g.Go(func() error {
			start := time.Now()
			err := notifier.Notify(ctx, report)
			results[i] = DispatchResult{
				Notifier: notifier.Name(),
				Success:  err == nil,
				Duration: time.Since(start),
			}
			outcome := "success"
			if err != nil {
				outcome = "failure"
				results[i].Error = err.Error()
				logger.Error(ctx, "notifier dispatch failed",
					"notifier", notifier.Name(),
					"report_id", report.ReportID,
					"error", err,
				)
			}
			if p.metrics != nil {
				p.metrics.DispatchesTotal.WithLabelValues(notifier.Name(), outcome).Inc()
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// summarize 由因子拼装报告摘要，供历史记忆召回展示
func summarize(a domain.RiskAssessment) string {
	if len(a.Factors) == 0 {
		return fmt.Sprintf("score %d (%s), no risk factors triggered", a.Score, a.Band)
	}
	details := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		details = append(details, f.Detail)
	}
	return fmt.Sprintf("score %d (%s): %s", a.Score, a.Band, strings.Join(details, "; "))
}
