package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/application"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/memory"
)

// stubRecordStore 基于内存映射的记录库
type stubRecordStore struct {
	transactions map[string]domain.Transaction
	customers    map[string]domain.Customer
}

func newStubRecordStore() *stubRecordStore {
	return &stubRecordStore{
		transactions: make(map[string]domain.Transaction),
		customers:    make(map[string]domain.Customer),
	}
}

func (s *stubRecordStore) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *stubRecordStore) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	c, ok := s.customers[customerID]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *stubRecordStore) GetRecentTransactions(ctx context.Context, customerID string, window time.Duration, before time.Time) ([]domain.Transaction, error) {
	var recent []domain.Transaction
	for _, tx := range s.transactions {
		if tx.CustomerID != customerID || tx.OccurredAt.After(before) {
			continue
		}
		if tx.OccurredAt.Before(before.Add(-window)) {
			continue
		}
		recent = append(recent, tx)
	}
	return recent, nil
}

// failingMemory 召回与写入都失败的记忆库
type failingMemory struct{}

func (failingMemory) Recall(ctx context.Context, customerID string, signature domain.TransactionSignature, k int) (domain.HistoricalContext, error) {
	return domain.HistoricalContext{}, errors.New("memory backend unavailable")
}

func (failingMemory) Upsert(ctx context.Context, record *domain.MemoryRecord) error {
	return errors.New("memory backend unavailable")
}

// stubAnalyzer 固定输出的语义分析器，可配置为失败
type stubAnalyzer struct {
	narrative string
	failWith  error
}

func (a stubAnalyzer) Explain(ctx context.Context, c domain.NormalizedCase, assessment domain.RiskAssessment) (string, error) {
	if a.failWith != nil {
		return "", a.failWith
	}
	return a.narrative, nil
}

// stubReportRepository 仅追加的内存报告库
type stubReportRepository struct {
	mu      sync.Mutex
	reports []*domain.AuditReport
}

func (r *stubReportRepository) Save(ctx context.Context, report *domain.AuditReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *stubReportRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.AuditReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []*domain.AuditReport
	for _, rep := range r.reports {
		if rep.TransactionID == transactionID {
			found = append(found, rep)
		}
	}
	return found, nil
}

func (r *stubReportRepository) List(ctx context.Context, limit, offset int) ([]*domain.AuditReport, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports, int64(len(r.reports)), nil
}

// recordingNotifier 记录投递的通知器，可配置为失败
type recordingNotifier struct {
	name     string
	failWith error
	mu       sync.Mutex
	received []*domain.AuditReport
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(ctx context.Context, report *domain.AuditReport) error {
	if n.failWith != nil {
		return n.failWith
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, report)
	return nil
}

type fixture struct {
	records   *stubRecordStore
	memory    domain.MemoryStore
	reports   *stubReportRepository
	notifiers []domain.Notifier
	pipeline  *application.Pipeline
}

func newFixture(memoryStore domain.MemoryStore, notifiers ...domain.Notifier) *fixture {
	return newFixtureWithAnalyzer(memoryStore, nil, notifiers...)
}

func newFixtureWithAnalyzer(memoryStore domain.MemoryStore, analyzer domain.SemanticAnalyzer, notifiers ...domain.Notifier) *fixture {
	records := newStubRecordStore()
	reports := &stubReportRepository{}
	pipeline := application.NewPipeline(
		records,
		memoryStore,
		domain.NewRiskEngine(domain.DefaultRuleConfig()),
		application.NewReportGenerator(),
		reports,
		analyzer,
		nil,
		notifiers,
		application.PipelineConfig{},
		nil,
	)
	return &fixture{
		records:   records,
		memory:    memoryStore,
		reports:   reports,
		notifiers: notifiers,
		pipeline:  pipeline,
	}
}

func (f *fixture) seed(tx domain.Transaction, customer domain.Customer) {
	f.records.transactions[tx.TransactionID] = tx
	f.records.customers[customer.CustomerID] = customer
}

func cleanTransaction(id, customerID string) domain.Transaction {
	return domain.Transaction{
		TransactionID:      id,
		CustomerID:         customerID,
		Amount:             decimal.NewFromInt(500),
		Currency:           "USD",
		DestinationCountry: "US",
		OccurredAt:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestPipeline_ColdStart(t *testing.T) {
	idx := memory.NewIndex()
	f := newFixture(idx)
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	result, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	assert.Equal(t, application.StateDone, result.State)
	require.NotNil(t, result.Report)
	assert.Equal(t, domain.RatingCompliant, result.Report.ComplianceRating)
	assert.Equal(t, 0, result.Assessment.HistoricalInfluence.MatchedRecords)
	assert.Empty(t, result.Assessment.Degradations)
	assert.Len(t, f.reports.reports, 1)
	assert.Equal(t, 1, idx.Len())
}

func TestPipeline_UnknownTransactionFails(t *testing.T) {
	f := newFixture(memory.NewIndex())

	result, err := f.pipeline.Run(context.Background(), "TX-MISSING")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, application.StateFailed, result.State)
	assert.Empty(t, f.reports.reports)
}

func TestPipeline_MemoryOutageDegradesButCompletes(t *testing.T) {
	f := newFixture(failingMemory{})
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	result, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	assert.Equal(t, application.StateDone, result.State)
	assert.True(t, result.Assessment.Degraded())
	assert.Contains(t, result.Assessment.Degradations, domain.DegradationMemoryRecall)
	assert.Equal(t, 0, result.Assessment.HistoricalInfluence.Adjustment)
	require.NotNil(t, result.Report)
	assert.Contains(t, []string(result.Report.Degradations), domain.DegradationMemoryRecall)
}

func TestPipeline_AnalyzerNarrativeAttached(t *testing.T) {
	f := newFixtureWithAnalyzer(memory.NewIndex(), stubAnalyzer{narrative: "routine low-value transfer"})
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	result, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	assert.Equal(t, application.StateDone, result.State)
	assert.Equal(t, "routine low-value transfer", result.Assessment.Narrative)
	assert.Empty(t, result.Assessment.Degradations)
	// 注解不参与任何数值计算
	assert.Equal(t, 0, result.Assessment.Score)
	assert.Equal(t, result.Assessment.Score, result.Assessment.ReplayScore())
	require.NotNil(t, result.Report)
	assert.Equal(t, "routine low-value transfer", result.Report.Narrative)
}

func TestPipeline_AnalyzerOutageDegradesButCompletes(t *testing.T) {
	f := newFixtureWithAnalyzer(memory.NewIndex(), stubAnalyzer{failWith: errors.New("inference backend unavailable")})
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	result, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	assert.Equal(t, application.StateDone, result.State)
	assert.Empty(t, result.Assessment.Narrative)
	assert.Contains(t, result.Assessment.Degradations, domain.DegradationSemanticExplain)
	assert.Equal(t, 0, result.Assessment.Score)
	require.NotNil(t, result.Report)
	assert.Contains(t, []string(result.Report.Degradations), domain.DegradationSemanticExplain)
}

func TestPipeline_ReprocessingIsIdempotent(t *testing.T) {
	idx := memory.NewIndex()
	f := newFixture(idx)
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	first, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)
	second, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	// 单条记忆记录，两份内容一致的报告
	assert.Equal(t, 1, idx.Len())
	assert.Len(t, f.reports.reports, 2)
	assert.Equal(t, first.Report.ComplianceRating, second.Report.ComplianceRating)
	assert.Equal(t, first.Report.RiskScore, second.Report.RiskScore)
	assert.NotEqual(t, first.Report.ReportID, second.Report.ReportID)
}

func TestPipeline_HistoricalEscalation(t *testing.T) {
	idx := memory.NewIndex()
	f := newFixture(idx)
	customer := domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 10, DeviceTrustScore: 0.3, HasPastFraudFlag: true,
	}

	// 先处理一笔高风险交易写入记忆
	prior := domain.Transaction{
		TransactionID: "TX-PRIOR", CustomerID: customer.CustomerID,
		Amount: decimal.NewFromInt(15000), Currency: "USD",
		DestinationCountry: "IR",
		OccurredAt:         time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
	f.seed(prior, customer)
	priorResult, err := f.pipeline.Run(context.Background(), "TX-PRIOR")
	require.NoError(t, err)
	require.Equal(t, domain.RiskBandHigh, priorResult.Assessment.Band)

	// 相似签名的后续交易触发历史升级
	next := domain.Transaction{
		TransactionID: "TX-NEXT", CustomerID: customer.CustomerID,
		Amount: decimal.NewFromInt(15000), Currency: "USD",
		DestinationCountry: "IR",
		OccurredAt:         time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC),
	}
	f.records.transactions[next.TransactionID] = next

	result, err := f.pipeline.Run(context.Background(), "TX-NEXT")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Assessment.HistoricalInfluence.MatchedRecords)
	assert.GreaterOrEqual(t, result.Assessment.Score, priorResult.Assessment.Score)
}

func TestPipeline_DispatchFansOutToAllNotifiers(t *testing.T) {
	good := &recordingNotifier{name: "audit-stream"}
	bad := &recordingNotifier{name: "webhook", failWith: fmt.Errorf("connection refused")}
	f := newFixture(memory.NewIndex(), good, bad)
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	result, err := f.pipeline.Run(context.Background(), "TX-001")
	require.NoError(t, err)

	// 单个通知器失败不影响流水线终态
	assert.Equal(t, application.StateDone, result.State)
	require.Len(t, result.Dispatches, 2)

	byName := map[string]application.DispatchResult{}
	for _, d := range result.Dispatches {
		byName[d.Notifier] = d
	}
	assert.True(t, byName["audit-stream"].Success)
	assert.False(t, byName["webhook"].Success)
	assert.NotEmpty(t, byName["webhook"].Error)
	assert.Len(t, good.received, 1)
}

func TestPipeline_CancelledContextFailsBeforeNormalize(t *testing.T) {
	f := newFixture(memory.NewIndex())
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.pipeline.Run(ctx, "TX-001")

	require.Error(t, err)
	assert.Equal(t, application.StateFailed, result.State)
	assert.Empty(t, f.reports.reports)
}

func TestService_AssessBatchIsolatesFailures(t *testing.T) {
	f := newFixture(memory.NewIndex())
	f.seed(cleanTransaction("TX-001", "CUST-001"), domain.Customer{
		CustomerID: "CUST-001", CountryCode: "US",
		AccountAgeDays: 400, DeviceTrustScore: 0.9,
	})
	svc := application.NewComplianceService(f.pipeline, f.reports)

	items := svc.AssessBatch(context.Background(), []string{"TX-001", "TX-MISSING"}, 2)

	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Report)
	assert.Empty(t, items[0].Error)
	assert.Nil(t, items[1].Report)
	assert.NotEmpty(t, items[1].Error)
}
