package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/memory"
)

func record(txID, customerID string, sig domain.TransactionSignature, band domain.RiskBand) *domain.MemoryRecord {
	return &domain.MemoryRecord{
		RecordID:      "MEM-" + txID,
		CustomerID:    customerID,
		TransactionID: txID,
		Signature:     sig.Key(),
		RiskScore:     80,
		RiskBand:      band,
	}
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	idx := memory.NewIndex()
	ctx := context.Background()
	sig := domain.TransactionSignature{AmountBucket: 4, Destination: "NG", Risky: true}

	require.NoError(t, idx.Upsert(ctx, record("TX-1", "CUST-1", sig, domain.RiskBandHigh)))
	require.NoError(t, idx.Upsert(ctx, record("TX-1", "CUST-1", sig, domain.RiskBandHigh)))

	assert.Equal(t, 1, idx.Len())
}

func TestIndex_RecallPrefersSameCustomer(t *testing.T) {
	idx := memory.NewIndex()
	ctx := context.Background()
	sig := domain.TransactionSignature{AmountBucket: 4, Destination: "NG", Risky: true}

	// 其他客户的完全匹配 + 同客户的较远匹配
	require.NoError(t, idx.Upsert(ctx, record("TX-OTHER", "CUST-2", sig, domain.RiskBandHigh)))
	farSig := domain.TransactionSignature{AmountBucket: 9, Destination: "US", Risky: false}
	require.NoError(t, idx.Upsert(ctx, record("TX-MINE", "CUST-1", farSig, domain.RiskBandLow)))

	history, err := idx.Recall(ctx, "CUST-1", sig, 5)
	require.NoError(t, err)

	require.Len(t, history.Records, 2)
	assert.Equal(t, "TX-MINE", history.Records[0].TransactionID)
	assert.Equal(t, "TX-OTHER", history.Records[1].TransactionID)
}

func TestIndex_RecallOrdersByDistance(t *testing.T) {
	idx := memory.NewIndex()
	ctx := context.Background()
	target := domain.TransactionSignature{AmountBucket: 4, Destination: "NG", Risky: true}

	far := domain.TransactionSignature{AmountBucket: 9, Destination: "US", Risky: false}
	near := domain.TransactionSignature{AmountBucket: 5, Destination: "NG", Risky: true}

	require.NoError(t, idx.Upsert(ctx, record("TX-FAR", "CUST-1", far, domain.RiskBandLow)))
	require.NoError(t, idx.Upsert(ctx, record("TX-EXACT", "CUST-1", target, domain.RiskBandHigh)))
	require.NoError(t, idx.Upsert(ctx, record("TX-NEAR", "CUST-1", near, domain.RiskBandHigh)))

	history, err := idx.Recall(ctx, "CUST-1", target, 5)
	require.NoError(t, err)

	require.Len(t, history.Records, 3)
	assert.Equal(t, "TX-EXACT", history.Records[0].TransactionID)
	assert.Equal(t, "TX-NEAR", history.Records[1].TransactionID)
	assert.Equal(t, "TX-FAR", history.Records[2].TransactionID)
}

func TestIndex_RecallTruncatesToK(t *testing.T) {
	idx := memory.NewIndex()
	ctx := context.Background()
	sig := domain.TransactionSignature{AmountBucket: 4, Destination: "NG", Risky: true}

	for i := 0; i < 10; i++ {
		require.NoError(t, idx.Upsert(ctx, record(fmt.Sprintf("TX-%d", i), "CUST-1", sig, domain.RiskBandHigh)))
	}

	history, err := idx.Recall(ctx, "CUST-1", sig, 3)
	require.NoError(t, err)
	assert.Len(t, history.Records, 3)

	// k 非法时回退到默认值
	history, err = idx.Recall(ctx, "CUST-1", sig, 0)
	require.NoError(t, err)
	assert.Len(t, history.Records, 5)
}

func TestIndex_RecallHonorsCancelledContext(t *testing.T) {
	idx := memory.NewIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Recall(ctx, "CUST-1", domain.TransactionSignature{}, 5)
	assert.Error(t, err)
}
