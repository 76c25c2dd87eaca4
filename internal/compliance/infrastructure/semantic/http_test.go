package semantic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/infrastructure/semantic"
)

func explainInput() (domain.NormalizedCase, domain.RiskAssessment) {
	c := domain.NormalizedCase{
		Transaction: domain.Transaction{
			TransactionID:      "TX-001",
			CustomerID:         "CUST-001",
			Amount:             decimal.NewFromInt(15000),
			Currency:           "USD",
			DestinationCountry: "IR",
			OccurredAt:         time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Customer: domain.Customer{CustomerID: "CUST-001"},
	}
	a := domain.RiskAssessment{
		TransactionID: "TX-001",
		Score:         100,
		Band:          domain.RiskBandHigh,
		Factors: []domain.Factor{
			{Name: domain.FactorHighRiskDestination, Contribution: 85},
			{Name: domain.FactorHighAmount, Contribution: 20},
		},
	}
	return c, a
}

func TestHTTPAnalyzer_Explain(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"narrative": "large transfer to a sanctioned destination",
		})
	}))
	defer srv.Close()

	analyzer := semantic.NewHTTPAnalyzer(srv.URL, time.Second)
	c, a := explainInput()

	narrative, err := analyzer.Explain(context.Background(), c, a)
	require.NoError(t, err)

	assert.Equal(t, "large transfer to a sanctioned destination", narrative)
	assert.Equal(t, "TX-001", received["transaction_id"])
	assert.Equal(t, "IR", received["destination_country"])
	assert.Equal(t, float64(100), received["score"])
}

func TestHTTPAnalyzer_ExplainNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	analyzer := semantic.NewHTTPAnalyzer(srv.URL, time.Second)
	c, a := explainInput()

	_, err := analyzer.Explain(context.Background(), c, a)
	assert.Error(t, err)
}

func TestHTTPAnalyzer_ExplainHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	analyzer := semantic.NewHTTPAnalyzer(srv.URL, time.Minute)
	c, a := explainInput()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := analyzer.Explain(ctx, c, a)
	assert.Error(t, err)
}
