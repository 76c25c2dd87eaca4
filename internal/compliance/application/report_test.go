package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/application"
	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
)

func assessment(score int, factors []domain.Factor) domain.RiskAssessment {
	return domain.RiskAssessment{
		TransactionID: "TX-001",
		Score:         score,
		Band:          domain.BandFromScore(score),
		Factors:       factors,
		RuleVersion:   "v1",
		AssessedAt:    time.Now().UTC(),
	}
}

func TestGenerate_LowBand(t *testing.T) {
	g := application.NewReportGenerator()

	report, err := g.Generate(assessment(0, nil))
	require.NoError(t, err)

	assert.Equal(t, domain.RatingCompliant, report.ComplianceRating)
	assert.Equal(t, domain.StringList{"standard monitoring"}, report.RequiredActions)
	assert.False(t, report.RegulatoryFilingRequired)
	assert.Equal(t, domain.RiskBandLow, report.RiskBand)
	assert.Equal(t, "TX-001", report.TransactionID)
	assert.NotEmpty(t, report.ReportID)
}

func TestGenerate_MediumBand(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(50, []domain.Factor{
		{Name: domain.FactorPastFraud, Contribution: 20},
		{Name: domain.FactorStructuring, Contribution: 30},
	})

	report, err := g.Generate(a)
	require.NoError(t, err)

	assert.Equal(t, domain.RatingConditionalCompliance, report.ComplianceRating)
	assert.Equal(t, domain.StringList{"enhanced monitoring", "internal risk documentation"}, report.RequiredActions)
	assert.False(t, report.RegulatoryFilingRequired)
}

func TestGenerate_MediumBandWithEscalationRequiresFiling(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(55, []domain.Factor{
		{Name: domain.FactorPastFraud, Contribution: 20},
		{Name: domain.FactorStructuring, Contribution: 30},
		{Name: domain.FactorHistoricalPattern, Contribution: 5},
	})
	a.HistoricalInfluence = domain.HistoricalInfluence{MatchedRecords: 2, Adjustment: 5}

	report, err := g.Generate(a)
	require.NoError(t, err)

	assert.Equal(t, domain.RatingConditionalCompliance, report.ComplianceRating)
	assert.True(t, report.RegulatoryFilingRequired)
}

func TestGenerate_HighBand(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(85, []domain.Factor{
		{Name: domain.FactorHighRiskDestination, Contribution: 85},
	})

	report, err := g.Generate(a)
	require.NoError(t, err)

	assert.Equal(t, domain.RatingNonCompliant, report.ComplianceRating)
	assert.Equal(t, domain.StringList{
		"freeze pending investigation",
		"enhanced due diligence",
		"file suspicious activity report",
	}, report.RequiredActions)
	assert.True(t, report.RegulatoryFilingRequired)
}

func TestGenerate_RejectsTamperedScore(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(50, []domain.Factor{
		{Name: domain.FactorPastFraud, Contribution: 20},
	})

	_, err := g.Generate(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestGenerate_RejectsMismatchedBand(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(50, []domain.Factor{
		{Name: domain.FactorPastFraud, Contribution: 20},
		{Name: domain.FactorStructuring, Contribution: 30},
	})
	a.Band = domain.RiskBandHigh

	_, err := g.Generate(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestGenerate_RejectsMissingTransactionID(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(0, nil)
	a.TransactionID = ""

	_, err := g.Generate(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestGenerate_CarriesDegradations(t *testing.T) {
	g := application.NewReportGenerator()
	a := assessment(0, nil)
	a.Degradations = []string{domain.DegradationMemoryRecall}

	report, err := g.Generate(a)
	require.NoError(t, err)

	assert.Equal(t, domain.StringList{domain.DegradationMemoryRecall}, report.Degradations)
}

func TestGenerate_ReportIDsSortByGenerationTime(t *testing.T) {
	g := application.NewReportGenerator()

	first, err := g.Generate(assessment(0, nil))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := g.Generate(assessment(0, nil))
	require.NoError(t, err)

	assert.Less(t, first.ReportID, second.ReportID)
}
