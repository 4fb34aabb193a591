package exportd

import (
	"github.com/shopspring/decimal"

	"github.com/batchfile/exportd/model"
)

// TrailerStats folds per-row statistics into the values the trailer
// carries. Everything is O(1) except the unique customer set, which grows
// with the master's actual customer cardinality; for masters with tens of
// millions of distinct customers that is the one unbounded accumulator.
// The count is exact by contract, so no cardinality estimator is used.
type TrailerStats struct {
	recordCount      int64
	totalAmount      decimal.Decimal
	riskScoreSum     decimal.Decimal
	riskScoreCount   int64
	uniqueCustomers  map[string]struct{}
	projectionErrors int64
}

func NewTrailerStats() *TrailerStats {
	return &TrailerStats{
		totalAmount:     decimal.Zero,
		riskScoreSum:    decimal.Zero,
		uniqueCustomers: make(map[string]struct{}),
	}
}

// Fold accumulates one projected row. Rows with a nil risk score count
// toward total_records but not toward the risk average.
func (t *TrailerStats) Fold(projection *model.FlatProjection) {
	t.recordCount++
	t.totalAmount = t.totalAmount.Add(projection.Amount)
	if projection.RiskScore != nil {
		t.riskScoreSum = t.riskScoreSum.Add(decimal.NewFromFloat(*projection.RiskScore))
		t.riskScoreCount++
	}
	if projection.CustomerID != "" {
		t.uniqueCustomers[projection.CustomerID] = struct{}{}
	}
}

// CountProjectionError records a row whose embedded JSON failed to parse.
// The row is still written and counted; this counter only feeds logging.
func (t *TrailerStats) CountProjectionError() {
	t.projectionErrors++
}

func (t *TrailerStats) RecordCount() int64 {
	return t.recordCount
}

func (t *TrailerStats) TotalAmount() decimal.Decimal {
	return t.totalAmount
}

// AverageRiskScore returns the mean risk score rounded to two decimal
// places, half-up. Zero when no row carried a score.
func (t *TrailerStats) AverageRiskScore() decimal.Decimal {
	if t.riskScoreCount == 0 {
		return decimal.Zero.Round(2)
	}
	return t.riskScoreSum.Div(decimal.NewFromInt(t.riskScoreCount)).Round(2)
}

func (t *TrailerStats) UniqueCustomers() int64 {
	return int64(len(t.uniqueCustomers))
}

func (t *TrailerStats) ProjectionErrors() int64 {
	return t.projectionErrors
}
