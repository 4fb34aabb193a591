/*
Copyright 2025 Exportd Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package exportd

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/batchfile/exportd/model"
)

func scored(amount float64, score float64, customerID string) *model.FlatProjection {
	return &model.FlatProjection{
		Amount:     decimal.NewFromFloat(amount),
		RiskScore:  &score,
		CustomerID: customerID,
	}
}

func TestTrailerStats_Fold(t *testing.T) {
	stats := NewTrailerStats()

	stats.Fold(scored(100.10, 40, "cust_a"))
	stats.Fold(scored(200.20, 45, "cust_b"))
	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromFloat(0.05), CustomerID: "cust_a"})

	assert.Equal(t, int64(3), stats.RecordCount())
	assert.Equal(t, "300.35", stats.TotalAmount().StringFixed(2))
	assert.Equal(t, int64(2), stats.UniqueCustomers())
}

func TestTrailerStats_AverageRiskScoreHalfUp(t *testing.T) {
	stats := NewTrailerStats()

	// (40.1 + 44.9) / 2 = 42.5 exactly; rows without a score dilute
	// nothing.
	stats.Fold(scored(1, 40.10, "a"))
	stats.Fold(scored(1, 44.90, "b"))
	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromInt(1)})

	assert.Equal(t, "42.50", stats.AverageRiskScore().StringFixed(2))
}

func TestTrailerStats_AverageRoundsHalfUp(t *testing.T) {
	stats := NewTrailerStats()

	// Mean is 10.005, which must round up to 10.01, not bankers-round to
	// 10.00.
	stats.Fold(scored(1, 10.00, "a"))
	stats.Fold(scored(1, 10.01, "b"))

	assert.Equal(t, "10.01", stats.AverageRiskScore().StringFixed(2))
}

func TestTrailerStats_NoRiskScores(t *testing.T) {
	stats := NewTrailerStats()
	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromInt(5)})

	assert.Equal(t, "0.00", stats.AverageRiskScore().StringFixed(2))
}

func TestTrailerStats_Empty(t *testing.T) {
	stats := NewTrailerStats()

	assert.Equal(t, int64(0), stats.RecordCount())
	assert.Equal(t, "0.00", stats.TotalAmount().StringFixed(2))
	assert.Equal(t, "0.00", stats.AverageRiskScore().StringFixed(2))
	assert.Equal(t, int64(0), stats.UniqueCustomers())
}

func TestTrailerStats_AnonymousRowsAreNotCustomers(t *testing.T) {
	stats := NewTrailerStats()

	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromInt(1)})
	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromInt(1)})
	stats.Fold(scored(1, 50, "cust_a"))

	assert.Equal(t, int64(1), stats.UniqueCustomers())
}

func TestTrailerStats_ProjectionErrors(t *testing.T) {
	stats := NewTrailerStats()
	stats.CountProjectionError()
	stats.CountProjectionError()

	assert.Equal(t, int64(2), stats.ProjectionErrors())
}

func TestTrailerStats_ExactDecimalSum(t *testing.T) {
	stats := NewTrailerStats()

	// 0.1 added ten times is exactly 1.00 in decimal arithmetic.
	for i := 0; i < 10; i++ {
		stats.Fold(&model.FlatProjection{Amount: decimal.RequireFromString("0.1")})
	}

	assert.Equal(t, "1.00", stats.TotalAmount().StringFixed(2))
}
