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
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/batchfile/exportd/model"
)

func TestGenerateOutputPath_Format(t *testing.T) {
	path := GenerateOutputPath("/tmp/out", "BC001", 42)

	assert.Equal(t, "/tmp/out", filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^BC001_42_\d+\.txt$`), filepath.Base(path))
}

func TestGenerateOutputPath_DistinctAcrossCalls(t *testing.T) {
	first := GenerateOutputPath("/tmp/out", "BC001", 42)
	time.Sleep(2 * time.Millisecond)
	second := GenerateOutputPath("/tmp/out", "BC001", 42)

	assert.NotEqual(t, first, second)
}

func TestFileSink_Framing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BC001_42_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)

	master := &model.MasterRecord{MasterID: 42, BusinessCenterCode: "BC001"}
	today := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	assert.NoError(t, sink.WriteHeader(master, today))

	txnDate := time.Date(2025, 6, 1, 10, 30, 45, 0, time.UTC)
	score := 42.7
	items := 3
	assert.NoError(t, sink.WriteDetail(&model.FlatProjection{
		DetailID:         7,
		AccountNumber:    "ACC-100",
		CustomerName:     "Jordan Blake",
		Amount:           decimal.NewFromFloat(125.5),
		Currency:         "USD",
		Description:      "Coffee supplies",
		TransactionDate:  &txnDate,
		TransactionID:    "txn_001",
		TransactionType:  "PURCHASE",
		CustomerID:       "cust_001",
		CustomerEmail:    "jordan@example.com",
		CustomerPhone:    "+15550001111",
		CustomerCity:     "Austin",
		CustomerState:    "TX",
		CustomerCountry:  "US",
		MerchantID:       "merch_001",
		MerchantName:     "Daily Grind",
		MerchantCategory: "DINING",
		PaymentType:      "CARD",
		PaymentLastFour:  "4242",
		PaymentBrand:     "VISA",
		RiskScore:        &score,
		Status:           "SETTLED",
		ItemCount:        &items,
	}))

	stats := NewTrailerStats()
	stats.Fold(&model.FlatProjection{Amount: decimal.NewFromFloat(125.5), RiskScore: &score, CustomerID: "cust_001"})
	assert.NoError(t, sink.WriteTrailer(stats))
	assert.NoError(t, sink.Close())

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	assert.Len(t, lines, 3)

	assert.Equal(t, "HEADER|42|BC001|2025-06-01|0|2.0", lines[0])
	assert.Equal(t,
		"DETAIL|7|ACC-100|Jordan Blake|125.50|USD|Coffee supplies|2025-06-01T10:30:45|txn_001|PURCHASE|cust_001|jordan@example.com|+15550001111|Austin|TX|US|merch_001|Daily Grind|DINING|CARD|4242|VISA|42.7|SETTLED|3",
		lines[1])
	assert.Equal(t, "TRAILER|1|125.50|42.70|1", lines[2])
}

func TestFileSink_EmptyOptionalFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BC001_43_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)

	assert.NoError(t, sink.WriteDetail(&model.FlatProjection{
		DetailID: 9,
		Amount:   decimal.NewFromInt(10),
	}))
	assert.NoError(t, sink.Close())

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	line := strings.TrimRight(string(content), "\n")

	fields := strings.Split(line, "|")
	assert.Len(t, fields, 25)
	assert.Equal(t, "DETAIL", fields[0])
	assert.Equal(t, "9", fields[1])
	assert.Equal(t, "10.00", fields[4])
	// transaction_date, risk_score and item_count render empty, not zero.
	assert.Equal(t, "", fields[7])
	assert.Equal(t, "", fields[22])
	assert.Equal(t, "", fields[24])
}

func TestFileSink_CreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	path := filepath.Join(dir, "BC001_44_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)
	assert.NoError(t, sink.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileSink_DiscardRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BC001_45_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)

	master := &model.MasterRecord{MasterID: 45, BusinessCenterCode: "BC001"}
	assert.NoError(t, sink.WriteHeader(master, time.Now()))

	sink.Discard()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSink_DiscardAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BC001_46_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)
	assert.NoError(t, sink.Close())

	// The losing side of an ownership race discards a fully written file.
	sink.Discard()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSink_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BC001_47_1.txt")

	sink, err := OpenFileSink(path)
	assert.NoError(t, err)
	assert.NoError(t, sink.Close())
	assert.NoError(t, sink.Close())
}
