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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DetailRecord is a single detail tuple belonging to exactly one master.
// TransactionData holds the raw JSONB document as fetched from the store;
// it is nil when the column is NULL and is deserialized lazily by the
// projector so a malformed document never poisons the cursor.
type DetailRecord struct {
	DetailID         int64           `json:"detail_id"`
	MasterID         int64           `json:"master_id"`
	RecordType       string          `json:"record_type"`
	AccountNumber    string          `json:"account_number"`
	CustomerName     string          `json:"customer_name"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Description      string          `json:"description"`
	TransactionDate  *time.Time      `json:"transaction_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	TransactionData  []byte          `json:"-"`
	ProcessingStatus string          `json:"processing_status,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}

// HasTransactionData reports whether the row carries a JSONB document.
func (d *DetailRecord) HasTransactionData() bool {
	return len(d.TransactionData) > 0
}
