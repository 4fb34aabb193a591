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
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TransactionData is the tree-shaped document embedded in a detail row's
// JSONB column. Every nested object and the items array are optional;
// unknown fields are ignored so the projection stays forward compatible.
type TransactionData struct {
	TransactionID   string                 `json:"transaction_id"`
	TransactionType string                 `json:"transaction_type"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Timestamp       string                 `json:"timestamp"`
	Customer        *Customer              `json:"customer,omitempty"`
	Merchant        *Merchant              `json:"merchant,omitempty"`
	PaymentMethod   *PaymentMethod         `json:"payment_method,omitempty"`
	Items           []LineItem             `json:"items,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	RiskScore       *float64               `json:"risk_score,omitempty"`
	Status          string                 `json:"status"`
}

type Customer struct {
	CustomerID  string   `json:"customer_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address     *Address `json:"address,omitempty"`
	LoyaltyTier string   `json:"loyalty_tier"`
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Merchant struct {
	MerchantID string `json:"merchant_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	MCC        string `json:"mcc"`
}

type PaymentMethod struct {
	Type        string `json:"type"`
	LastFour    string `json:"last_four"`
	Brand       string `json:"brand"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

type LineItem struct {
	ItemID     string          `json:"item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Category   string          `json:"category"`
}

// UnmarshalTransactionData deserializes a raw JSONB payload. The returned
// error is per-row information for the projector; callers must not treat
// it as fatal for the surrounding stream.
func UnmarshalTransactionData(raw []byte) (*TransactionData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var data TransactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
