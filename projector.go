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
	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/model"
)

// ProjectDetail flattens a detail row plus its embedded JSONB document into
// the fixed output field set. Projection is total: a missing document, a
// missing nested object or a malformed payload never fails the row — the
// JSON-derived fields simply stay empty. The returned error is purely
// informational (a parse failure the caller counts); the projection is
// valid either way.
func ProjectDetail(record *model.DetailRecord) (*model.FlatProjection, error) {
	projection := &model.FlatProjection{
		DetailID:        record.DetailID,
		AccountNumber:   record.AccountNumber,
		CustomerName:    record.CustomerName,
		Amount:          record.Amount,
		Currency:        record.Currency,
		Description:     record.Description,
		TransactionDate: record.TransactionDate,
	}

	if !record.HasTransactionData() {
		return projection, nil
	}

	data, err := model.UnmarshalTransactionData(record.TransactionData)
	if err != nil {
		logrus.Warnf("Failed to unmarshal transaction data for detail_id: %d - %v", record.DetailID, err)
		return projection, err
	}

	projection.TransactionID = data.TransactionID
	projection.TransactionType = data.TransactionType
	projection.RiskScore = data.RiskScore
	projection.Status = data.Status

	if data.Customer != nil {
		projection.CustomerID = data.Customer.CustomerID
		projection.CustomerEmail = data.Customer.Email
		projection.CustomerPhone = data.Customer.Phone
		if data.Customer.Address != nil {
			projection.CustomerCity = data.Customer.Address.City
			projection.CustomerState = data.Customer.Address.State
			projection.CustomerCountry = data.Customer.Address.Country
		}
	}

	if data.Merchant != nil {
		projection.MerchantID = data.Merchant.MerchantID
		projection.MerchantName = data.Merchant.Name
		projection.MerchantCategory = data.Merchant.Category
	}

	if data.PaymentMethod != nil {
		projection.PaymentType = data.PaymentMethod.Type
		projection.PaymentLastFour = data.PaymentMethod.LastFour
		projection.PaymentBrand = data.PaymentMethod.Brand
	}

	if data.Items != nil {
		count := len(data.Items)
		projection.ItemCount = &count
	}

	return projection, nil
}
