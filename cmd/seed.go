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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/batchfile/exportd/database"
	"github.com/batchfile/exportd/model"
)

var seedBusinessCenters = []string{"BC001", "BC002", "BC003", "REGN1", "REGN2"}

// seedCommands creates the "seed" command, which loads a configurable number
// of PENDING masters with generated detail rows into the store. Meant for
// local development and load testing; a fraction of detail rows get no
// embedded document and a smaller fraction get a deliberately truncated one,
// so the projector's degraded paths see traffic too.
func seedCommands(e *exportdInstance) *cobra.Command {
	var masters int
	var detailsPerMaster int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "load generated masters and detail rows",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			db, err := database.GetDBConnection(e.cnf)
			if err != nil {
				log.Fatalf("could not connect datasource: %v", err)
			}

			for i := 0; i < masters; i++ {
				master, err := db.CreateMaster(ctx, &model.MasterRecord{
					BusinessCenterCode: seedBusinessCenters[gofakeit.Number(0, len(seedBusinessCenters)-1)],
					Priority:           gofakeit.Number(0, 9),
					Status:             model.StatusPending,
				})
				if err != nil {
					log.Fatalf("could not create master: %v", err)
				}

				for j := 0; j < detailsPerMaster; j++ {
					record := generateDetailRecord(master.MasterID)
					if err := db.CreateDetailRecord(ctx, record); err != nil {
						log.Fatalf("could not create detail row for master %d: %v", master.MasterID, err)
					}
				}
				fmt.Printf("Seeded master %d (%s) with %d detail rows\n", master.MasterID, master.BusinessCenterCode, detailsPerMaster)
			}
		},
	}

	cmd.Flags().IntVar(&masters, "masters", 5, "number of master records to create")
	cmd.Flags().IntVar(&detailsPerMaster, "details", 1000, "detail rows per master")

	return cmd
}

func generateDetailRecord(masterID int64) *model.DetailRecord {
	amount := decimal.NewFromFloat(gofakeit.Price(1, 5000)).Round(2)
	txnDate := gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now())

	record := &model.DetailRecord{
		MasterID:        masterID,
		RecordType:      "TXN",
		AccountNumber:   gofakeit.AchAccount(),
		CustomerName:    gofakeit.Name(),
		Amount:          amount,
		Currency:        gofakeit.CurrencyShort(),
		Description:     gofakeit.ProductName(),
		TransactionDate: &txnDate,
	}

	// Roughly one row in ten carries no document at all, and one in fifty a
	// malformed one.
	roll := gofakeit.Number(1, 50)
	switch {
	case roll <= 5:
		return record
	case roll == 50:
		record.TransactionData = []byte(`{"transaction_id": "` + gofakeit.UUID() + `", "customer": {`)
		return record
	}

	record.TransactionData = generateTransactionDocument(amount, record.Currency, txnDate)
	return record
}

func generateTransactionDocument(amount decimal.Decimal, currency string, txnDate time.Time) []byte {
	riskScore := gofakeit.Float64Range(0, 100)

	data := model.TransactionData{
		TransactionID:   gofakeit.UUID(),
		TransactionType: gofakeit.RandomString([]string{"PURCHASE", "REFUND", "TRANSFER", "WITHDRAWAL"}),
		Amount:          amount,
		Currency:        currency,
		Timestamp:       txnDate.UTC().Format(time.RFC3339),
		RiskScore:       &riskScore,
		Status:          gofakeit.RandomString([]string{"SETTLED", "AUTHORIZED", "DECLINED"}),
		Customer: &model.Customer{
			CustomerID:  gofakeit.UUID(),
			Name:        gofakeit.Name(),
			Email:       gofakeit.Email(),
			Phone:       gofakeit.Phone(),
			LoyaltyTier: gofakeit.RandomString([]string{"BRONZE", "SILVER", "GOLD"}),
			Address: &model.Address{
				Street:     gofakeit.Street(),
				City:       gofakeit.City(),
				State:      gofakeit.StateAbr(),
				PostalCode: gofakeit.Zip(),
				Country:    gofakeit.CountryAbr(),
			},
		},
		Merchant: &model.Merchant{
			MerchantID: gofakeit.UUID(),
			Name:       gofakeit.Company(),
			Category:   gofakeit.RandomString([]string{"GROCERY", "TRAVEL", "RETAIL", "DINING"}),
			MCC:        fmt.Sprintf("%04d", gofakeit.Number(1000, 9999)),
		},
		PaymentMethod: &model.PaymentMethod{
			Type:        gofakeit.RandomString([]string{"CARD", "ACH", "WALLET"}),
			LastFour:    fmt.Sprintf("%04d", gofakeit.Number(0, 9999)),
			Brand:       gofakeit.RandomString([]string{"VISA", "MASTERCARD", "AMEX"}),
			ExpiryMonth: gofakeit.Number(1, 12),
			ExpiryYear:  gofakeit.Number(2026, 2031),
		},
	}

	itemCount := gofakeit.Number(0, 5)
	if itemCount > 0 {
		items := make([]model.LineItem, 0, itemCount)
		for i := 0; i < itemCount; i++ {
			unit := decimal.NewFromFloat(gofakeit.Price(1, 200)).Round(2)
			qty := gofakeit.Number(1, 4)
			items = append(items, model.LineItem{
				ItemID:     gofakeit.UUID(),
				Name:       gofakeit.ProductName(),
				Quantity:   qty,
				UnitPrice:  unit,
				TotalPrice: unit.Mul(decimal.NewFromInt(int64(qty))),
				Category:   gofakeit.ProductCategory(),
			})
		}
		data.Items = items
	}

	raw, err := json.Marshal(data)
	if err != nil {
		log.Fatalf("could not marshal transaction document: %v", err)
	}
	return raw
}
