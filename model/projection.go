package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlatProjection is the output record for a single detail row: the scalar
// detail columns plus the flattened JSONB fields. Pointer fields stay nil
// when the document (or the relevant nested object) is absent and render
// as empty fields in the file.
type FlatProjection struct {
	DetailID        int64
	AccountNumber   string
	CustomerName    string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	TransactionDate *time.Time

	TransactionID   string
	TransactionType string

	CustomerID      string
	CustomerEmail   string
	CustomerPhone   string
	CustomerCity    string
	CustomerState   string
	CustomerCountry string

	MerchantID       string
	MerchantName     string
	MerchantCategory string

	PaymentType     string
	PaymentLastFour string
	PaymentBrand    string

	RiskScore *float64
	Status    string
	ItemCount *int
}
