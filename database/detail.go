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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/batchfile/exportd/internal/procerror"
	"github.com/batchfile/exportd/model"
)

const detailCursorName = "detail_records_cur"

// detailStream walks a master's detail rows through a server-side cursor.
// Rows are FETCHed fetchSize at a time inside a dedicated read transaction,
// so the in-memory working set is O(fetchSize) regardless of how many rows
// the master has. The stream is finite and non-restartable; Close releases
// the cursor and its transaction on every exit path.
type detailStream struct {
	ctx       context.Context
	tx        *sql.Tx
	masterID  int64
	fetchSize int

	buf     []*model.DetailRecord
	idx     int
	current *model.DetailRecord
	err     error
	done    bool
	closed  bool
	yielded int64
}

// StreamDetailRecords opens a server-side cursor over a master's detail
// rows in ascending detail_id order. The returned iterator must be closed
// by the caller; the streaming transaction is read-only and is never
// reused for updates.
func (d Datasource) StreamDetailRecords(ctx context.Context, masterID int64, fetchSize int) (DetailIterator, error) {
	ctx, span := otel.Tracer("exportd.store").Start(ctx, "Opening detail record stream")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, classifyStoreError("Failed to begin streaming transaction", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		DECLARE %s NO SCROLL CURSOR FOR
		SELECT detail_id, master_id, record_type, account_number, customer_name,
		       amount, currency, description, transaction_date, created_at,
		       transaction_data, processing_status, error_message
		FROM detail_records
		WHERE master_id = %d
		ORDER BY detail_id ASC
	`, detailCursorName, masterID))
	if err != nil {
		_ = tx.Rollback()
		return nil, classifyStoreError("Failed to declare detail cursor", err)
	}

	logrus.Infof("Starting detail stream for master_id: %d with fetch_size: %d", masterID, fetchSize)

	return &detailStream{
		ctx:       ctx,
		tx:        tx,
		masterID:  masterID,
		fetchSize: fetchSize,
	}, nil
}

// Next advances the stream to the next row, fetching the next batch from
// the cursor when the buffered one is exhausted. It returns false at end
// of stream or on error; Err distinguishes the two.
func (s *detailStream) Next() bool {
	if s.err != nil || s.closed {
		return false
	}
	if s.idx >= len(s.buf) {
		if s.done {
			return false
		}
		if !s.fetchBatch() {
			return false
		}
	}
	s.current = s.buf[s.idx]
	s.idx++
	s.yielded++
	if s.yielded%10000 == 0 {
		logrus.Debugf("Streamed %d detail rows for master_id: %d", s.yielded, s.masterID)
	}
	return true
}

func (s *detailStream) fetchBatch() bool {
	rows, err := s.tx.QueryContext(s.ctx, fmt.Sprintf("FETCH %d FROM %s", s.fetchSize, detailCursorName))
	if err != nil {
		s.err = procerror.NewProcError(procerror.ErrStreamInterrupted, "Failed to fetch from detail cursor", err)
		return false
	}
	defer rows.Close()

	s.buf = s.buf[:0]
	s.idx = 0

	for rows.Next() {
		record := &model.DetailRecord{}
		var recordType, accountNumber, customerName, currency, description, processingStatus, errMessage sql.NullString
		var transactionDate sql.NullTime
		var transactionData []byte
		var amount decimal.NullDecimal
		err = rows.Scan(
			&record.DetailID,
			&record.MasterID,
			&recordType,
			&accountNumber,
			&customerName,
			&amount,
			&currency,
			&description,
			&transactionDate,
			&record.CreatedAt,
			&transactionData,
			&processingStatus,
			&errMessage,
		)
		if err != nil {
			s.err = procerror.NewProcError(procerror.ErrStreamInterrupted, "Failed to scan detail row", err)
			return false
		}
		record.Amount = amount.Decimal
		record.RecordType = recordType.String
		record.AccountNumber = accountNumber.String
		record.CustomerName = customerName.String
		record.Currency = currency.String
		record.Description = description.String
		record.ProcessingStatus = processingStatus.String
		record.ErrorMessage = errMessage.String
		record.TransactionData = transactionData
		if transactionDate.Valid {
			t := transactionDate.Time
			record.TransactionDate = &t
		}
		s.buf = append(s.buf, record)
	}
	if err = rows.Err(); err != nil {
		s.err = procerror.NewProcError(procerror.ErrStreamInterrupted, "Error iterating detail cursor batch", err)
		return false
	}
	if len(s.buf) < s.fetchSize {
		s.done = true
	}
	return len(s.buf) > 0
}

func (s *detailStream) Row() *model.DetailRecord {
	return s.current
}

func (s *detailStream) Err() error {
	return s.err
}

// Close releases the cursor and rolls back the read transaction. Safe to
// call more than once and after a failed fetch.
func (s *detailStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	logrus.Infof("Completed detail stream for master_id: %d after %d rows", s.masterID, s.yielded)

	// The cursor dies with the transaction; CLOSE is best-effort.
	_, _ = s.tx.Exec(fmt.Sprintf("CLOSE %s", detailCursorName))
	if err := s.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return classifyStoreError("Failed to release streaming transaction", err)
	}
	return nil
}

// CreateDetailRecord inserts a detail row. Used by the seeder and tests;
// the processing path itself never writes details.
func (d Datasource) CreateDetailRecord(ctx context.Context, record *model.DetailRecord) error {
	var transactionData interface{}
	if len(record.TransactionData) > 0 {
		transactionData = record.TransactionData
	}
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO detail_records (master_id, record_type, account_number, customer_name, amount, currency, description, transaction_date, created_at, transaction_data, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, $10)
	`, record.MasterID, record.RecordType, record.AccountNumber, record.CustomerName, record.Amount, record.Currency, record.Description, record.TransactionDate, transactionData, record.ProcessingStatus)
	if err != nil {
		return classifyStoreError("Failed to create detail record", err)
	}
	return nil
}

// CountDetailRecords counts a master's detail rows without loading them.
func (d Datasource) CountDetailRecords(ctx context.Context, masterID int64) (int64, error) {
	var count int64
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM detail_records WHERE master_id = $1
	`, masterID).Scan(&count)
	if err != nil {
		return 0, classifyStoreError("Failed to count detail records", err)
	}
	return count, nil
}
