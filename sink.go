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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/internal/procerror"
	"github.com/batchfile/exportd/model"
)

const (
	// FileVersion is published in the header record.
	FileVersion = "2.0"

	fileBufferSize = 32 * 1024
	fieldDelimiter = "|"

	fileDateLayout        = "2006-01-02"
	transactionDateLayout = "2006-01-02T15:04:05"

	RecordTypeHeader  = "HEADER"
	RecordTypeDetail  = "DETAIL"
	RecordTypeTrailer = "TRAILER"
)

// FileSink frames a single output file: one HEADER, streamed DETAIL rows,
// one TRAILER. Writes land in a bounded buffer; Close flushes and fsyncs.
// A cycle that aborts before the trailer calls Discard instead, which
// removes the partial file.
type FileSink struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// GenerateOutputPath builds the output filename for one processing cycle.
// The millisecond tag keeps retries of the same master from colliding, so
// no two cycles ever target the same file.
func GenerateOutputPath(outputDirectory, businessCenterCode string, masterID int64) string {
	filename := fmt.Sprintf("%s_%d_%d.txt", businessCenterCode, masterID, time.Now().UnixMilli())
	return filepath.Join(outputDirectory, filename)
}

// OpenFileSink creates the output file, creating the output directory on
// demand. All sink failures carry the SINK taxonomy code.
func OpenFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, procerror.NewProcError(procerror.ErrSink, "Failed to create output directory", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, procerror.NewProcError(procerror.ErrSink, "Failed to create output file", err)
	}
	return &FileSink{
		path:   path,
		file:   file,
		writer: bufio.NewWriterSize(file, fileBufferSize),
	}, nil
}

// Path returns the sink's output path.
func (s *FileSink) Path() string {
	return s.path
}

// WriteHeader writes the single HEADER record. The record count field is
// always zero here; the real count goes in the trailer.
func (s *FileSink) WriteHeader(master *model.MasterRecord, today time.Time) error {
	return s.writeRecord(
		RecordTypeHeader,
		strconv.FormatInt(master.MasterID, 10),
		master.BusinessCenterCode,
		today.Format(fileDateLayout),
		"0",
		FileVersion,
	)
}

// WriteDetail writes one DETAIL record in the published field order.
func (s *FileSink) WriteDetail(p *model.FlatProjection) error {
	return s.writeRecord(
		RecordTypeDetail,
		strconv.FormatInt(p.DetailID, 10),
		p.AccountNumber,
		p.CustomerName,
		p.Amount.StringFixed(2),
		p.Currency,
		p.Description,
		formatTimestamp(p.TransactionDate),
		p.TransactionID,
		p.TransactionType,
		p.CustomerID,
		p.CustomerEmail,
		p.CustomerPhone,
		p.CustomerCity,
		p.CustomerState,
		p.CustomerCountry,
		p.MerchantID,
		p.MerchantName,
		p.MerchantCategory,
		p.PaymentType,
		p.PaymentLastFour,
		p.PaymentBrand,
		formatRiskScore(p.RiskScore),
		p.Status,
		formatItemCount(p.ItemCount),
	)
}

// WriteTrailer writes the single TRAILER record carrying the aggregates.
func (s *FileSink) WriteTrailer(stats *TrailerStats) error {
	return s.writeRecord(
		RecordTypeTrailer,
		strconv.FormatInt(stats.RecordCount(), 10),
		stats.TotalAmount().StringFixed(2),
		stats.AverageRiskScore().StringFixed(2),
		strconv.FormatInt(stats.UniqueCustomers(), 10),
	)
}

func (s *FileSink) writeRecord(fields ...string) error {
	if _, err := s.writer.WriteString(strings.Join(fields, fieldDelimiter) + "\n"); err != nil {
		return procerror.NewProcError(procerror.ErrSink, "Failed to write record to output file", err)
	}
	return nil
}

// Close flushes the buffer, fsyncs and closes the file.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.writer.Flush(); err != nil {
		_ = s.file.Close()
		return procerror.NewProcError(procerror.ErrSink, "Failed to flush output file", err)
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return procerror.NewProcError(procerror.ErrSink, "Failed to sync output file", err)
	}
	if err := s.file.Close(); err != nil {
		return procerror.NewProcError(procerror.ErrSink, "Failed to close output file", err)
	}
	return nil
}

// Discard closes the sink without flushing and removes the partial file.
// Safe to call after Close; a fully written file is removed as well, which
// is what the losing side of an ownership race wants.
func (s *FileSink) Discard() {
	if !s.closed {
		s.closed = true
		_ = s.file.Close()
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to remove partial output file %s: %v", s.path, err)
		return
	}
	logrus.Infof("Removed output file: %s", s.path)
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(transactionDateLayout)
}

func formatRiskScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

func formatItemCount(count *int) string {
	if count == nil {
		return ""
	}
	return strconv.Itoa(*count)
}
