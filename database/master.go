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
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/batchfile/exportd/internal/procerror"
	"github.com/batchfile/exportd/model"
)

// ClaimNextMaster selects and locks the next claimable master inside a
// single transaction. Claimable means PENDING, or PROCESSING with a lease
// older than lockHorizon. Candidates are ordered by (priority DESC,
// created_at ASC); FOR UPDATE SKIP LOCKED keeps concurrent claimants from
// blocking on each other's in-flight transactions.
//
// The boolean result is false when no work is available. Transient store
// errors surface as TRANSIENT so the worker loop backs off and retries.
func (d Datasource) ClaimNextMaster(ctx context.Context, worker string, now time.Time, lockHorizon time.Duration) (int64, bool, error) {
	ctx, span := otel.Tracer("exportd.store").Start(ctx, "Claiming next master record")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, classifyStoreError("Failed to begin claim transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	horizon := now.Add(-lockHorizon)

	var masterID int64
	err = tx.QueryRowContext(ctx, `
		SELECT master_id
		FROM master_records
		WHERE (status = 'PENDING' AND locked_by IS NULL)
		   OR (status = 'PROCESSING' AND locked_at < $1)
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, horizon).Scan(&masterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, classifyStoreError("Failed to find claimable master", err)
	}

	// The ownership condition admits takeover of an expired lease: the
	// candidate may still carry a dead worker's locked_by, and the row is
	// already held FOR UPDATE by this transaction.
	result, err := tx.ExecContext(ctx, `
		UPDATE master_records
		SET status = 'PROCESSING',
		    locked_by = $2,
		    locked_at = $3,
		    updated_at = $3
		WHERE master_id = $1
		  AND (locked_by IS NULL OR locked_by = $2 OR locked_at < $4)
	`, masterID, worker, now, horizon)
	if err != nil {
		return 0, false, classifyStoreError("Failed to lock master", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, classifyStoreError("Failed to get rows affected for claim", err)
	}
	if rowsAffected == 0 {
		// Another in-flight owner; discard the candidate and let the
		// caller poll again.
		logrus.Warnf("Failed to lock master_id: %d by worker: %s", masterID, worker)
		return 0, false, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, false, classifyStoreError("Failed to commit claim transaction", err)
	}

	logrus.Infof("Successfully locked master_id: %d by worker: %s", masterID, worker)
	return masterID, true, nil
}

// CreateMaster inserts a new PENDING master and returns it with the
// generated id and timestamps filled in.
func (d Datasource) CreateMaster(ctx context.Context, master *model.MasterRecord) (*model.MasterRecord, error) {
	if master.Status == "" {
		master.Status = model.StatusPending
	}
	master.CreatedAt = time.Now()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO master_records (business_center_code, priority, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING master_id
	`, master.BusinessCenterCode, master.Priority, master.Status, master.CreatedAt).Scan(&master.MasterID)
	if err != nil {
		return nil, classifyStoreError("Failed to create master record", err)
	}
	return master, nil
}

// GetMasterByID retrieves a master record by its id.
func (d Datasource) GetMasterByID(ctx context.Context, masterID int64) (*model.MasterRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT master_id, business_center_code, priority, status, locked_by, locked_at, error_message, created_at, updated_at
		FROM master_records
		WHERE master_id = $1
	`, masterID)

	master := &model.MasterRecord{}
	var lockedBy, errMessage sql.NullString
	var lockedAt, updatedAt sql.NullTime
	err := row.Scan(&master.MasterID, &master.BusinessCenterCode, &master.Priority, &master.Status, &lockedBy, &lockedAt, &errMessage, &master.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, procerror.NewProcError(procerror.ErrNotFound, fmt.Sprintf("Master record with ID '%d' not found", masterID), err)
		}
		return nil, classifyStoreError("Failed to retrieve master record", err)
	}

	master.LockedBy = lockedBy.String
	master.ErrorMessage = errMessage.String
	if lockedAt.Valid {
		master.LockedAt = &lockedAt.Time
	}
	if updatedAt.Valid {
		master.UpdatedAt = &updatedAt.Time
	}
	return master, nil
}

// CompleteMaster transitions an owned master to COMPLETED and clears the
// lease. The update is conditioned on ownership: a false result means the
// lease expired and another worker re-claimed the row, which callers treat
// as a silent no-op.
func (d Datasource) CompleteMaster(ctx context.Context, masterID int64, worker string) (bool, error) {
	ctx, span := otel.Tracer("exportd.store").Start(ctx, "Completing master record")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE master_records
		SET status = 'COMPLETED',
		    locked_by = NULL,
		    locked_at = NULL,
		    updated_at = NOW()
		WHERE master_id = $1
		  AND locked_by = $2
	`, masterID, worker)
	if err != nil {
		return false, classifyStoreError("Failed to complete master", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classifyStoreError("Failed to get rows affected for complete", err)
	}
	if rowsAffected == 0 {
		logrus.Warnf("Failed to complete master_id: %d - not locked by worker: %s", masterID, worker)
		return false, nil
	}
	logrus.Infof("Completed master_id: %d by worker: %s", masterID, worker)
	return true, nil
}

// FailMaster transitions an owned master to FAILED, records the error
// message and clears the lease. Ownership semantics match CompleteMaster.
func (d Datasource) FailMaster(ctx context.Context, masterID int64, worker string, errMessage string) (bool, error) {
	ctx, span := otel.Tracer("exportd.store").Start(ctx, "Failing master record")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE master_records
		SET status = 'FAILED',
		    locked_by = NULL,
		    locked_at = NULL,
		    error_message = $3,
		    updated_at = NOW()
		WHERE master_id = $1
		  AND locked_by = $2
	`, masterID, worker, errMessage)
	if err != nil {
		return false, classifyStoreError("Failed to fail master", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, classifyStoreError("Failed to get rows affected for fail", err)
	}
	if rowsAffected == 0 {
		logrus.Warnf("Failed to fail master_id: %d - not locked by worker: %s", masterID, worker)
		return false, nil
	}
	logrus.Errorf("Failed master_id: %d by worker: %s - Error: %s", masterID, worker, errMessage)
	return true, nil
}

// UpdateBusinessCenterPriority seeds the stored priority for every
// still-PENDING master of a business center. Claimed and terminal rows are
// left alone; the claim query trusts the stored value from then on.
func (d Datasource) UpdateBusinessCenterPriority(ctx context.Context, businessCenterCode string, priority int) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE master_records
		SET priority = $2,
		    updated_at = NOW()
		WHERE business_center_code = $1
		  AND status = 'PENDING'
	`, businessCenterCode, priority)
	if err != nil {
		return 0, classifyStoreError("Failed to update business center priority", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, classifyStoreError("Failed to get rows affected for priority update", err)
	}
	return rowsAffected, nil
}

// classifyStoreError maps database errors onto the processing taxonomy so
// callers can tell a retryable hiccup from a real failure.
func classifyStoreError(message string, err error) error {
	if isTransientPgError(err) {
		return procerror.NewProcError(procerror.ErrTransient, message, err)
	}
	return procerror.NewProcError(procerror.ErrInternal, message, err)
}
