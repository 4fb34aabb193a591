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
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/config"
	"github.com/batchfile/exportd/database"
	"github.com/batchfile/exportd/internal/procerror"
	"github.com/batchfile/exportd/model"
)

// CycleResult reports how one claim/stream/finalize cycle ended.
type CycleResult int

const (
	CycleIdle CycleResult = iota
	CycleProcessed
	CycleErrored
)

const finalizeRetryInterval = 500 * time.Millisecond

// ProcessNextMaster runs one full processing cycle: claim the next best
// master, stream its detail rows through the projector into a framed
// output file, then finalize. Returns CycleIdle when no work is claimable.
//
// The cursor, its transaction and the output file are scoped to this call:
// every exit path closes the stream and either finishes or discards the
// file. On any failure after the claim the master is moved to FAILED while
// this worker still owns it; if even that fails the row stays PROCESSING
// and lock expiry hands it to another worker.
func (e *Exportd) ProcessNextMaster(ctx context.Context) (CycleResult, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return CycleErrored, err
	}

	masterID, claimed, err := e.TryClaim(ctx)
	if err != nil {
		return CycleErrored, err
	}
	if !claimed {
		return CycleIdle, nil
	}

	master, err := e.datasource.GetMasterByID(ctx, masterID)
	if err != nil {
		// The row vanished between claim and load. Record the failure if
		// we still own it, otherwise abandon.
		e.tryFail(masterID, "master record vanished after claim")
		return CycleErrored, procerror.NewProcError(procerror.ErrIntegrity, "Master record vanished after claim", err)
	}

	if total, countErr := e.datasource.CountDetailRecords(ctx, masterID); countErr == nil {
		logrus.Infof("Processing master_id: %d (%s) with %d detail rows on worker: %s",
			masterID, master.BusinessCenterCode, total, e.workerID)
	}

	stream, err := e.datasource.StreamDetailRecords(ctx, masterID, cnf.Worker.BatchSize)
	if err != nil {
		e.tryFail(masterID, errors.Wrap(err, "failed to open detail stream").Error())
		return CycleErrored, err
	}
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			logrus.Warnf("Error closing detail stream for master_id: %d - %v", masterID, closeErr)
		}
	}()

	outputPath := GenerateOutputPath(cnf.Output.Directory, master.BusinessCenterCode, masterID)
	sink, err := OpenFileSink(outputPath)
	if err != nil {
		e.tryFail(masterID, errors.Wrap(err, "failed to open output file").Error())
		return CycleErrored, err
	}

	stats := NewTrailerStats()
	if err := e.writeFile(ctx, master, stream, sink, stats); err != nil {
		sink.Discard()
		e.tryFail(masterID, err.Error())
		return CycleErrored, err
	}

	completed, err := e.tryComplete(masterID)
	if err != nil {
		// Best-effort finalize failed; the row stays PROCESSING and is
		// re-claimed after the lock horizon. The finished file stays on
		// disk: downstream must tolerate at-least-once production.
		logrus.Errorf("Failed to finalize master_id: %d, leaving to lock expiry: %v", masterID, err)
		return CycleErrored, err
	}
	if !completed {
		// The lease expired mid-cycle and another worker re-claimed the
		// row. The winner writes its own file; ours goes away quietly.
		logrus.Warnf("Lost ownership of master_id: %d before finalize, discarding file", masterID)
		sink.Discard()
		return CycleProcessed, nil
	}

	logrus.Infof("Successfully completed master_id: %d, file: %s (%d records, %d unique customers)",
		masterID, outputPath, stats.RecordCount(), stats.UniqueCustomers())
	return CycleProcessed, nil
}

// writeFile drains the detail stream into the sink: header, one projected
// DETAIL per row folded into the aggregates, then the trailer. Rows with
// malformed embedded JSON are still written (JSON-derived fields empty)
// and counted. Cancellation is observed between rows.
func (e *Exportd) writeFile(ctx context.Context, master *model.MasterRecord, stream database.DetailIterator, sink *FileSink, stats *TrailerStats) error {
	if err := sink.WriteHeader(master, time.Now()); err != nil {
		return err
	}

	for stream.Next() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return procerror.NewProcError(procerror.ErrStreamInterrupted, "Processing cancelled", ctxErr)
		}
		projection, projErr := ProjectDetail(stream.Row())
		if projErr != nil {
			stats.CountProjectionError()
		}
		if err := sink.WriteDetail(projection); err != nil {
			return err
		}
		stats.Fold(projection)
	}
	if err := stream.Err(); err != nil {
		return err
	}

	if err := sink.WriteTrailer(stats); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}

	if stats.ProjectionErrors() > 0 {
		logrus.Warnf("master_id: %d had %d detail rows with unparseable transaction data",
			master.MasterID, stats.ProjectionErrors())
	}
	return nil
}

// tryComplete finalizes an owned master as COMPLETED, retrying once on a
// transient store error. False without error means ownership was lost.
func (e *Exportd) tryComplete(masterID int64) (bool, error) {
	ctx, cancel := finalizeContext()
	defer cancel()

	var completed bool
	operation := func() error {
		var err error
		completed, err = e.datasource.CompleteMaster(ctx, masterID, e.workerID)
		if err != nil {
			if procerror.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewConstantBackOff(finalizeRetryInterval), 1))
	return completed, err
}

// tryFail records a failure on an owned master, retrying once on a
// transient store error. Losing the ownership race here is fine: the
// re-claimant owns the outcome now.
func (e *Exportd) tryFail(masterID int64, message string) {
	ctx, cancel := finalizeContext()
	defer cancel()

	operation := func() error {
		_, err := e.datasource.FailMaster(ctx, masterID, e.workerID, message)
		if err != nil {
			if procerror.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewConstantBackOff(finalizeRetryInterval), 1)); err != nil {
		logrus.Errorf("Failed to mark master_id: %d as FAILED, leaving to lock expiry: %v", masterID, err)
	}
}

// finalizeContext is deliberately detached from the cycle context: a
// cancelled cycle must still be able to record its own failure.
func finalizeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
