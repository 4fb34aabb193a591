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
	"time"

	"github.com/batchfile/exportd/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	master // Interface for master work-queue operations
	detail // Interface for detail streaming operations
}

// master defines methods for claiming and finalizing master records.
type master interface {
	ClaimNextMaster(ctx context.Context, worker string, now time.Time, lockHorizon time.Duration) (int64, bool, error) // Claims the next claimable master, returning its id
	CreateMaster(ctx context.Context, master *model.MasterRecord) (*model.MasterRecord, error)                         // Inserts a new PENDING master
	GetMasterByID(ctx context.Context, masterID int64) (*model.MasterRecord, error)                                    // Retrieves a master record by ID
	CompleteMaster(ctx context.Context, masterID int64, worker string) (bool, error)                                   // Marks an owned master COMPLETED
	FailMaster(ctx context.Context, masterID int64, worker string, errMessage string) (bool, error)                    // Marks an owned master FAILED
	UpdateBusinessCenterPriority(ctx context.Context, businessCenterCode string, priority int) (int64, error)          // Seeds stored priority for a business center
}

// detail defines methods for streaming detail rows.
type detail interface {
	StreamDetailRecords(ctx context.Context, masterID int64, fetchSize int) (DetailIterator, error) // Opens a server-side cursor over a master's detail rows
	CreateDetailRecord(ctx context.Context, record *model.DetailRecord) error                       // Inserts a detail row
	CountDetailRecords(ctx context.Context, masterID int64) (int64, error)                          // Counts a master's detail rows
}

// DetailIterator is a finite, non-restartable, lazily produced sequence of
// detail rows. The consumer owns the iterator: Close must run on every exit
// path so the underlying cursor and its transaction are released.
type DetailIterator interface {
	Next() bool
	Row() *model.DetailRecord
	Err() error
	Close() error
}
