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
	"embed"

	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/config"
	"github.com/batchfile/exportd/database"
)

// Exportd represents the main struct for the exportd worker process. One
// instance carries the process-stable worker identity used for every claim
// and finalize against the shared store.
type Exportd struct {
	datasource database.IDataSource
	workerID   string
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewExportd initializes a new instance of Exportd with the provided
// datasource. The worker identity is computed once here and reused for the
// process lifetime.
func NewExportd(db database.IDataSource) (*Exportd, error) {
	if _, err := config.Fetch(); err != nil {
		return nil, err
	}
	e := &Exportd{
		datasource: db,
		workerID:   GenerateWorkerIdentity(),
	}
	logrus.Infof("Initialized exportd worker with identity: %s", e.workerID)
	return e, nil
}

// WorkerID returns the process-stable worker identity.
func (e *Exportd) WorkerID() string {
	return e.workerID
}

// InitializePriorities seeds master_records.priority from the configured
// business center map. Runs once at startup; the claim query trusts the
// stored priority afterwards, so out-of-band edits to the rows win over
// the config map.
func (e *Exportd) InitializePriorities(ctx context.Context) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	for code, priority := range cnf.BusinessCenterPriorities {
		updated, err := e.datasource.UpdateBusinessCenterPriority(ctx, code, priority)
		if err != nil {
			return err
		}
		if updated > 0 {
			logrus.Infof("Seeded priority %d for business center %s (%d masters)", priority, code, updated)
		}
	}
	return nil
}
