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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/config"
	"github.com/batchfile/exportd/internal/procerror"
)

// GenerateWorkerIdentity builds the cluster-unique, process-stable identity
// stamped into locked_by on every claim: hostname, pid, process start
// millis and a random suffix. The random suffix makes collisions across a
// fleet vanishingly unlikely even when containers share hostnames.
func GenerateWorkerIdentity() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%s-%d-%d-%s", hostname, os.Getpid(), time.Now().UnixMilli(), suffix)
}

// TryClaim attempts to claim the next best master for this worker. It
// returns (0, false) when no work is available or when the store hiccuped
// transiently; the worker loop treats both as "poll again later". Only
// non-transient store failures propagate.
func (e *Exportd) TryClaim(ctx context.Context) (int64, bool, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return 0, false, err
	}

	masterID, claimed, err := e.datasource.ClaimNextMaster(ctx, e.workerID, time.Now(), cnf.LockTimeout())
	if err != nil {
		if procerror.IsTransient(err) {
			logrus.Warnf("Transient error claiming next master, will retry: %v", err)
			return 0, false, nil
		}
		return 0, false, err
	}
	if !claimed {
		return 0, false, nil
	}
	return masterID, true, nil
}
