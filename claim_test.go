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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/batchfile/exportd/config"
	"github.com/batchfile/exportd/internal/procerror"
)

func TestGenerateWorkerIdentity_Shape(t *testing.T) {
	identity := GenerateWorkerIdentity()

	parts := strings.Split(identity, "-")
	assert.GreaterOrEqual(t, len(parts), 4)

	hostname, err := os.Hostname()
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(identity, hostname+"-"))
	assert.Contains(t, identity, fmt.Sprintf("-%d-", os.Getpid()))
}

func TestGenerateWorkerIdentity_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		seen[GenerateWorkerIdentity()] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestNewExportd_StableIdentity(t *testing.T) {
	e, _, _ := newTestExportd(t)

	first := e.WorkerID()
	second := e.WorkerID()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestTryClaim_Success(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(42), true, nil)

	masterID, claimed, err := e.TryClaim(context.Background())
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, int64(42), masterID)
}

func TestTryClaim_SwallowsTransientErrors(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(0), false, procerror.NewProcError(procerror.ErrTransient, "too many connections", nil))

	masterID, claimed, err := e.TryClaim(context.Background())
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(0), masterID)
}

func TestTryClaim_PropagatesInternalErrors(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(0), false, procerror.NewProcError(procerror.ErrInternal, "schema mismatch", nil))

	_, claimed, err := e.TryClaim(context.Background())
	assert.Error(t, err)
	assert.False(t, claimed)
}

func TestInitializePriorities(t *testing.T) {
	e, mockDS, outputDir := newTestExportd(t)

	config.MockConfig(&config.Configuration{
		DataSource:               config.DataSourceConfig{Dns: "postgres://localhost"},
		Worker:                   config.WorkerConfig{BatchSize: 100, LockTimeoutSeconds: 300, PollIntervalSeconds: 1, ErrorBackoffSeconds: 5, MaxConcurrentMasters: 2},
		Output:                   config.OutputConfig{Directory: outputDir},
		BusinessCenterPriorities: map[string]int{"BC001": 8},
	})

	mockDS.On("UpdateBusinessCenterPriority", mock.Anything, "BC001", 8).
		Return(int64(3), nil)

	err := e.InitializePriorities(context.Background())
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
