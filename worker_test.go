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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWorker_StartAndStop(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(0), false, nil).Maybe()

	worker, err := NewWorker(e)
	assert.NoError(t, err)
	assert.False(t, worker.IsRunning())

	worker.Start(context.Background())
	assert.True(t, worker.IsRunning())

	// Give the loop a moment to claim at least once.
	time.Sleep(50 * time.Millisecond)

	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestWorker_StartIsIdempotent(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(0), false, nil).Maybe()

	worker, err := NewWorker(e)
	assert.NoError(t, err)

	worker.Start(context.Background())
	worker.Start(context.Background())
	assert.True(t, worker.IsRunning())

	worker.Stop()
	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	e, mockDS, _ := newTestExportd(t)

	mockDS.On("ClaimNextMaster", mock.Anything, e.WorkerID(), mock.Anything, mock.Anything).
		Return(int64(0), false, nil).Maybe()

	worker, err := NewWorker(e)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()

	// The loop exits on its own; Stop only waits for it.
	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorker_ReadsConcurrencyFromConfig(t *testing.T) {
	e, _, _ := newTestExportd(t)

	worker, err := NewWorker(e)
	assert.NoError(t, err)
	assert.Equal(t, 2, worker.maxConcurrent)
	assert.Equal(t, time.Second, worker.pollInterval)
	assert.Equal(t, 5*time.Second, worker.errorBackoff)
}
