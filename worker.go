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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/batchfile/exportd/config"
)

// Worker is the long-running scheduler: it keeps up to
// max_concurrent_masters processing cycles in flight, sleeps poll_interval
// when the queue is drained and error_backoff after an errored cycle. The
// counting semaphore and the store row are the only state shared between
// cycles.
type Worker struct {
	exportd       *Exportd
	pollInterval  time.Duration
	errorBackoff  time.Duration
	maxConcurrent int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewWorker(e *Exportd) (*Worker, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &Worker{
		exportd:       e,
		pollInterval:  cnf.PollInterval(),
		errorBackoff:  cnf.ErrorBackoff(),
		maxConcurrent: cnf.Worker.MaxConcurrentMasters,
		stopCh:        make(chan struct{}),
	}, nil
}

// Start launches the polling loop. It returns immediately; use Stop (or
// cancel ctx) to shut down.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	logrus.Infof("Worker loop started: worker=%s max_concurrent=%d poll_interval=%v",
		w.exportd.WorkerID(), w.maxConcurrent, w.pollInterval)
}

// Stop ceases claiming new work and waits for active cycles to finish.
// Cycles observe cancellation through their context at each suspension
// point; a cycle past its last row simply completes.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	logrus.Info("Worker loop stopped")
}

func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	sem := make(chan struct{}, w.maxConcurrent)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Worker loop context cancelled")
			return
		case <-w.stopCh:
			logrus.Info("Worker loop stop signal received")
			return
		case sem <- struct{}{}:
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.runCycle(ctx)
		}()
	}
}

// runCycle executes one processing cycle and applies the idle or error
// sleep while still holding the semaphore permit, so an empty queue costs
// one poll per permit per interval rather than a busy loop.
func (w *Worker) runCycle(ctx context.Context) {
	result, err := w.exportd.ProcessNextMaster(ctx)
	switch result {
	case CycleProcessed:
		// Work was found; look for more immediately.
	case CycleIdle:
		w.sleep(ctx, w.pollInterval)
	case CycleErrored:
		if err != nil {
			logrus.Errorf("Processing cycle failed: %v", err)
		}
		w.sleep(ctx, w.errorBackoff)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}
